package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/transitwatch/transitwatch/pkg/logger"
	"github.com/transitwatch/transitwatch/pkg/tokenstore"
	"github.com/transitwatch/transitwatch/pkg/utils"
)

// Navigator receives the navigation side effects of session transitions.
// The CLI prints where the user should go next; tests record the calls.
type Navigator interface {
	// NavigateHome is called after a successful login or registration
	NavigateHome()
	// NavigateLogin is called after logout or a terminated session
	NavigateLogin()
}

// NopNavigator ignores navigation events
type NopNavigator struct{}

// NavigateHome implements Navigator
func (NopNavigator) NavigateHome() {}

// NavigateLogin implements Navigator
func (NopNavigator) NavigateLogin() {}

// ControllerOptions configures a session controller
type ControllerOptions struct {
	// BaseURL of the auth service
	BaseURL string
	// HTTPClient must carry the cookie jar holding the session credential.
	// Defaults to a jarless 30s-timeout client.
	HTTPClient *http.Client
	// Tokens is the access token store. Required.
	Tokens tokenstore.Store
	// Navigator receives navigation side effects. Defaults to NopNavigator.
	Navigator Navigator
	// Jar, when set, is cleared together with the token store on logout
	Jar *PersistentJar
	// SessionLog, when set, records session lifecycle events
	SessionLog *logger.Logger
	// RequestTimeout bounds each auth network call. Defaults to 30s.
	RequestTimeout time.Duration
}

// Controller owns the authentication state machine and the login, logout
// and bootstrap-refresh operations. State transitions are broadcast to
// subscribers so protected views can re-evaluate access.
type Controller struct {
	baseURL    string
	httpClient *http.Client
	tokens     tokenstore.Store
	refresher  *Refresher
	nav        Navigator
	jar        *PersistentJar
	sessionLog *logger.Logger

	mu        sync.Mutex
	state     State
	listeners map[int]func(State)
	nextID    int
}

// NewController creates a session controller. The initial state derives
// from the token store: a persisted token from a previous run counts as
// authenticated until proven otherwise.
func NewController(opts ControllerOptions) (*Controller, error) {
	if opts.Tokens == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = utils.NewDefaultHTTPClient()
	}
	nav := opts.Navigator
	if nav == nil {
		nav = NopNavigator{}
	}
	timeout := opts.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	c := &Controller{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient: httpClient,
		tokens:     opts.Tokens,
		nav:        nav,
		jar:        opts.Jar,
		sessionLog: opts.SessionLog,
		state:      StateUnauthenticated,
		listeners:  make(map[int]func(State)),
	}
	if _, ok := c.tokens.Get(); ok {
		c.state = StateAuthenticated
	}

	c.refresher = NewRefresher(c.baseURL, httpClient, opts.Tokens,
		WithRefreshTimeout(timeout),
		WithSessionExpiredHook(c.sessionExpired),
		WithRefreshSucceededHook(c.sessionRefreshed),
	)

	return c, nil
}

// State returns the current authentication state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Refresher returns the refresh coordinator for use by request clients
func (c *Controller) Refresher() *Refresher {
	return c.refresher
}

// Gate returns the predicate guarding protected views
func (c *Controller) Gate() *Gate {
	return &Gate{controller: c}
}

// Subscribe registers a listener for state changes and returns an
// unsubscribe function
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Controller) setState(state State) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	listeners := make([]func(State), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	// Notify outside the lock so a listener may call back into the controller
	for _, fn := range listeners {
		fn(state)
	}
}

// Login authenticates with email and password. On success the access token
// is stored, the state becomes Authenticated and navigation moves to the
// home view. A rejected login returns a *LoginError with the server's
// user-displayable message.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	c.setState(StateAuthenticating)

	payload := map[string]string{"email": email, "password": password}
	resp, err := c.postJSON(ctx, "/auth/login", payload)
	if err != nil {
		c.setState(StateUnauthenticated)
		return fmt.Errorf("login request failed: %w", err)
	}
	defer utils.SafeCloseResponse(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.setState(StateUnauthenticated)
		return &LoginError{
			StatusCode: resp.StatusCode,
			Message:    decodeErrorMessage(resp, "Login failed"),
		}
	}

	var body struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.AccessToken == "" {
		c.setState(StateUnauthenticated)
		return fmt.Errorf("login response contained no access token")
	}

	if err := c.tokens.Set(body.AccessToken); err != nil {
		c.setState(StateUnauthenticated)
		return fmt.Errorf("failed to store access token: %w", err)
	}

	c.sessionLog.SessionStarted(email)
	c.setState(StateAuthenticated)
	c.nav.NavigateHome()
	return nil
}

// Register validates the form and creates an account. Validation failures
// return a *ValidationError carrying the complete, freshly computed message
// list. A successful registration that returns tokens behaves like a login.
func (c *Controller) Register(ctx context.Context, email, password, confirmPassword string) error {
	if messages := ValidateRegistration(email, password, confirmPassword); len(messages) > 0 {
		return &ValidationError{Messages: messages}
	}

	c.setState(StateAuthenticating)

	payload := map[string]string{"email": email, "password": password}
	resp, err := c.postJSON(ctx, "/auth/register", payload)
	if err != nil {
		c.setState(StateUnauthenticated)
		return fmt.Errorf("registration request failed: %w", err)
	}
	defer utils.SafeCloseResponse(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.setState(StateUnauthenticated)
		return &LoginError{
			StatusCode: resp.StatusCode,
			Message:    decodeErrorMessage(resp, "Registration failed"),
		}
	}

	var body struct {
		IDToken     string `json:"idToken"`
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.setState(StateUnauthenticated)
		return fmt.Errorf("failed to decode registration response: %w", err)
	}
	if body.AccessToken == "" {
		// Account created but no session issued; the user logs in manually
		log.Printf("[AUTH] Registration succeeded without tokens")
		c.setState(StateUnauthenticated)
		return nil
	}

	if err := c.tokens.Set(body.AccessToken); err != nil {
		c.setState(StateUnauthenticated)
		return fmt.Errorf("failed to store access token: %w", err)
	}

	c.sessionLog.SessionStarted(email)
	c.setState(StateAuthenticated)
	c.nav.NavigateHome()
	return nil
}

// Logout invalidates the session server-side and clears all local state.
// A failing server call is logged and never blocks the local logout; from
// the user's perspective logout always succeeds.
func (c *Controller) Logout(ctx context.Context) {
	resp, err := c.postJSON(ctx, "/auth/logout", nil)
	if err != nil {
		log.Printf("[AUTH] Logout request failed, clearing local state anyway: %v", err)
	} else {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			log.Printf("[AUTH] Logout rejected with status %d, clearing local state anyway", resp.StatusCode)
		}
		utils.SafeCloseResponse(resp)
	}

	if err := c.tokens.Clear(); err != nil {
		log.Printf("[AUTH] Failed to clear token store: %v", err)
	}
	if c.jar != nil {
		if err := c.jar.Clear(); err != nil {
			log.Printf("[AUTH] Failed to clear cookies: %v", err)
		}
	}

	c.sessionLog.SessionEnded()
	c.setState(StateUnauthenticated)
	c.nav.NavigateLogin()
}

// BootstrapRefresh silently re-establishes a session from a still-valid
// session credential, once per application start. Failure simply leaves the
// user on the login view; it is never propagated.
func (c *Controller) BootstrapRefresh(ctx context.Context) {
	c.setState(StateAuthenticating)

	if _, err := c.refresher.Refresh(ctx); err != nil {
		log.Printf("[AUTH] Bootstrap refresh failed: %v", err)
		c.setState(StateUnauthenticated)
		return
	}

	c.sessionLog.SessionResumed()
	c.setState(StateAuthenticated)
	c.nav.NavigateHome()
}

// sessionRefreshed runs after each successful token refresh
func (c *Controller) sessionRefreshed() {
	c.sessionLog.SessionRefreshed()
}

// sessionExpired runs after the refresher cleared the token store
func (c *Controller) sessionExpired() {
	c.sessionLog.SessionEnded()
	c.setState(StateUnauthenticated)
	c.nav.NavigateLogin()
}

func (c *Controller) postJSON(ctx context.Context, path string, payload interface{}) (*http.Response, error) {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

// decodeErrorMessage extracts the user-displayable message from an error
// response, falling back to a generic one
func decodeErrorMessage(resp *http.Response, fallback string) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Message != "" {
		return body.Message
	}
	return fallback
}
