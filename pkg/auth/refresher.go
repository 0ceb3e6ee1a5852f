package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/transitwatch/transitwatch/pkg/tokenstore"
	"github.com/transitwatch/transitwatch/pkg/utils"
	"golang.org/x/sync/singleflight"
)

const refreshKey = "refresh"

// Refresher exchanges the HTTP-only session cookie for a fresh access
// token. Concurrent Refresh calls collapse into one network call; with a
// rotating refresh credential, a duplicate call would consume the
// credential twice and kill the session.
type Refresher struct {
	baseURL    string
	httpClient *http.Client
	tokens     tokenstore.Store
	timeout    time.Duration
	group      singleflight.Group

	// onSessionExpired runs after a failed refresh has cleared the token
	// store, so the session controller can transition state and redirect.
	onSessionExpired func()

	// onRefreshSucceeded runs after a refreshed token has been stored
	onRefreshSucceeded func()
}

// RefresherOption configures a Refresher
type RefresherOption func(*Refresher)

// WithRefreshTimeout bounds the refresh network call
func WithRefreshTimeout(timeout time.Duration) RefresherOption {
	return func(r *Refresher) {
		r.timeout = timeout
	}
}

// WithSessionExpiredHook registers a callback fired when a refresh failure
// terminates the session
func WithSessionExpiredHook(hook func()) RefresherOption {
	return func(r *Refresher) {
		r.onSessionExpired = hook
	}
}

// WithRefreshSucceededHook registers a callback fired after every
// successful refresh, once the new token is stored
func WithRefreshSucceededHook(hook func()) RefresherOption {
	return func(r *Refresher) {
		r.onRefreshSucceeded = hook
	}
}

// NewRefresher creates a refresher. The HTTP client must carry the cookie
// jar that holds the session credential.
func NewRefresher(baseURL string, httpClient *http.Client, tokens tokenstore.Store, opts ...RefresherOption) *Refresher {
	if httpClient == nil {
		httpClient = utils.NewDefaultHTTPClient()
	}
	r := &Refresher{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
		timeout:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh obtains a new access token and stores it. Callers that arrive
// while a refresh is already in flight join that call and receive its
// result instead of triggering another one.
//
// The underlying network call runs on its own bounded-deadline context
// rather than ctx, so one caller's cancellation cannot fail the refresh
// for the joiners sharing it.
func (r *Refresher) Refresh(ctx context.Context) (string, error) {
	type result struct {
		token string
	}

	ch := r.group.DoChan(refreshKey, func() (interface{}, error) {
		token, err := r.doRefresh()
		if err != nil {
			return nil, err
		}
		return result{token: token}, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(result).token, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *Refresher) doRefresh() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	resp, err := r.post(ctx)
	if err != nil {
		// One retry for transport-level failures; a second failure
		// terminates the session.
		log.Printf("[AUTH] Refresh transport error, retrying once: %v", err)
		resp, err = r.post(ctx)
	}
	if err != nil {
		r.terminateSession()
		return "", &RefreshError{Err: fmt.Errorf("refresh request failed: %w", err)}
	}
	defer utils.SafeCloseResponse(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.terminateSession()
		return "", &RefreshError{StatusCode: resp.StatusCode}
	}

	var payload struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		r.terminateSession()
		return "", &RefreshError{Err: fmt.Errorf("failed to decode refresh response: %w", err)}
	}
	if payload.AccessToken == "" {
		r.terminateSession()
		return "", &RefreshError{Err: fmt.Errorf("refresh response contained no access token")}
	}

	if err := r.tokens.Set(payload.AccessToken); err != nil {
		r.terminateSession()
		return "", &RefreshError{Err: fmt.Errorf("failed to store refreshed token: %w", err)}
	}

	if r.onRefreshSucceeded != nil {
		r.onRefreshSucceeded()
	}
	return payload.AccessToken, nil
}

func (r *Refresher) post(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", r.baseURL+"/auth/refresh", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return r.httpClient.Do(req)
}

func (r *Refresher) terminateSession() {
	if err := r.tokens.Clear(); err != nil {
		log.Printf("[AUTH] Failed to clear token store: %v", err)
	}
	if r.onSessionExpired != nil {
		r.onSessionExpired()
	}
}
