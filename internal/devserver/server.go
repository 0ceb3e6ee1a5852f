// Package devserver implements a self-contained stub of the transit
// arrivals API. It backs the `devserver` command and the end-to-end
// tests: real login, rotating refresh cookies, bearer-guarded data
// endpoints and synthetic arrival predictions, all in memory.
package devserver

import (
	"fmt"
	"hash/fnv"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RefreshCookieName is the HTTP-only cookie carrying the refresh credential.
const RefreshCookieName = "transitwatch_refresh"

const accessTokenTTL = 15 * time.Minute

type accessToken struct {
	email     string
	expiresAt time.Time
}

type refreshToken struct {
	email string
	used  bool
}

type subscription struct {
	ID      string `json:"id"`
	RouteID string `json:"routeId"`
	StopID  string `json:"stopId"`
}

type route struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type stop struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type arrival struct {
	RouteID     string    `json:"routeId"`
	StopID      string    `json:"stopId"`
	ExpectedAt  time.Time `json:"expectedAt"`
	VehicleID   string    `json:"vehicleId"`
	Destination string    `json:"destination"`
}

// Server is the in-memory stub API server
type Server struct {
	echo *echo.Echo

	mu            sync.Mutex
	users         map[string]string // email -> password
	accessTokens  map[string]accessToken
	refreshTokens map[string]*refreshToken
	subscriptions map[string]subscription // id -> subscription
	idempotency   map[string]subscription // Idempotency-Key -> created subscription
	refreshCalls  int
	refreshDelay  time.Duration

	routes map[string]route
	stops  map[string][]stop // routeID -> stops
	now    func() time.Time
}

// NewServer creates a new stub server with a static route network and no
// registered users.
func NewServer() *Server {
	e := echo.New()
	e.Logger.SetOutput(io.Discard)
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:          e,
		users:         make(map[string]string),
		accessTokens:  make(map[string]accessToken),
		refreshTokens: make(map[string]*refreshToken),
		subscriptions: make(map[string]subscription),
		idempotency:   make(map[string]subscription),
		now:           time.Now,
	}
	s.seedNetwork()
	s.setupRoutes()
	return s
}

// SeedUser registers a user without going through the register endpoint
func (s *Server) SeedUser(email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = password
}

// Handler returns the underlying HTTP handler, for httptest servers
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start runs the server on the given address and blocks
func (s *Server) Start(addr string) error {
	log.Printf("[DEVSERVER] Listening on %s", addr)
	return s.echo.Start(addr)
}

// Shutdown stops the server
func (s *Server) Shutdown() error {
	return s.echo.Close()
}

// ExpireAccessTokens invalidates every outstanding access token. Used by
// tests to force the 401-refresh-retry path.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessTokens = make(map[string]accessToken)
}

// RevokeRefreshCredentials invalidates every outstanding refresh
// credential, simulating a server-side session revocation.
func (s *Server) RevokeRefreshCredentials() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens = make(map[string]*refreshToken)
}

// SetRefreshDelay slows the refresh endpoint down. Tests use it to hold
// a refresh in flight while concurrent callers pile up behind it.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDelay = d
}

// RefreshCalls reports how many times the refresh endpoint was hit
func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

func (s *Server) seedNetwork() {
	s.routes = map[string]route{
		"7":  {ID: "7", Name: "Hillside Loop"},
		"12": {ID: "12", Name: "Crosstown"},
		"40": {ID: "40", Name: "Harbor Express"},
	}
	s.stops = map[string][]stop{
		"7":  {{ID: "s-9", Name: "Oak & College"}, {ID: "s-10", Name: "Summit Park"}},
		"12": {{ID: "s-4", Name: "5th & Main"}, {ID: "s-5", Name: "Union Station"}},
		"40": {{ID: "s-21", Name: "Ferry Terminal"}},
	}
}

func (s *Server) setupRoutes() {
	s.echo.POST("/auth/login", s.handleLogin)
	s.echo.POST("/auth/register", s.handleRegister)
	s.echo.POST("/auth/refresh", s.handleRefresh)
	s.echo.POST("/auth/logout", s.handleLogout)

	api := s.echo.Group("", s.bearerMiddleware)
	api.GET("/subscriptions", s.handleListSubscriptions)
	api.POST("/subscriptions", s.handleCreateSubscription)
	api.DELETE("/subscriptions/:id", s.handleDeleteSubscription)
	api.GET("/routes", s.handleListRoutes)
	api.GET("/routes/:id/stops", s.handleListStops)
	api.GET("/arrivals/:routeID/:stopID", s.handleArrivals)
}

// bearerMiddleware rejects requests without a live access token
func (s *Server) bearerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Missing bearer token"})
		}

		s.mu.Lock()
		at, found := s.accessTokens[token]
		if found && s.now().After(at.expiresAt) {
			delete(s.accessTokens, token)
			found = false
		}
		s.mu.Unlock()

		if !found {
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Invalid or expired token"})
		}
		c.Set("email", at.email)
		return next(c)
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}

	s.mu.Lock()
	password, exists := s.users[req.Email]
	s.mu.Unlock()

	if !exists || password != req.Password {
		log.Printf("[DEVSERVER] Login rejected for %s", req.Email)
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Invalid email or password"})
	}

	token := s.issueTokens(c, req.Email)
	log.Printf("[DEVSERVER] Login succeeded for %s", req.Email)
	return c.JSON(http.StatusOK, map[string]string{"accessToken": token})
}

func (s *Server) handleRegister(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Email and password are required"})
	}

	s.mu.Lock()
	if _, exists := s.users[req.Email]; exists {
		s.mu.Unlock()
		return c.JSON(http.StatusConflict, map[string]string{"message": "Account already exists"})
	}
	s.users[req.Email] = req.Password
	s.mu.Unlock()

	token := s.issueTokens(c, req.Email)
	log.Printf("[DEVSERVER] Registered %s", req.Email)
	return c.JSON(http.StatusCreated, map[string]string{"accessToken": token})
}

func (s *Server) handleRefresh(c echo.Context) error {
	s.mu.Lock()
	s.refreshCalls++
	delay := s.refreshDelay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	cookie, err := c.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Missing refresh credential"})
	}

	s.mu.Lock()
	rt, found := s.refreshTokens[cookie.Value]
	if !found {
		s.mu.Unlock()
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unknown refresh credential"})
	}
	if rt.used {
		// Reuse of a rotated credential: revoke the whole family
		email := rt.email
		for value, other := range s.refreshTokens {
			if other.email == email {
				delete(s.refreshTokens, value)
			}
		}
		s.mu.Unlock()
		log.Printf("[DEVSERVER] Refresh credential reuse detected for %s, session revoked", email)
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Refresh credential reuse detected"})
	}
	rt.used = true
	email := rt.email
	s.mu.Unlock()

	token := s.issueTokens(c, email)
	return c.JSON(http.StatusOK, map[string]string{"accessToken": token})
}

func (s *Server) handleLogout(c echo.Context) error {
	if cookie, err := c.Cookie(RefreshCookieName); err == nil && cookie.Value != "" {
		s.mu.Lock()
		if rt, found := s.refreshTokens[cookie.Value]; found {
			for value, other := range s.refreshTokens {
				if other.email == rt.email {
					delete(s.refreshTokens, value)
				}
			}
		}
		s.mu.Unlock()
	}

	// Instruct the client to drop the cookie
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
	})
	return c.NoContent(http.StatusNoContent)
}

// issueTokens mints a fresh access token and rotates the refresh cookie
func (s *Server) issueTokens(c echo.Context, email string) string {
	token := uuid.New().String()
	refresh := uuid.New().String()

	s.mu.Lock()
	s.accessTokens[token] = accessToken{email: email, expiresAt: s.now().Add(accessTokenTTL)}
	s.refreshTokens[refresh] = &refreshToken{email: email}
	s.mu.Unlock()

	c.SetCookie(&http.Cookie{
		Name:     RefreshCookieName,
		Value:    refresh,
		Path:     "/auth",
		MaxAge:   int((30 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

func (s *Server) handleListSubscriptions(c echo.Context) error {
	s.mu.Lock()
	subs := make([]subscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		subs = append(subs, sub)
	}
	s.mu.Unlock()
	return c.JSON(http.StatusOK, subs)
}

type createSubscriptionRequest struct {
	RouteID string `json:"routeId"`
	StopID  string `json:"stopId"`
}

func (s *Server) handleCreateSubscription(c echo.Context) error {
	var req createSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}
	if req.RouteID == "" || req.StopID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "routeId and stopId are required"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, known := s.routes[req.RouteID]; !known {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "Unknown route"})
	}

	// A replayed request with the same idempotency key returns the
	// subscription created by the first attempt.
	key := c.Request().Header.Get("Idempotency-Key")
	if key != "" {
		if sub, seen := s.idempotency[key]; seen {
			return c.JSON(http.StatusCreated, sub)
		}
	}

	sub := subscription{ID: uuid.New().String(), RouteID: req.RouteID, StopID: req.StopID}
	s.subscriptions[sub.ID] = sub
	if key != "" {
		s.idempotency[key] = sub
	}
	log.Printf("[DEVSERVER] Created subscription %s (route %s, stop %s)", sub.ID, sub.RouteID, sub.StopID)
	return c.JSON(http.StatusCreated, sub)
}

func (s *Server) handleDeleteSubscription(c echo.Context) error {
	id := c.Param("id")

	s.mu.Lock()
	_, found := s.subscriptions[id]
	delete(s.subscriptions, id)
	s.mu.Unlock()

	if !found {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "Subscription not found"})
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListRoutes(c echo.Context) error {
	s.mu.Lock()
	routes := make([]route, 0, len(s.routes))
	for _, r := range s.routes {
		routes = append(routes, r)
	}
	s.mu.Unlock()
	return c.JSON(http.StatusOK, routes)
}

func (s *Server) handleListStops(c echo.Context) error {
	routeID := c.Param("id")

	s.mu.Lock()
	stops, found := s.stops[routeID]
	s.mu.Unlock()

	if !found {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "Unknown route"})
	}
	return c.JSON(http.StatusOK, stops)
}

// handleArrivals serves synthetic predictions: three upcoming vehicles
// with deterministic spacing derived from the route and stop, so repeated
// calls within a minute look stable.
func (s *Server) handleArrivals(c echo.Context) error {
	routeID := c.Param("routeID")
	stopID := c.Param("stopID")

	s.mu.Lock()
	r, found := s.routes[routeID]
	s.mu.Unlock()
	if !found {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "Unknown route"})
	}

	base := s.now().Truncate(time.Minute)
	seed := hashSeed(routeID + "/" + stopID)
	headway := time.Duration(4+seed%5) * time.Minute
	first := time.Duration(1+seed%4) * time.Minute

	arrivals := make([]arrival, 0, 3)
	for i := 0; i < 3; i++ {
		arrivals = append(arrivals, arrival{
			RouteID:     routeID,
			StopID:      stopID,
			ExpectedAt:  base.Add(first + time.Duration(i)*headway),
			VehicleID:   fmt.Sprintf("v-%d", seed%900+100+uint32(i)),
			Destination: r.Name,
		})
	}
	return c.JSON(http.StatusOK, arrivals)
}

func hashSeed(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32()
}
