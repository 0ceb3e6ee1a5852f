// Package client issues authenticated requests against the transit API.
// It attaches the bearer token, detects 401 responses, coordinates a
// single transparent refresh and retries the original call exactly once.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/transitwatch/transitwatch/pkg/tokenstore"
	"github.com/transitwatch/transitwatch/pkg/utils"
)

// referenceDataTTL bounds how long route and stop lookups are cached
const referenceDataTTL = 10 * time.Minute

// TokenRefresher exchanges the session credential for a new access token
type TokenRefresher interface {
	Refresh(ctx context.Context) (string, error)
}

// Client is the authenticated transit API client
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     tokenstore.Store
	refresher  TokenRefresher
	refCache   *utils.TTLCache
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the HTTP client. It should carry the same
// cookie jar as the auth controller so the session credential is included.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new transit API client
func NewClient(baseURL string, tokens tokenstore.Store, refresher TokenRefresher, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: utils.NewDefaultHTTPClient(),
		tokens:     tokens,
		refresher:  refresher,
		refCache:   utils.NewTTLCache(referenceDataTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do issues an authenticated request. A 401 response triggers one token
// refresh and one retry with the new token; the retried response is
// returned whatever its status, so a broken backend cannot cause a retry
// loop. Responses other than 401 pass through uninterpreted. On refresh
// failure the refresh error is returned and the call is not reissued.
//
// The body is serialized once and replayed from memory on retry. Non-GET
// requests carry an Idempotency-Key header that is reused on the retry so
// the backend can deduplicate a call whose first attempt had side effects.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	idempotencyKey := ""
	if method != http.MethodGet && method != http.MethodHead {
		idempotencyKey = uuid.NewString()
	}

	token, _ := c.tokens.Get()
	resp, err := c.send(ctx, method, path, payload, token, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	utils.SafeCloseResponse(resp)

	newToken, err := c.refresher.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	retry, err := c.send(ctx, method, path, payload, newToken, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("retried request failed: %w", err)
	}
	return retry, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token, idempotencyKey string) (*http.Response, error) {
	var bodyReader *bytes.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	return c.httpClient.Do(req)
}

// getJSON issues a GET and decodes a 2xx response into target. Non-2xx
// responses become an HTTPError without further interpretation.
func (c *Client) getJSON(ctx context.Context, path string, target interface{}) error {
	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer utils.SafeCloseResponse(resp)

	if err := utils.CheckHTTPResponse(resp, c.baseURL+path); err != nil {
		return err
	}

	return decodeBody(resp, target)
}

func decodeBody(resp *http.Response, target interface{}) error {
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
