package utils

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// HTTPClientConfig holds configuration for HTTP client creation
type HTTPClientConfig struct {
	Timeout time.Duration
	// Jar carries the session cookie between auth calls. Callers never
	// inspect the cookie contents; the transport attaches it.
	Jar http.CookieJar
}

// DefaultHTTPClientConfig returns default HTTP client configuration
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout: 30 * time.Second,
	}
}

// NewHTTPClient creates a new HTTP client with the given configuration
func NewHTTPClient(config HTTPClientConfig) *http.Client {
	return &http.Client{
		Timeout: config.Timeout,
		Jar:     config.Jar,
	}
}

// NewDefaultHTTPClient creates a new HTTP client with default configuration
func NewDefaultHTTPClient() *http.Client {
	return NewHTTPClient(DefaultHTTPClientConfig())
}

// HTTPError represents an HTTP error with status code and message
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// CheckHTTPResponse checks if HTTP response indicates an error
func CheckHTTPResponse(resp *http.Response, url string) error {
	if resp.StatusCode >= 400 {
		return HTTPError{
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
			URL:        url,
		}
	}
	return nil
}

// SafeCloseResponse drains and closes an HTTP response body so the
// underlying connection can be reused
func SafeCloseResponse(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		if err := resp.Body.Close(); err != nil {
			log.Printf("Warning: failed to close HTTP response body: %v", err)
		}
	}
}
