package utils

import (
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewDefaultHTTPClient(t *testing.T) {
	client := NewDefaultHTTPClient()

	if client == nil {
		t.Fatal("NewDefaultHTTPClient returned nil")
	}

	if client.Timeout != 30*time.Second {
		t.Errorf("Expected timeout 30s, got %v", client.Timeout)
	}

	if client.Jar != nil {
		t.Error("Expected no cookie jar by default")
	}
}

func TestNewHTTPClient_WithJar(t *testing.T) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New failed: %v", err)
	}

	client := NewHTTPClient(HTTPClientConfig{
		Timeout: 5 * time.Second,
		Jar:     jar,
	})

	if client.Timeout != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %v", client.Timeout)
	}

	if client.Jar != jar {
		t.Error("Expected configured cookie jar to be used")
	}
}

func TestCheckHTTPResponse(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    bool
	}{
		{name: "ok", statusCode: http.StatusOK, wantErr: false},
		{name: "created", statusCode: http.StatusCreated, wantErr: false},
		{name: "redirect", statusCode: http.StatusFound, wantErr: false},
		{name: "unauthorized", statusCode: http.StatusUnauthorized, wantErr: true},
		{name: "not found", statusCode: http.StatusNotFound, wantErr: true},
		{name: "server error", statusCode: http.StatusInternalServerError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{
				StatusCode: tt.statusCode,
				Status:     http.StatusText(tt.statusCode),
			}

			err := CheckHTTPResponse(resp, "http://example.com/test")
			if tt.wantErr && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}

			if tt.wantErr {
				httpErr, ok := err.(HTTPError)
				if !ok {
					t.Fatalf("Expected HTTPError, got %T", err)
				}
				if httpErr.StatusCode != tt.statusCode {
					t.Errorf("Expected status %d, got %d", tt.statusCode, httpErr.StatusCode)
				}
			}
		})
	}
}

func TestSafeCloseResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("body content")); err != nil {
			t.Errorf("Failed to write response: %v", err)
		}
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}

	// Should not panic, even when called twice or with nil
	SafeCloseResponse(resp)
	SafeCloseResponse(nil)
}
