package auth

import (
	"errors"
	"fmt"
	"strings"
)

// ErrLoginRequired is returned by the gate when no authenticated session exists
var ErrLoginRequired = errors.New("login required")

// LoginError carries the user-displayable message from a rejected login
// or registration attempt
type LoginError struct {
	StatusCode int
	Message    string
}

func (e *LoginError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("login failed with status %d", e.StatusCode)
}

// RefreshError indicates the session credential was rejected or the refresh
// call failed. By the time a caller sees it, the token store has already
// been cleared and the session terminated.
type RefreshError struct {
	StatusCode int
	Err        error
}

func (e *RefreshError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token refresh failed: %v", e.Err)
	}
	return fmt.Sprintf("token refresh rejected with status %d", e.StatusCode)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// ValidationError aggregates registration form errors. The message list is
// computed fresh on every submit and wholly replaces any previous errors.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}
