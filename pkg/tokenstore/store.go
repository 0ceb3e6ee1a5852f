// Package tokenstore holds the current access token. The token is an
// opaque bearer string; presence in the store is what makes the session
// count as authenticated.
package tokenstore

// Store defines the interface for access token persistence
type Store interface {
	// Get returns the current token and whether one is set
	Get() (string, bool)

	// Set replaces the current token as a whole value
	Set(token string) error

	// Clear removes the current token. Clearing an empty store is a no-op.
	Clear() error
}
