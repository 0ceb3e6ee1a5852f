package auth

// State represents the authentication state of the client
type State int

const (
	// StateUnauthenticated means no session exists; protected views redirect to login
	StateUnauthenticated State = iota
	// StateAuthenticating means a login or bootstrap refresh is in flight
	StateAuthenticating
	// StateAuthenticated means an access token is held and protected views render
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}
