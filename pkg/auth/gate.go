package auth

// Gate guards views that require an authenticated session. It is a pure
// predicate over the controller's current state and must be consulted on
// every access, not cached: a logout or failed refresh elsewhere revokes
// access immediately.
type Gate struct {
	controller *Controller
}

// Allow reports whether protected content may render
func (g *Gate) Allow() bool {
	return g.controller.State() == StateAuthenticated
}

// Check returns ErrLoginRequired when no authenticated session exists
func (g *Gate) Check() error {
	if !g.Allow() {
		return ErrLoginRequired
	}
	return nil
}
