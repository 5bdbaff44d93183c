package model

// UserProfile is the signed-in user as returned by the backend.
type UserProfile struct {
	ID            string `json:"_id"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email"`
	Role          string `json:"role,omitempty"` // "customer", "seller" or "admin"
	EmailVerified bool   `json:"isEmailVerified,omitempty"`
}

// Session is the client's view of authentication state.
type Session struct {
	User          *UserProfile `json:"user"`
	Authenticated bool         `json:"authenticated"`
	Initializing  bool         `json:"initializing"`
}

// NewSession returns the state at process start: unresolved.
func NewSession() Session {
	return Session{Initializing: true}
}

// CanDecide reports whether authorization-dependent decisions (redirects,
// gating protected content) may be made yet.
func (s Session) CanDecide() bool {
	return !s.Initializing
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the sign-up request body.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// LoginResult is the decoded login response.
type LoginResult struct {
	User  *UserProfile `json:"user"`
	Token string       `json:"token,omitempty"`
}
