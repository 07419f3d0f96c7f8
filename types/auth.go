package types

// AuthState is the per-request authentication outcome. It is computed once
// from the bearer token before any operation runs and never changes after.
type AuthState struct {
	Authenticated bool
	UserID        int64
	Email         string
}

// Anonymous is the state of a request without a valid token.
var Anonymous = AuthState{}
