package auth

import (
	"context"
)

var userCtxKey = &contextKey{"user"}
var stateCtxKey = &contextKey{"session_state"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	if raw == nil {
		return nil, false
	}
	return raw, ok
}

// WithSessionContext stores a session state snapshot together with its user
func WithSessionContext(r context.Context, state SessionState) context.Context {
	r = context.WithValue(r, stateCtxKey, state.Clone())
	if state.User != nil {
		r = WithContext(r, state.User.Clone())
	}
	return r
}

// SessionFromContext returns the session state stored with WithSessionContext
func SessionFromContext(ctx context.Context) (SessionState, bool) {
	raw, ok := ctx.Value(stateCtxKey).(SessionState)
	return raw, ok
}

// RoleFromContext returns the role of the user in the context
func RoleFromContext(ctx context.Context) (UserRole, bool) {
	user, ok := FromContext(ctx)
	if !ok {
		return "", false
	}
	return user.Role, true
}
