package auth

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// SessionListener receives the provider's current session, nil when signed out
type SessionListener func(session *ProviderSession)

// IdentityProvider is the remote authentication service. Implementations must
// call a listener registered through OnSessionChange once with the current
// session right after registration, then on every change.
type IdentityProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*ProviderSession, error)
	CreateAccount(ctx context.Context, email, password string) (*ProviderSession, error)
	SendVerificationEmail(ctx context.Context, session *ProviderSession) error
	SignOut(ctx context.Context) error
	OnSessionChange(listener SessionListener) (unsubscribe func())
	DeleteCurrentAccount(ctx context.Context) error
}

// ProfileStore holds application profiles in the users collection.
// GetProfile returns ErrProfileNotFound when no record exists.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*Profile, error)
	SetProfile(ctx context.Context, profile *Profile) error
	DeleteProfile(ctx context.Context, id string) error
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetVerificationExpiration() int
	GetIssuer() string
	GetAudience() []string
	GetVerificationURL() string
	GetMaxLoginAttempts() int
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

// DefaultLogger returns the printf logger used when none is configured
func DefaultLogger() Logger {
	return defLogger{}
}

// NopLogger discards everything
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
