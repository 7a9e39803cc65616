package auth

import (
	"context"
	"time"
)

// ActivityEventType names a session activity
type ActivityEventType string

const (
	ActivityEventSignInSuccess   ActivityEventType = "auth.signin.success"
	ActivityEventSignInFailure   ActivityEventType = "auth.signin.failure"
	ActivityEventSignUp          ActivityEventType = "auth.signup"
	ActivityEventSignOut         ActivityEventType = "auth.signout"
	ActivityEventAccountDeleted  ActivityEventType = "auth.account.deleted"
	ActivityEventOrphanedSession ActivityEventType = "auth.session.orphaned"
	ActivityEventSessionResolved ActivityEventType = "auth.session.resolved"
	ActivityEventAvatarUpdated   ActivityEventType = "auth.profile.avatar"
)

// ActorRef is whoever triggered the event. Failed sign ins carry no ID.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent describes one session change for audit trails
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	Role       UserRole
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink receives activity events. SessionStore logs sink errors
// and carries on.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc lets a plain function act as a sink
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
