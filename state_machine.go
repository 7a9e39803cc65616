package auth

import "time"

// SessionStatus names the states of the session machine
type SessionStatus string

const (
	StatusUninitialized       SessionStatus = "uninitialized"
	StatusUnauthenticated     SessionStatus = "unauthenticated"
	StatusPendingVerification SessionStatus = "pending_verification"
	StatusAuthenticated       SessionStatus = "authenticated"
	StatusError               SessionStatus = "error"
)

// SessionState is what the UI renders from
type SessionState struct {
	User                *User
	Loading             bool
	Error               string
	ErrorKind           CredentialErrorKind
	PendingVerification bool
	Initialized         bool
	UpdatedAt           time.Time
}

// InitialSessionState is the state of a freshly mounted store
func InitialSessionState() SessionState {
	return SessionState{Loading: true}
}

// Status derives the named state. Pending verification wins over an error
// so the verification screen stays reachable.
func (s SessionState) Status() SessionStatus {
	switch {
	case !s.Initialized:
		return StatusUninitialized
	case s.PendingVerification:
		return StatusPendingVerification
	case s.User != nil:
		return StatusAuthenticated
	case s.Error != "":
		return StatusError
	default:
		return StatusUnauthenticated
	}
}

// IsAuthenticated reports whether role gated content may be rendered
func (s SessionState) IsAuthenticated() bool {
	return s.Initialized && s.User != nil
}

// UserID returns the current user id or an empty string
func (s SessionState) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// Clone copies the state and its user
func (s SessionState) Clone() SessionState {
	s.User = s.User.Clone()
	return s
}

// SessionEvent is the input of TransitionSession
type SessionEvent interface {
	sessionEvent()
}

// EventSessionCleared provider reported no session, or the store dropped it
type EventSessionCleared struct{}

// EventUnverifiedSuppressed an unverified session arrived while verification is pending
type EventUnverifiedSuppressed struct{}

// EventProfileResolved the session matched a profile
type EventProfileResolved struct {
	User *User
}

// EventProfileMissing the session has no profile; the provider was signed out
type EventProfileMissing struct{}

// EventResolveFailed the profile lookup failed
type EventResolveFailed struct {
	Err error
}

// EventOperationStarted a form operation (sign in, sign up) is in flight
type EventOperationStarted struct{}

// EventOperationFailed a form operation failed with a user facing message
type EventOperationFailed struct {
	Kind    CredentialErrorKind
	Message string
}

// EventOperationFinished a form operation completed without touching the session
type EventOperationFinished struct{}

// EventSignedUp the account was created and now awaits verification
type EventSignedUp struct{}

// EventPendingVerification explicit override of the pending flag
type EventPendingVerification struct {
	Pending bool
}

// EventUserUpdated the profile of the current user changed
type EventUserUpdated struct {
	User *User
}

func (EventSessionCleared) sessionEvent()       {}
func (EventUnverifiedSuppressed) sessionEvent() {}
func (EventProfileResolved) sessionEvent()      {}
func (EventProfileMissing) sessionEvent()       {}
func (EventResolveFailed) sessionEvent()        {}
func (EventOperationStarted) sessionEvent()     {}
func (EventOperationFailed) sessionEvent()      {}
func (EventOperationFinished) sessionEvent()    {}
func (EventSignedUp) sessionEvent()             {}
func (EventPendingVerification) sessionEvent()  {}
func (EventUserUpdated) sessionEvent()          {}

// IsListenerEvent reports whether the event ends a provider callback.
// Those are the only events that initialize the session.
func IsListenerEvent(ev SessionEvent) bool {
	switch ev.(type) {
	case EventSessionCleared, EventUnverifiedSuppressed, EventProfileResolved,
		EventProfileMissing, EventResolveFailed:
		return true
	default:
		return false
	}
}

// TransitionSession is the pure transition function of the session machine.
// Listener outcomes always end with Initialized=true and Loading=false.
func TransitionSession(state SessionState, ev SessionEvent) SessionState {
	next := state

	switch e := ev.(type) {
	case EventSessionCleared:
		next.User = nil
	case EventUnverifiedSuppressed:
		next.User = nil
	case EventProfileResolved:
		next.User = e.User.Clone()
		if next.PendingVerification && next.User != nil && !next.User.EmailVerified {
			next.User = nil
		}
		next.Error = ""
		next.ErrorKind = ""
	case EventProfileMissing:
		next.User = nil
	case EventResolveFailed:
		next.User = nil
		next.ErrorKind = CredentialUnknown
		next.Error = CredentialUnknown.Message()
		if e.Err != nil {
			next.Error = e.Err.Error()
		}
	case EventOperationStarted:
		next.Loading = true
		next.Error = ""
		next.ErrorKind = ""
		return next
	case EventOperationFailed:
		next.Loading = false
		next.ErrorKind = e.Kind
		next.Error = e.Message
		if next.Error == "" {
			next.Error = e.Kind.Message()
		}
		return next
	case EventOperationFinished:
		next.Loading = false
		return next
	case EventSignedUp:
		next.User = nil
		next.PendingVerification = true
		next.Loading = false
		return next
	case EventPendingVerification:
		next.PendingVerification = e.Pending
		if e.Pending && next.User != nil && !next.User.EmailVerified {
			next.User = nil
		}
		return next
	case EventUserUpdated:
		if next.User != nil && e.User != nil && next.User.ID == e.User.ID {
			next.User = e.User.Clone()
		}
		return next
	default:
		return next
	}

	next.Initialized = true
	next.Loading = false
	return next
}
