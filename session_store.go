package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"

	"github.com/carebridge/go-care-auth/blob"
)

// SessionMetrics receives session counters
type SessionMetrics interface {
	SessionTransition(from, to SessionStatus)
	SignInFailed(kind CredentialErrorKind)
	OrphanedSession()
}

type noopSessionMetrics struct{}

func (noopSessionMetrics) SessionTransition(SessionStatus, SessionStatus) {}
func (noopSessionMetrics) SignInFailed(CredentialErrorKind)               {}
func (noopSessionMetrics) OrphanedSession()                               {}

// SessionObserver is called with every new state
type SessionObserver func(state SessionState)

// SessionStore owns the authenticated session. It reconciles provider
// callbacks, the profile record and the pending verification flag into a
// single SessionState.
type SessionStore struct {
	provider IdentityProvider
	profiles ProfileStore
	resolver *ProfileResolver
	avatars  blob.Store
	logger   Logger
	activity ActivitySink
	metrics  SessionMetrics
	now      func() time.Time

	mu          sync.Mutex
	state       SessionState
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	closed      bool
	generation  uint64
	seq         uint64
	unsubscribe func()
	observers   map[uint64]SessionObserver
	nextObsID   uint64
	pending     []delivery
	delivering  bool
}

// delivery is a snapshot waiting for its observers. Deliveries leave the
// queue in the order the state changed.
type delivery struct {
	state     SessionState
	observers []uint64
}

// SessionStoreOption configures a SessionStore
type SessionStoreOption func(*SessionStore)

// WithStoreLogger sets the logger
func WithStoreLogger(logger Logger) SessionStoreOption {
	return func(s *SessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStoreActivitySink records session activity
func WithStoreActivitySink(sink ActivitySink) SessionStoreOption {
	return func(s *SessionStore) {
		s.activity = normalizeActivitySink(sink)
	}
}

// WithStoreMetrics reports transitions and failures
func WithStoreMetrics(m SessionMetrics) SessionStoreOption {
	return func(s *SessionStore) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithStoreClock injects a custom clock (useful for tests).
func WithStoreClock(clock func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithStoreAvatars enables UpdateAvatar
func WithStoreAvatars(store blob.Store) SessionStoreOption {
	return func(s *SessionStore) {
		s.avatars = store
	}
}

// NewSessionStore creates a store, call Start to arm the provider listener
func NewSessionStore(provider IdentityProvider, profiles ProfileStore, opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		provider:  provider,
		profiles:  profiles,
		resolver:  NewProfileResolver(profiles),
		logger:    defLogger{},
		activity:  noopActivitySink{},
		metrics:   noopSessionMetrics{},
		now:       time.Now,
		state:     InitialSessionState(),
		observers: map[uint64]SessionObserver{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.resolver.logger = s.logger

	return s
}

// Start mounts the store. The provider reports the current session right
// away, so Start returns after the first callback when the provider calls
// listeners synchronously.
func (s *SessionStore) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.arm()
	return nil
}

// Close unmounts the store. In flight continuations are dropped and no
// observer is called afterwards.
func (s *SessionStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.generation++
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	cancel := s.cancel
	s.observers = map[uint64]SessionObserver{}
	s.pending = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

// State returns a copy of the current state
func (s *SessionStore) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// User returns the current user, nil when signed out
func (s *SessionStore) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.User.Clone()
}

// Subscribe registers an observer and calls it with the current state
func (s *SessionStore) Subscribe(fn SessionObserver) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return func() {}
	}
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = fn
	s.pending = append(s.pending, delivery{state: s.state.Clone(), observers: []uint64{id}})
	s.mu.Unlock()

	s.deliver()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// SignIn authenticates with the provider. On failure the classified message
// is stored in the state and the error is returned as well.
func (s *SessionStore) SignIn(ctx context.Context, email, password string) error {
	if !s.applyOperation(EventOperationStarted{}) {
		return ErrStoreClosed
	}

	email = strings.TrimSpace(email)
	session, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		kind := ClassifyCredentialError(err)
		s.logger.Warn("sign in failed for %s: %s", email, kind)
		s.metrics.SignInFailed(kind)
		s.emit(ctx, ActivityEventSignInFailure, ActorRef{Type: "unknown"}, "", "", map[string]any{
			"email": email,
			"kind":  string(kind),
		})
		s.applyOperation(EventOperationFailed{Kind: kind})
		return err
	}

	userID := ""
	if session != nil {
		userID = session.UserID
	}
	s.emit(ctx, ActivityEventSignInSuccess, ActorRef{ID: userID, Type: "user"}, userID, "", nil)
	s.applyOperation(EventOperationFinished{})
	return nil
}

// SignUpRequest is the registration form
type SignUpRequest struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Name     string   `json:"name"`
	Role     UserRole `json:"role"`
}

// Validate will run validation rules
func (r SignUpRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Role, validation.Required, validation.In(RolePatient, RoleTherapist)),
	)
}

// SignUp creates the provider account and its profile, dispatches the
// verification email and leaves the store signed out with the pending
// verification flag raised.
func (s *SessionStore) SignUp(ctx context.Context, email, password, name string, role UserRole) (bool, error) {
	req := SignUpRequest{
		Email:    strings.TrimSpace(email),
		Password: password,
		Name:     strings.TrimSpace(name),
		Role:     role,
	}

	if err := req.Validate(); err != nil {
		kind := CredentialUnknown
		if verrs, ok := err.(validation.Errors); ok {
			if _, bad := verrs["email"]; bad {
				kind = CredentialInvalidEmail
			}
		}
		s.applyOperation(EventOperationFailed{Kind: kind, Message: err.Error()})
		return false, errors.Wrap(err, errors.CategoryValidation, "invalid sign up").
			WithTextCode(TextCodeInvalidSignUp).
			WithCode(errors.CodeBadRequest)
	}

	if !s.applyOperation(EventOperationStarted{}) {
		return false, ErrStoreClosed
	}

	// raised before the account exists so the listener drops the
	// unverified session the provider reports on creation
	wasPending := s.State().PendingVerification
	s.SetPendingVerification(true)

	session, err := s.provider.CreateAccount(ctx, req.Email, req.Password)
	if err != nil {
		s.failSignUp(err, wasPending)
		return false, err
	}
	if session == nil || session.UserID == "" {
		s.failSignUp(ErrNoActiveSession, wasPending)
		return false, ErrNoActiveSession
	}

	profile := &Profile{
		ID:            session.UserID,
		Name:          req.Name,
		DisplayName:   req.Name,
		Email:         req.Email,
		EmailVerified: false,
		Role:          req.Role,
	}

	if err := s.profiles.SetProfile(ctx, profile); err != nil {
		s.logger.Error("sign up profile write failed for %s: %v", session.UserID, err)
		if derr := s.provider.DeleteCurrentAccount(ctx); derr != nil {
			s.logger.Error("sign up rollback failed for %s: %v", session.UserID, derr)
		}
		s.failSignUp(err, wasPending)
		return false, err
	}

	if err := s.provider.SendVerificationEmail(ctx, session); err != nil {
		s.logger.Warn("verification email not sent to %s: %v", req.Email, err)
	}

	s.emit(ctx, ActivityEventSignUp, ActorRef{ID: session.UserID, Type: "user"}, session.UserID, req.Role, map[string]any{
		"email": req.Email,
	})

	s.applyOperation(EventSignedUp{})
	return true, nil
}

// failSignUp restores the pending flag an earlier sign up may have raised
func (s *SessionStore) failSignUp(err error, wasPending bool) {
	kind := ClassifyCredentialError(err)
	s.logger.Warn("sign up failed: %v", err)
	s.applyOperation(EventPendingVerification{Pending: wasPending})
	msg := kind.Message()
	if HasTextCode(err, TextCodeEmailInUse) {
		msg = err.Error()
	}
	s.applyOperation(EventOperationFailed{Kind: kind, Message: msg})
}

// SignOut clears local state first, then signs out at the provider and
// re-arms the listener. Provider failures are returned but the local state
// stays cleared.
func (s *SessionStore) SignOut(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	userID := s.state.UserID()
	s.generation++
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	armed := s.started
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	s.applyOperation(EventSessionCleared{})

	err := s.provider.SignOut(ctx)
	if err != nil {
		s.logger.Error("provider sign out failed: %v", err)
	}

	s.emit(ctx, ActivityEventSignOut, ActorRef{ID: userID, Type: "user"}, userID, "", nil)

	if armed {
		s.arm()
	}

	return err
}

// DeleteAccount removes the profile and then the provider account. It is a
// no-op without an active session.
func (s *SessionStore) DeleteAccount(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	user := s.state.User.Clone()
	s.mu.Unlock()

	if user == nil {
		return nil
	}

	if err := s.profiles.DeleteProfile(ctx, user.ID); err != nil {
		s.logger.Error("delete profile %s failed: %v", user.ID, err)
		return err
	}

	if err := s.provider.DeleteCurrentAccount(ctx); err != nil {
		s.logger.Error("delete provider account %s failed: %v", user.ID, err)
		return err
	}

	s.emit(ctx, ActivityEventAccountDeleted, ActorRef{ID: user.ID, Type: "user"}, user.ID, user.Role, nil)
	s.applyOperation(EventSessionCleared{})
	return nil
}

// SetPendingVerification overrides the pending verification flag
func (s *SessionStore) SetPendingVerification(pending bool) {
	s.applyOperation(EventPendingVerification{Pending: pending})
}

// UpdateAvatar uploads the image, stores its URL on the profile and
// publishes the updated user
func (s *SessionStore) UpdateAvatar(ctx context.Context, data []byte, contentType string) (*User, error) {
	if s.avatars == nil {
		return nil, errors.New("avatar storage not configured", errors.CategoryInternal)
	}

	user := s.User()
	if user == nil {
		return nil, ErrNoActiveSession
	}

	ref, err := s.avatars.Upload(ctx, blob.AvatarPath(user.ID, extensionFor(contentType)), data, contentType)
	if err != nil {
		return nil, err
	}

	url, err := s.avatars.DownloadURL(ctx, ref)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetProfile(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	profile.AvatarURL = url

	if err := s.profiles.SetProfile(ctx, profile); err != nil {
		return nil, err
	}

	user.AvatarURL = url
	s.applyOperation(EventUserUpdated{User: user})
	s.emit(ctx, ActivityEventAvatarUpdated, ActorRef{ID: user.ID, Type: "user"}, user.ID, user.Role, map[string]any{
		"path": ref.Path,
	})

	return user.Clone(), nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "jpg"
	}
}

// arm registers a fresh provider listener for the current generation
func (s *SessionStore) arm() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	generation := s.generation
	s.mu.Unlock()

	unsubscribe := s.provider.OnSessionChange(func(session *ProviderSession) {
		s.handleSession(generation, session)
	})

	s.mu.Lock()
	if s.closed || s.generation != generation {
		s.mu.Unlock()
		if unsubscribe != nil {
			unsubscribe()
		}
		return
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
}

// handleSession runs one provider callback on the provider's goroutine
func (s *SessionStore) handleSession(generation uint64, session *ProviderSession) {
	s.mu.Lock()
	if s.closed || s.generation != generation {
		s.mu.Unlock()
		return
	}
	s.seq++
	seq := s.seq
	pending := s.state.PendingVerification
	ctx := s.ctx
	s.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	ev := s.resolveSession(ctx, generation, seq, session, pending)
	s.apply(ev, generation, seq)
}

func (s *SessionStore) resolveSession(ctx context.Context, generation, seq uint64, session *ProviderSession, pending bool) SessionEvent {
	if session == nil {
		return EventSessionCleared{}
	}

	if !session.EmailVerified && pending {
		s.logger.Debug("unverified session %s suppressed while verification is pending", session.UserID)
		return EventUnverifiedSuppressed{}
	}

	user, err := s.resolver.Resolve(ctx, session)
	if err == nil {
		if s.isCurrent(generation, seq) {
			s.emit(ctx, ActivityEventSessionResolved, ActorRef{ID: user.ID, Type: "user"}, user.ID, user.Role, nil)
		}
		return EventProfileResolved{User: user}
	}

	if IsProfileNotFound(err) {
		if !s.isCurrent(generation, seq) {
			return EventProfileMissing{}
		}
		s.logger.Warn("session %s has no profile, signing out", session.UserID)
		s.metrics.OrphanedSession()
		s.emit(ctx, ActivityEventOrphanedSession, ActorRef{ID: session.UserID, Type: "user"}, session.UserID, "", map[string]any{
			"email": session.Email,
		})
		if serr := s.provider.SignOut(ctx); serr != nil {
			s.logger.Error("forced sign out of %s failed: %v", session.UserID, serr)
		}
		return EventProfileMissing{}
	}

	s.logger.Error("resolve profile for %s failed: %v", session.UserID, err)
	return EventResolveFailed{Err: err}
}

func (s *SessionStore) isCurrent(generation, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.generation == generation && s.seq == seq
}

// apply runs a listener outcome if its callback is still the latest one
func (s *SessionStore) apply(ev SessionEvent, generation, seq uint64) bool {
	s.mu.Lock()
	if s.closed || s.generation != generation || s.seq != seq {
		s.mu.Unlock()
		return false
	}
	return s.transitionLocked(ev)
}

// applyOperation runs an event raised by a store method
func (s *SessionStore) applyOperation(ev SessionEvent) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	return s.transitionLocked(ev)
}

// transitionLocked must be called with mu held, it releases it
func (s *SessionStore) transitionLocked(ev SessionEvent) bool {
	prev := s.state.Status()
	s.state = TransitionSession(s.state, ev)
	s.state.UpdatedAt = s.now()
	next := s.state.Status()

	ids := make([]uint64, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	s.pending = append(s.pending, delivery{state: s.state.Clone(), observers: ids})
	s.mu.Unlock()

	if prev != next {
		s.metrics.SessionTransition(prev, next)
	}

	s.deliver()
	return true
}

// deliver drains the snapshot queue. Only one goroutine drains at a time,
// so an observer never sees an older snapshot after a newer one. A
// transition raised while another goroutine (or an observer up the stack)
// is draining is delivered by that drainer.
func (s *SessionStore) deliver() {
	s.mu.Lock()
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true

	for len(s.pending) > 0 {
		d := s.pending[0]
		s.pending[0] = delivery{}
		s.pending = s.pending[1:]

		observers := make([]SessionObserver, 0, len(d.observers))
		for _, id := range d.observers {
			if fn, ok := s.observers[id]; ok {
				observers = append(observers, fn)
			}
		}

		s.mu.Unlock()
		for _, fn := range observers {
			s.notify(fn, d.state.Clone())
		}
		s.mu.Lock()
	}

	s.delivering = false
	s.mu.Unlock()
}

func (s *SessionStore) notify(fn SessionObserver, state SessionState) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("session observer panicked: %v", r)
		}
	}()
	fn(state)
}

func (s *SessionStore) emit(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, role UserRole, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		UserID:     userID,
		Role:       role,
		Metadata:   metadata,
		OccurredAt: s.now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := normalizeActivitySink(s.activity).Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}
