package auth_test

import (
	"context"
	"sync"

	auth "github.com/carebridge/go-care-auth"
	"github.com/stretchr/testify/mock"
)

// MockIdentityProvider implements auth.IdentityProvider. Listener
// registration is real so tests can drive provider callbacks with Emit.
type MockIdentityProvider struct {
	mock.Mock

	mu        sync.Mutex
	listeners map[int]auth.SessionListener
	nextID    int
	armed     int
	current   *auth.ProviderSession
}

func NewMockIdentityProvider(current *auth.ProviderSession) *MockIdentityProvider {
	return &MockIdentityProvider{
		listeners: map[int]auth.SessionListener{},
		current:   current,
	}
}

func (m *MockIdentityProvider) SignInWithPassword(ctx context.Context, email, password string) (*auth.ProviderSession, error) {
	args := m.Called(ctx, email, password)
	session, _ := args.Get(0).(*auth.ProviderSession)
	return session, args.Error(1)
}

func (m *MockIdentityProvider) CreateAccount(ctx context.Context, email, password string) (*auth.ProviderSession, error) {
	args := m.Called(ctx, email, password)
	session, _ := args.Get(0).(*auth.ProviderSession)
	return session, args.Error(1)
}

func (m *MockIdentityProvider) SendVerificationEmail(ctx context.Context, session *auth.ProviderSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockIdentityProvider) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockIdentityProvider) DeleteCurrentAccount(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockIdentityProvider) OnSessionChange(listener auth.SessionListener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = listener
	m.armed++
	current := m.current
	m.mu.Unlock()

	listener(current)

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Emit sets the current session and calls every registered listener
func (m *MockIdentityProvider) Emit(session *auth.ProviderSession) {
	m.mu.Lock()
	m.current = session
	listeners := make([]auth.SessionListener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(session)
	}
}

func (m *MockIdentityProvider) ListenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

func (m *MockIdentityProvider) ArmedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed
}

// MockProfileStore implements auth.ProfileStore
type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) GetProfile(ctx context.Context, id string) (*auth.Profile, error) {
	args := m.Called(ctx, id)
	profile, _ := args.Get(0).(*auth.Profile)
	return profile, args.Error(1)
}

func (m *MockProfileStore) SetProfile(ctx context.Context, profile *auth.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *MockProfileStore) DeleteProfile(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockSessionMetrics implements auth.SessionMetrics
type MockSessionMetrics struct {
	mu          sync.Mutex
	transitions []string
	failures    []auth.CredentialErrorKind
	orphaned    int
}

func (m *MockSessionMetrics) SessionTransition(from, to auth.SessionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, string(from)+"->"+string(to))
}

func (m *MockSessionMetrics) SignInFailed(kind auth.CredentialErrorKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, kind)
}

func (m *MockSessionMetrics) OrphanedSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orphaned++
}

type capturingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt auth.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) Types() []auth.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.EventType)
	}
	return out
}
