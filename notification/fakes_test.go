package notification_test

import (
	"context"
	"sync"
	"time"

	auth "github.com/carebridge/go-care-auth"
	"github.com/carebridge/go-care-auth/notification"
)

type fakeSub struct {
	userID string
	ch     chan notification.Update
	mu     sync.Mutex
	closed bool
}

func (s *fakeSub) Updates() <-chan notification.Update { return s.ch }

func (s *fakeSub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

func (s *fakeSub) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Push delivers an update unless the subscription was closed
func (s *fakeSub) Push(u notification.Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.ch <- u
	return true
}

type fakeStore struct {
	mu           sync.Mutex
	subs         []*fakeSub
	openWhenOpen []int
	liveErr      error
	markErr      error
	markRead     []string
	markMany     [][]string
}

func (s *fakeStore) LiveQuery(ctx context.Context, toUserID string) (notification.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.liveErr != nil {
		return nil, s.liveErr
	}

	open := 0
	for _, sub := range s.subs {
		if !sub.IsClosed() {
			open++
		}
	}
	s.openWhenOpen = append(s.openWhenOpen, open)

	sub := &fakeSub{userID: toUserID, ch: make(chan notification.Update, 8)}
	s.subs = append(s.subs, sub)
	return sub, nil
}

func (s *fakeStore) MarkRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markRead = append(s.markRead, id)
	return s.markErr
}

func (s *fakeStore) MarkManyRead(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markMany = append(s.markMany, append([]string(nil), ids...))
	return s.markErr
}

func (s *fakeStore) Last() *fakeSub {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) == 0 {
		return nil
	}
	return s.subs[len(s.subs)-1]
}

func (s *fakeStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

type fakeFeedMetrics struct {
	mu         sync.Mutex
	snapshots  int
	subErrors  int
	markFailed int
}

func (m *fakeFeedMetrics) FeedSnapshot(int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots++
}

func (m *fakeFeedMetrics) FeedSubscriptionError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subErrors++
}

func (m *fakeFeedMetrics) FeedMarkReadFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markFailed++
}

func (m *fakeFeedMetrics) Get() (int, int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshots, m.subErrors, m.markFailed
}

type fakeSessionSource struct {
	mu        sync.Mutex
	observers map[int]auth.SessionObserver
	nextID    int
	state     auth.SessionState
}

func newFakeSessionSource() *fakeSessionSource {
	return &fakeSessionSource{observers: map[int]auth.SessionObserver{}, state: auth.InitialSessionState()}
}

func (s *fakeSessionSource) Subscribe(fn auth.SessionObserver) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	state := s.state
	s.mu.Unlock()

	fn(state)
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *fakeSessionSource) Set(state auth.SessionState) {
	s.mu.Lock()
	s.state = state
	observers := make([]auth.SessionObserver, 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(state)
	}
}

func (s *fakeSessionSource) Observers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers)
}

var baseTime = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func item(id string, minutes int, read bool) notification.Notification {
	return notification.Notification{
		ID:        id,
		Type:      notification.TypeBundleAssigned,
		ToUserID:  "u1",
		Read:      read,
		CreatedAt: baseTime.Add(time.Duration(minutes) * time.Minute),
	}
}

func ids(items []notification.Notification) []string {
	out := make([]string, 0, len(items))
	for _, n := range items {
		out = append(out, n.ID)
	}
	return out
}
