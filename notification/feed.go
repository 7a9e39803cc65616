package notification

import (
	"context"
	"sync"

	auth "github.com/carebridge/go-care-auth"
)

// FeedMetrics receives feed counters
type FeedMetrics interface {
	FeedSnapshot(items, unread int)
	FeedSubscriptionError()
	FeedMarkReadFailed()
}

type noopFeedMetrics struct{}

func (noopFeedMetrics) FeedSnapshot(int, int)  {}
func (noopFeedMetrics) FeedSubscriptionError() {}
func (noopFeedMetrics) FeedMarkReadFailed()    {}

// SessionSource publishes session states, auth.SessionStore implements it
type SessionSource interface {
	Subscribe(fn auth.SessionObserver) (unsubscribe func())
}

// Snapshot is what feed observers receive
type Snapshot struct {
	UserID  string
	Items   []Notification
	Unread  int
	Loading bool
}

// Feed mirrors the notifications of the current user. At most one live
// query is open at any time.
type Feed struct {
	store   Store
	logger  auth.Logger
	metrics FeedMetrics

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	userID     string
	items      []Notification
	loading    bool
	generation uint64
	sub        Subscription
	closed     bool
	unfollow   func()
	observers  map[uint64]func(Snapshot)
	nextObsID  uint64
	wg         sync.WaitGroup
}

// FeedOption configures a Feed
type FeedOption func(*Feed)

// WithFeedLogger sets the logger
func WithFeedLogger(logger auth.Logger) FeedOption {
	return func(f *Feed) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithFeedMetrics reports snapshots and failures
func WithFeedMetrics(m FeedMetrics) FeedOption {
	return func(f *Feed) {
		if m != nil {
			f.metrics = m
		}
	}
}

// NewFeed creates an idle feed, call SetUser or Follow to start it
func NewFeed(store Store, opts ...FeedOption) *Feed {
	ctx, cancel := context.WithCancel(context.Background())
	f := &Feed{
		store:     store,
		logger:    auth.DefaultLogger(),
		metrics:   noopFeedMetrics{},
		ctx:       ctx,
		cancel:    cancel,
		observers: map[uint64]func(Snapshot){},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Follow keys the feed on the user of the session source
func (f *Feed) Follow(source SessionSource) {
	unfollow := source.Subscribe(func(state auth.SessionState) {
		f.SetUser(state.UserID())
	})

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		unfollow()
		return
	}
	previous := f.unfollow
	f.unfollow = unfollow
	f.mu.Unlock()

	if previous != nil {
		previous()
	}
}

// SetUser switches the feed to another user. The previous live query is
// closed and the mirror cleared before a new query is opened. An empty id
// leaves the feed idle.
func (f *Feed) SetUser(userID string) {
	f.mu.Lock()
	if f.closed || userID == f.userID {
		f.mu.Unlock()
		return
	}
	f.generation++
	generation := f.generation
	previous := f.sub
	f.sub = nil
	f.userID = userID
	f.items = nil
	f.loading = userID != ""
	f.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			f.logger.Warn("closing notifications query failed: %v", err)
		}
	}

	f.publish()

	if userID == "" {
		return
	}

	sub, err := f.store.LiveQuery(f.ctx, userID)
	if err != nil {
		f.logger.Error("notifications query for %s failed: %v", userID, err)
		f.metrics.FeedSubscriptionError()
		f.mu.Lock()
		stale := f.generation != generation
		if !stale {
			f.loading = false
		}
		f.mu.Unlock()
		if !stale {
			f.publish()
		}
		return
	}

	f.mu.Lock()
	if f.closed || f.generation != generation {
		f.mu.Unlock()
		_ = sub.Close()
		return
	}
	f.sub = sub
	f.wg.Add(1)
	f.mu.Unlock()

	go f.consume(generation, sub)
}

func (f *Feed) consume(generation uint64, sub Subscription) {
	defer f.wg.Done()
	for update := range sub.Updates() {
		f.apply(generation, update)
	}
}

func (f *Feed) apply(generation uint64, update Update) {
	f.mu.Lock()
	if f.closed || f.generation != generation {
		f.mu.Unlock()
		return
	}

	if update.Err != nil {
		f.loading = false
		userID := f.userID
		f.mu.Unlock()
		f.logger.Error("notifications query for %s failed: %v", userID, update.Err)
		f.metrics.FeedSubscriptionError()
		f.publish()
		return
	}

	f.items = Normalize(update.Items)
	f.loading = false
	count, unread := len(f.items), CountUnread(f.items)
	f.mu.Unlock()

	f.metrics.FeedSnapshot(count, unread)
	f.publish()
}

// UserID returns the user the feed is keyed on
func (f *Feed) UserID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userID
}

// Items returns a copy of the mirror, newest first
func (f *Feed) Items() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneItems(f.items)
}

// UnreadCount is derived from the mirror on every call
func (f *Feed) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return CountUnread(f.items)
}

// Loading reports whether the first snapshot is still pending
func (f *Feed) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

// Snapshot returns the current feed state
func (f *Feed) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *Feed) snapshotLocked() Snapshot {
	return Snapshot{
		UserID:  f.userID,
		Items:   cloneItems(f.items),
		Unread:  CountUnread(f.items),
		Loading: f.loading,
	}
}

// MarkAsRead marks one notification read. Failures are logged only; the
// mirror changes with the next snapshot.
func (f *Feed) MarkAsRead(ctx context.Context, id string) {
	if err := f.store.MarkRead(ctx, id); err != nil {
		f.logger.Error("mark notification %s read failed: %v", id, err)
		f.metrics.FeedMarkReadFailed()
	}
}

// MarkAllAsRead marks every unread entry of the mirror read in one batch.
// It does nothing when there is nothing unread.
func (f *Feed) MarkAllAsRead(ctx context.Context) {
	f.mu.Lock()
	ids := UnreadIDs(f.items)
	f.mu.Unlock()

	if len(ids) == 0 {
		return
	}

	if err := f.store.MarkManyRead(ctx, ids); err != nil {
		f.logger.Error("mark %d notifications read failed: %v", len(ids), err)
		f.metrics.FeedMarkReadFailed()
	}
}

// Subscribe registers an observer and calls it with the current snapshot
func (f *Feed) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return func() {}
	}
	id := f.nextObsID
	f.nextObsID++
	f.observers[id] = fn
	current := f.snapshotLocked()
	f.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.observers, id)
			f.mu.Unlock()
		})
	}
}

func (f *Feed) publish() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	snapshot := f.snapshotLocked()
	observers := make([]func(Snapshot), 0, len(f.observers))
	for _, fn := range f.observers {
		observers = append(observers, fn)
	}
	f.mu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}

// Close stops following the session, closes the live query and waits for
// its consumer to exit
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.generation++
	sub := f.sub
	f.sub = nil
	unfollow := f.unfollow
	f.unfollow = nil
	f.items = nil
	f.observers = map[uint64]func(Snapshot){}
	f.mu.Unlock()

	if unfollow != nil {
		unfollow()
	}

	var err error
	if sub != nil {
		err = sub.Close()
	}
	f.cancel()
	f.wg.Wait()
	return err
}

func cloneItems(items []Notification) []Notification {
	if items == nil {
		return []Notification{}
	}
	out := make([]Notification, len(items))
	for i, n := range items {
		out[i] = n.Clone()
	}
	return out
}
