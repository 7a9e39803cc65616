package notification

import (
	"context"
	"sync"

	"github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// Bus carries "the notifications of this user changed" signals between
// writers and live queries
type Bus interface {
	Publish(ctx context.Context, toUserID string) error
	Subscribe(ctx context.Context, toUserID string) (Signal, error)
}

// Signal fires at least once after every Publish for its user. Bursts may
// be coalesced into a single tick.
type Signal interface {
	C() <-chan struct{}
	Close() error
}

type signal struct {
	ch     chan struct{}
	once   sync.Once
	done   chan struct{}
	onStop func()
}

func newSignal(onStop func()) *signal {
	return &signal{
		ch:     make(chan struct{}, 1),
		done:   make(chan struct{}),
		onStop: onStop,
	}
}

func (s *signal) C() <-chan struct{} { return s.ch }

func (s *signal) notify() {
	select {
	case <-s.done:
	case s.ch <- struct{}{}:
	default:
	}
}

func (s *signal) Close() error {
	s.once.Do(func() {
		close(s.done)
		if s.onStop != nil {
			s.onStop()
		}
	})
	return nil
}

// MemoryBus delivers signals inside the process
type MemoryBus struct {
	mu      sync.Mutex
	nextID  int
	signals map[string]map[int]*signal
}

var _ Bus = (*MemoryBus)(nil)

// NewMemoryBus returns an empty bus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{signals: map[string]map[int]*signal{}}
}

func (b *MemoryBus) Publish(ctx context.Context, toUserID string) error {
	b.mu.Lock()
	targets := make([]*signal, 0, len(b.signals[toUserID]))
	for _, s := range b.signals[toUserID] {
		targets = append(targets, s)
	}
	b.mu.Unlock()

	for _, s := range targets {
		s.notify()
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, toUserID string) (Signal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	s := newSignal(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.signals[toUserID], id)
		if len(b.signals[toUserID]) == 0 {
			delete(b.signals, toUserID)
		}
	})

	if b.signals[toUserID] == nil {
		b.signals[toUserID] = map[int]*signal{}
	}
	b.signals[toUserID][id] = s
	return s, nil
}

// Subscribers returns how many live signals exist for the user
func (b *MemoryBus) Subscribers(toUserID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.signals[toUserID])
}

// RedisBus fans signals out through redis pub/sub so several processes
// can share one notifications table
type RedisBus struct {
	client *redis.Client
	prefix string
}

var _ Bus = (*RedisBus)(nil)

// NewRedisBus creates a bus from a redis URL
func NewRedisBus(redisURL string) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "parse redis url")
	}
	return NewRedisBusWithClient(redis.NewClient(opts)), nil
}

// NewRedisBusWithClient creates a bus from an existing client
func NewRedisBusWithClient(client *redis.Client) *RedisBus {
	return &RedisBus{
		client: client,
		prefix: "notifications:",
	}
}

func (b *RedisBus) channel(toUserID string) string {
	return b.prefix + toUserID
}

// Ping checks the connection
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close closes the client
func (b *RedisBus) Close() error {
	return b.client.Close()
}

func (b *RedisBus) Publish(ctx context.Context, toUserID string) error {
	if err := b.client.Publish(ctx, b.channel(toUserID), "changed").Err(); err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "publish notification change")
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, toUserID string) (Signal, error) {
	ps := b.client.Subscribe(ctx, b.channel(toUserID))

	// wait for the subscription to be confirmed so no publish is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Wrap(err, errors.CategoryExternal, "subscribe notification changes")
	}

	s := newSignal(func() { _ = ps.Close() })
	messages := ps.Channel()

	go func() {
		for {
			select {
			case <-s.done:
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				s.notify()
			}
		}
	}()

	return s, nil
}
