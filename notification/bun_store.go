package notification

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	auth "github.com/carebridge/go-care-auth"
)

// BunStore keeps notifications in the notifications table. Writers publish
// on the bus and every live query re-reads its snapshot when signalled.
type BunStore struct {
	db     *bun.DB
	bus    Bus
	logger auth.Logger
	now    func() time.Time
	newID  func() string
}

var (
	_ Store  = (*BunStore)(nil)
	_ Sender = (*BunStore)(nil)
)

// BunStoreOption configures the store
type BunStoreOption func(*BunStore)

// WithBus sets the change bus, MemoryBus by default
func WithBus(bus Bus) BunStoreOption {
	return func(s *BunStore) {
		if bus != nil {
			s.bus = bus
		}
	}
}

// WithStoreLogger sets the logger
func WithStoreLogger(logger auth.Logger) BunStoreOption {
	return func(s *BunStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStoreClock injects a custom clock (useful for tests).
func WithStoreClock(clock func() time.Time) BunStoreOption {
	return func(s *BunStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewBunStore returns a store over db
func NewBunStore(db *bun.DB, opts ...BunStoreOption) *BunStore {
	s := &BunStore{
		db:     db,
		bus:    NewMemoryBus(),
		logger: auth.DefaultLogger(),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create inserts the notification and signals the recipient
func (s *BunStore) Create(ctx context.Context, n *Notification) error {
	if n == nil || strings.TrimSpace(n.ToUserID) == "" || !n.Type.IsValid() {
		return ErrInvalidNotification
	}

	if n.ID == "" {
		n.ID = s.newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	if n.Data == nil {
		n.Data = map[string]any{}
	}

	if _, err := s.db.NewInsert().Model(n).Exec(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create notification")
	}

	s.publish(ctx, n.ToUserID)
	return nil
}

// List returns the current snapshot for the user, newest first
func (s *BunStore) List(ctx context.Context, toUserID string) ([]Notification, error) {
	items := []Notification{}
	err := s.db.NewSelect().
		Model(&items).
		Where("?TableAlias.to_user_id = ?", toUserID).
		OrderExpr("?TableAlias.created_at DESC").
		Scan(ctx)
	if err != nil && !stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list notifications")
	}
	return items, nil
}

func (s *BunStore) MarkRead(ctx context.Context, id string) error {
	var record Notification
	err := s.db.NewSelect().
		Model(&record).
		Column("id", "to_user_id").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return ErrNotificationNotFound
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to load notification")
	}

	_, err = s.db.NewUpdate().
		Model((*Notification)(nil)).
		Set("read = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to mark notification read")
	}

	s.publish(ctx, record.ToUserID)
	return nil
}

func (s *BunStore) MarkManyRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	var recipients []string
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().
			Model((*Notification)(nil)).
			ColumnExpr("DISTINCT to_user_id").
			Where("id IN (?)", bun.In(ids)).
			Scan(ctx, &recipients); err != nil && !stderrors.Is(err, sql.ErrNoRows) {
			return err
		}

		_, err := tx.NewUpdate().
			Model((*Notification)(nil)).
			Set("read = ?", true).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx)
		return err
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to mark notifications read").
			WithMetadata(map[string]any{"count": len(ids)})
	}

	for _, uid := range recipients {
		s.publish(ctx, uid)
	}
	return nil
}

func (s *BunStore) publish(ctx context.Context, toUserID string) {
	if err := s.bus.Publish(ctx, toUserID); err != nil {
		s.logger.Warn("notification change not published for %s: %v", toUserID, err)
	}
}

// LiveQuery opens a bus signal for the user and delivers a fresh snapshot
// right away and after every signal
func (s *BunStore) LiveQuery(ctx context.Context, toUserID string) (Subscription, error) {
	sig, err := s.bus.Subscribe(ctx, toUserID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &liveQuery{
		updates: make(chan Update, 1),
		done:    make(chan struct{}),
		cancel:  cancel,
		signal:  sig,
	}

	go sub.run(ctx, func(ctx context.Context) Update {
		items, err := s.List(ctx, toUserID)
		if err != nil {
			return Update{Err: err}
		}
		return Update{Items: items}
	})

	return sub, nil
}

type liveQuery struct {
	updates chan Update
	done    chan struct{}
	cancel  context.CancelFunc
	signal  Signal
	once    sync.Once
}

func (q *liveQuery) Updates() <-chan Update { return q.updates }

func (q *liveQuery) Close() error {
	q.once.Do(func() {
		close(q.done)
		q.cancel()
		_ = q.signal.Close()
	})
	return nil
}

func (q *liveQuery) run(ctx context.Context, query func(context.Context) Update) {
	defer close(q.updates)

	q.deliver(query(ctx))

	for {
		select {
		case <-q.done:
			return
		case <-ctx.Done():
			return
		case <-q.signal.C():
			q.deliver(query(ctx))
		}
	}
}

// deliver keeps only the newest undelivered update
func (q *liveQuery) deliver(u Update) {
	for {
		select {
		case <-q.done:
			return
		case q.updates <- u:
			return
		default:
			select {
			case <-q.updates:
			default:
			}
		}
	}
}
