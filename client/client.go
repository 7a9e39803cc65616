// Package client wires the session store, the notification feed and their
// backing services from a config.App.
package client

import (
	"context"
	"database/sql"

	"github.com/goliatone/go-errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/carebridge/go-care-auth"
	"github.com/carebridge/go-care-auth/activitymap"
	"github.com/carebridge/go-care-auth/blob"
	"github.com/carebridge/go-care-auth/config"
	"github.com/carebridge/go-care-auth/email"
	"github.com/carebridge/go-care-auth/metrics"
	"github.com/carebridge/go-care-auth/notification"
	"github.com/carebridge/go-care-auth/provider/local"
)

// Client owns every component of a running app session
type Client struct {
	DB            *bun.DB
	Provider      *local.Provider
	Profiles      auth.Profiles
	Session       *auth.SessionStore
	Notifications *notification.BunStore
	Feed          *notification.Feed
	Avatars       blob.Store
	Metrics       *metrics.Collector

	logger  auth.Logger
	ownsDB  bool
	closers []func() error
}

// Option customizes the client
type Option func(*settings)

type settings struct {
	db         *bun.DB
	logger     auth.Logger
	registerer prometheus.Registerer
	sink       auth.ActivitySink
	mailer     local.Mailer
	avatars    blob.Store
}

// WithDB uses an existing database instead of opening DatabaseDSN
func WithDB(db *bun.DB) Option {
	return func(s *settings) { s.db = db }
}

// WithLogger sets the logger of every component
func WithLogger(logger auth.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRegisterer registers metrics somewhere other than a private registry
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *settings) { s.registerer = reg }
}

// WithActivitySink replaces the default logging activity sink
func WithActivitySink(sink auth.ActivitySink) Option {
	return func(s *settings) { s.sink = sink }
}

// WithMailer replaces the configured SMTP mailer
func WithMailer(m local.Mailer) Option {
	return func(s *settings) { s.mailer = m }
}

// WithAvatarStore replaces the configured blob store
func WithAvatarStore(store blob.Store) Option {
	return func(s *settings) { s.avatars = store }
}

// New builds the client. Call Start to attach the session listener.
func New(ctx context.Context, cfg config.App, opts ...Option) (*Client, error) {
	s := settings{logger: auth.DefaultLogger()}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}

	c := &Client{logger: s.logger}

	if s.db != nil {
		c.DB = s.db
	} else {
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DatabaseDSN)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open database")
		}
		sqldb.SetMaxOpenConns(1)
		c.DB = bun.NewDB(sqldb, sqlitedialect.New())
		c.ownsDB = true
	}

	if cfg.AutoMigrate {
		applied, err := auth.Migrate(ctx, c.DB)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		if len(applied) > 0 {
			c.logger.Info("applied migrations: %v", applied)
		}
	}

	mailer := s.mailer
	if mailer == nil && cfg.SMTP().Configured() {
		mailer = email.NewMailer(cfg.SMTP(), email.WithLogger(c.logger))
	}

	provider, err := local.NewProvider(c.DB, cfg,
		local.WithLogger(c.logger),
		local.WithMailer(mailer),
		local.WithLockout(cfg.LockoutPeriod),
		local.WithHashIDs(cfg.HashIDs),
	)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Provider = provider
	c.Profiles = auth.NewProfilesRepository(c.DB)

	if c.Avatars, err = avatarStore(ctx, cfg, s.avatars); err != nil {
		_ = c.Close()
		return nil, err
	}

	registerer := s.registerer
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	c.Metrics = metrics.NewCollector(registerer)

	bus, err := c.notificationBus(ctx, cfg)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Notifications = notification.NewBunStore(c.DB,
		notification.WithBus(bus),
		notification.WithStoreLogger(c.logger),
	)

	sink := s.sink
	if sink == nil {
		sink = activitymap.LogSink(c.logger)
	}

	c.Session = auth.NewSessionStore(c.Provider, c.Profiles,
		auth.WithStoreLogger(c.logger),
		auth.WithStoreMetrics(c.Metrics),
		auth.WithStoreActivitySink(sink),
		auth.WithStoreAvatars(c.Avatars),
	)

	c.Feed = notification.NewFeed(c.Notifications,
		notification.WithFeedLogger(c.logger),
		notification.WithFeedMetrics(c.Metrics),
	)
	c.Feed.Follow(c.Session)

	return c, nil
}

func avatarStore(ctx context.Context, cfg config.App, override blob.Store) (blob.Store, error) {
	if override != nil {
		return override, nil
	}
	if !cfg.UsesMinio() {
		return blob.NewMemoryStore(cfg.MinioBucket, ""), nil
	}

	store, err := blob.NewMinioStore(cfg.Minio())
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (c *Client) notificationBus(ctx context.Context, cfg config.App) (notification.Bus, error) {
	if cfg.RedisURL == "" {
		return notification.NewMemoryBus(), nil
	}

	bus, err := notification.NewRedisBus(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	if err := bus.Ping(ctx); err != nil {
		_ = bus.Close()
		return nil, errors.Wrap(err, errors.CategoryExternal, "redis unavailable")
	}
	c.closers = append(c.closers, bus.Close)
	return bus, nil
}

// Context carries the current session state and user
func (c *Client) Context(ctx context.Context) context.Context {
	return auth.WithSessionContext(ctx, c.Session.State())
}

// Send stamps the signed in user as sender and stores the notification.
// The session is read from ctx when it was built with Context, otherwise
// the current one is used.
func (c *Client) Send(ctx context.Context, n *notification.Notification) error {
	if _, ok := auth.SessionFromContext(ctx); !ok {
		ctx = c.Context(ctx)
	}

	state, _ := auth.SessionFromContext(ctx)
	user, ok := auth.FromContext(ctx)
	if !ok || !state.IsAuthenticated() {
		return auth.ErrNoActiveSession
	}
	if n == nil {
		return notification.ErrInvalidNotification
	}

	role, _ := auth.RoleFromContext(ctx)
	if n.Type.SenderRole() != role {
		return notification.ErrSenderRole
	}

	n.FromUserID = user.ID
	n.FromUserEmail = user.Email
	n.FromUserName = user.Label()
	return c.Notifications.Create(ctx, n)
}

// Start attaches the session listener
func (c *Client) Start(ctx context.Context) error {
	return c.Session.Start(ctx)
}

// Close tears the client down in reverse order of construction
func (c *Client) Close() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	if c.Feed != nil {
		keep(c.Feed.Close())
	}
	if c.Session != nil {
		keep(c.Session.Close())
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		keep(c.closers[i]())
	}
	c.closers = nil
	if c.ownsDB && c.DB != nil {
		keep(c.DB.Close())
	}
	return first
}
