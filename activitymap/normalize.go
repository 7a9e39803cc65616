// Package activitymap turns session activity events into a flat record that
// audit logs and analytics pipelines can store as is.
package activitymap

import (
	"context"
	"strings"
	"time"

	auth "github.com/carebridge/go-care-auth"
)

const (
	// MetadataKeyActorType holds auth.ActorRef.Type
	MetadataKeyActorType = "actor_type"
	// MetadataKeyRole holds the role of the affected user
	MetadataKeyRole = "role"
)

const (
	defaultChannel    = "session"
	defaultObjectType = "user"
	defaultActorID    = "anonymous"
)

// Record is the flattened event
type Record struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization
type Option func(*options)

type options struct {
	channel       string
	objectType    string
	actorFallback string
	now           func() time.Time
}

// WithChannel sets the channel of every record
func WithChannel(channel string) Option {
	return func(o *options) {
		o.channel = strings.TrimSpace(channel)
	}
}

// WithObjectType sets the object type of every record
func WithObjectType(objectType string) Option {
	return func(o *options) {
		o.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorFallback is used when neither actor nor user id is known,
// e.g. a failed sign in
func WithActorFallback(actorID string) Option {
	return func(o *options) {
		o.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithClock stamps events that carry no time (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.now = clock
		}
	}
}

func resolve(opts []Option) options {
	o := options{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Normalize flattens an activity event
func Normalize(event auth.ActivityEvent, opts ...Option) Record {
	return normalize(event, resolve(opts))
}

func normalize(event auth.ActivityEvent, o options) Record {
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = o.now()
	}

	return Record{
		ActorID: firstNonEmpty(
			strings.TrimSpace(event.Actor.ID),
			strings.TrimSpace(event.UserID),
			o.actorFallback,
		),
		Verb:       string(event.EventType),
		ObjectType: o.objectType,
		ObjectID:   strings.TrimSpace(event.UserID),
		Channel:    o.channel,
		Metadata:   metadata(event),
		OccurredAt: occurredAt,
	}
}

func metadata(event auth.ActivityEvent) map[string]any {
	var out map[string]any
	if len(event.Metadata) > 0 {
		out = make(map[string]any, len(event.Metadata)+2)
		for k, v := range event.Metadata {
			out[k] = v
		}
	}

	set := func(key, value string) {
		if value == "" {
			return
		}
		if out == nil {
			out = map[string]any{}
		}
		if _, exists := out[key]; !exists {
			out[key] = value
		}
	}

	set(MetadataKeyActorType, strings.TrimSpace(event.Actor.Type))
	set(MetadataKeyRole, string(event.Role))
	return out
}

// Sink adapts a record consumer into an auth.ActivitySink
func Sink(consume func(ctx context.Context, record Record) error, opts ...Option) auth.ActivitySink {
	o := resolve(opts)
	return auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		if consume == nil {
			return nil
		}
		return consume(ctx, normalize(event, o))
	})
}

// LogSink writes every record to the logger at info level
func LogSink(logger auth.Logger, opts ...Option) auth.ActivitySink {
	if logger == nil {
		logger = auth.DefaultLogger()
	}
	return Sink(func(_ context.Context, r Record) error {
		logger.Info("activity %s actor=%s object=%s/%s", r.Verb, r.ActorID, r.ObjectType, r.ObjectID)
		return nil
	}, opts...)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
