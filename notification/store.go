package notification

import (
	"context"

	"github.com/goliatone/go-errors"
)

// Update is one delivery of a live query: a full snapshot or an error
type Update struct {
	Items []Notification
	Err   error
}

// Subscription is a live query handle owned by the caller
type Subscription interface {
	Updates() <-chan Update
	Close() error
}

// Store is the notifications backend the feed reads from
type Store interface {
	// LiveQuery streams snapshots of notifications where to_user_id equals
	// toUserID, newest first. The first snapshot is delivered right away.
	LiveQuery(ctx context.Context, toUserID string) (Subscription, error)
	MarkRead(ctx context.Context, id string) error
	// MarkManyRead updates all ids in a single atomic batch
	MarkManyRead(ctx context.Context, ids []string) error
}

// Sender creates notifications
type Sender interface {
	Create(ctx context.Context, n *Notification) error
}

const (
	TextCodeNotificationNotFound = "notification/not-found"
	TextCodeInvalidNotification  = "notification/invalid"
	TextCodeSenderRole           = "notification/sender-role"
)

// ErrNotificationNotFound no notification with that id
var ErrNotificationNotFound = errors.New("notification not found", errors.CategoryNotFound).
	WithTextCode(TextCodeNotificationNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidNotification the record is missing its type or recipient
var ErrInvalidNotification = errors.New("invalid notification", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidNotification).
	WithCode(errors.CodeBadRequest)

// ErrSenderRole the sender's role may not send this type
var ErrSenderRole = errors.New("role not allowed to send this notification", errors.CategoryAuthz).
	WithTextCode(TextCodeSenderRole).
	WithCode(errors.CodeForbidden)
