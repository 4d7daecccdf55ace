package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a notification does not exist for the
// requested audience.
var ErrNotFound = errors.New("notification not found")

// Notification is a persisted notification row of the development
// backend.
type Notification struct {
	ID       string `db:"id"`
	Audience string `db:"audience"`
	Kind     string `db:"kind"`
	Title    string `db:"title"`
	Message  string `db:"message"`

	IsRead      bool `db:"is_read"`
	IsImportant bool `db:"is_important"`

	RelatedDocumentID    *string `db:"related_document_id"`
	RelatedApplicationID *string `db:"related_application_id"`

	ActorName     string `db:"actor_name"`
	MetadataLabel string `db:"metadata_label"`

	CreatedAt time.Time  `db:"created_at"`
	ReadAt    *time.Time `db:"read_at"`
}

// ListFilter controls which notifications are listed.
type ListFilter struct {
	UnreadOnly bool
	Limit      int
}

// Store defines the persistence interface of the development backend.
// Every operation is scoped to one audience.
type Store interface {
	CreateNotification(ctx context.Context, n Notification) (Notification, error)
	GetNotification(ctx context.Context, audience, id string) (*Notification, error)
	ListNotifications(ctx context.Context, audience string, filter ListFilter) ([]Notification, error)
	CountNotifications(ctx context.Context, audience string) (int, error)

	MarkRead(ctx context.Context, audience, id string) error
	MarkAllRead(ctx context.Context, audience string) (int64, error)
	DeleteNotification(ctx context.Context, audience, id string) error
	DeleteAll(ctx context.Context, audience string) (int64, error)

	Close() error
}
