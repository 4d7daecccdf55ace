package source

import (
	"context"

	"github.com/nhle/campusbourses/internal/model"
)

// Source defines the backend boundary the notification store consumes.
// Implementations must not retry mutations; callers reconcile instead.
type Source interface {
	// Scope returns the audience whose notifications this source serves.
	Scope() model.Scope

	// Fetch retrieves the authoritative notification snapshot.
	Fetch(ctx context.Context) (*model.Snapshot, error)

	// MarkRead marks a single notification as read.
	MarkRead(ctx context.Context, id model.ID) error

	// MarkAllRead marks every notification of the user as read.
	MarkAllRead(ctx context.Context) error

	// Delete removes a single notification.
	Delete(ctx context.Context, id model.ID) error

	// DeleteAll removes every notification of the user.
	DeleteAll(ctx context.Context) error
}
