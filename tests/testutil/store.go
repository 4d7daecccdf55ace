package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/campusbourses/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedNotification inserts a notification created ago before now and
// returns it with its generated ID.
func SeedNotification(
	t *testing.T,
	s store.Store,
	audience string,
	title string,
	ago time.Duration,
	important bool,
) store.Notification {
	t.Helper()

	n, err := s.CreateNotification(context.Background(), store.Notification{
		Audience:    audience,
		Kind:        "document_verified",
		Title:       title,
		IsImportant: important,
		CreatedAt:   time.Now().Add(-ago),
	})
	if err != nil {
		t.Fatalf("seeding notification %q: %v", title, err)
	}
	return n
}
