package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/campusbourses/internal/store"
	"github.com/nhle/campusbourses/tests/testutil"
)

func TestCreateAndGetNotification(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	doc := "12"
	created, err := s.CreateNotification(ctx, store.Notification{
		Audience:          "student",
		Kind:              "document_rejected",
		Title:             "Relevé refusé",
		Message:           "Document illisible",
		IsImportant:       true,
		RelatedDocumentID: &doc,
		MetadataLabel:     "Relevé de notes",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := s.GetNotification(ctx, "student", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Relevé refusé", got.Title)
	assert.True(t, got.IsImportant)
	assert.False(t, got.IsRead)
	require.NotNil(t, got.RelatedDocumentID)
	assert.Equal(t, "12", *got.RelatedDocumentID)
	assert.Nil(t, got.RelatedApplicationID)
	assert.Nil(t, got.ReadAt)
	assert.Equal(t, "Relevé de notes", got.MetadataLabel)

	_, err = s.GetNotification(ctx, "admin", created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound, "audiences are isolated")
}

func TestListNotifications(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	oldest := testutil.SeedNotification(t, s, "student", "oldest", 3*time.Hour, false)
	middle := testutil.SeedNotification(t, s, "student", "middle", 2*time.Hour, true)
	newest := testutil.SeedNotification(t, s, "student", "newest", time.Hour, false)
	testutil.SeedNotification(t, s, "admin", "other audience", 0, false)
	require.NoError(t, s.MarkRead(ctx, "student", middle.ID))

	all, err := s.ListNotifications(ctx, "student", store.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{newest.ID, middle.ID, oldest.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	unread, err := s.ListNotifications(ctx, "student", store.ListFilter{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 2)
	assert.Equal(t, newest.ID, unread[0].ID)

	limited, err := s.ListNotifications(ctx, "student", store.ListFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)

	count, err := s.CountNotifications(ctx, "student")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	admin, err := s.ListNotifications(ctx, "admin", store.ListFilter{UnreadOnly: true, Limit: 5})
	require.NoError(t, err)
	assert.Len(t, admin, 1)
}

func TestMarkRead(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	n := testutil.SeedNotification(t, s, "student", "n", time.Minute, false)

	require.NoError(t, s.MarkRead(ctx, "student", n.ID))
	got, err := s.GetNotification(ctx, "student", n.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
	require.NotNil(t, got.ReadAt)
	firstRead := *got.ReadAt

	require.NoError(t, s.MarkRead(ctx, "student", n.ID), "already read is fine")
	got, err = s.GetNotification(ctx, "student", n.ID)
	require.NoError(t, err)
	assert.True(t, firstRead.Equal(*got.ReadAt), "read time is kept")

	assert.ErrorIs(t, s.MarkRead(ctx, "student", "nope"), store.ErrNotFound)
	assert.ErrorIs(t, s.MarkRead(ctx, "admin", n.ID), store.ErrNotFound)
}

func TestMarkAllReadAndDeleteAll(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	testutil.SeedNotification(t, s, "student", "a", time.Minute, false)
	testutil.SeedNotification(t, s, "student", "b", 2*time.Minute, true)
	testutil.SeedNotification(t, s, "admin", "c", time.Minute, false)

	updated, err := s.MarkAllRead(ctx, "student")
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	updated, err = s.MarkAllRead(ctx, "student")
	require.NoError(t, err)
	assert.Zero(t, updated)

	adminUnread, err := s.ListNotifications(ctx, "admin", store.ListFilter{UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, adminUnread, 1)

	deleted, err := s.DeleteAll(ctx, "student")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	count, err := s.CountNotifications(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDeleteNotification(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	n := testutil.SeedNotification(t, s, "admin", "n", time.Minute, false)

	require.NoError(t, s.DeleteNotification(ctx, "admin", n.ID))
	assert.ErrorIs(t, s.DeleteNotification(ctx, "admin", n.ID), store.ErrNotFound)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campus.db")

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	testutil.SeedNotification(t, s, "student", "kept", time.Minute, false)
	require.NoError(t, s.Close())

	reopened, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.CountNotifications(context.Background(), "student")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
