package main

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/campusbourses/internal/devserver"
	"github.com/nhle/campusbourses/internal/model"
	"github.com/nhle/campusbourses/internal/source/campus"
	"github.com/nhle/campusbourses/internal/store"
	campussync "github.com/nhle/campusbourses/internal/sync"
	"github.com/nhle/campusbourses/tests/testutil"
)

// setupBackend serves more student notifications than one listing holds,
// newest first in the returned slice.
func setupBackend(t *testing.T, count int) (*campussync.Session, *store.SQLiteStore, []store.Notification) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := testutil.NewTestStore(t)
	rows := make([]store.Notification, 0, count)
	for i := 0; i < count; i++ {
		rows = append(rows, testutil.SeedNotification(t, st, "student", fmt.Sprintf("n%02d", i), time.Duration(i)*time.Minute, false))
	}

	ts := httptest.NewServer(devserver.New(st, devserver.Options{}).Handler())
	t.Cleanup(ts.Close)

	src := campus.NewAdapter(campus.Config{
		BaseURL:         ts.URL + "/api",
		Scope:           model.ScopeStudent,
		Timeout:         5 * time.Second,
		RetryMaxElapsed: time.Second,
	})
	sess := campussync.NewSession(src, nil, 5*time.Second)
	t.Cleanup(sess.Close)
	require.NoError(t, sess.Scheduler.TriggerNow(context.Background()))
	return sess, st, rows
}

func TestApply_DeleteOutsideListing(t *testing.T) {
	sess, st, rows := setupBackend(t, 55)
	ctx := context.Background()

	oldest := rows[len(rows)-1]
	_, listed := sess.Store.Get(model.ID(oldest.ID))
	require.False(t, listed, "beyond the recent cap")

	require.NoError(t, apply(ctx, sess, campussync.OpDelete, model.ID(oldest.ID)))

	_, err := st.GetNotification(ctx, "student", oldest.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	count, err := st.CountNotifications(ctx, "student")
	require.NoError(t, err)
	assert.Equal(t, 54, count)
}

func TestApply_MarkReadOutsideListing(t *testing.T) {
	sess, st, rows := setupBackend(t, 55)
	ctx := context.Background()

	oldest := rows[len(rows)-1]
	require.NoError(t, apply(ctx, sess, campussync.OpMarkRead, model.ID(oldest.ID)))

	got, err := st.GetNotification(ctx, "student", oldest.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
}

func TestApply_UnknownIDFails(t *testing.T) {
	sess, _, _ := setupBackend(t, 3)

	err := apply(context.Background(), sess, campussync.OpDelete, "does-not-exist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	err = apply(context.Background(), sess, campussync.OpMarkRead, "does-not-exist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestApply_ListedGoesThroughGateway(t *testing.T) {
	sess, st, rows := setupBackend(t, 3)
	ctx := context.Background()

	require.NoError(t, apply(ctx, sess, campussync.OpMarkRead, model.ID(rows[0].ID)))
	assert.Equal(t, 2, sess.Store.UnreadCount())

	got, err := st.GetNotification(ctx, "student", rows[0].ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
}
