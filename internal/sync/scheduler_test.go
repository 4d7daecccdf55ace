package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/campusbourses/internal/model"
	"github.com/nhle/campusbourses/internal/notify"
	"github.com/nhle/campusbourses/internal/source"
)

func unreadIDs(st *notify.Store) []model.ID {
	var ids []model.ID
	for _, n := range st.Unread() {
		ids = append(ids, n.ID)
	}
	return ids
}

func waitStarted(t *testing.T, fb *fakeBackend) {
	t.Helper()
	select {
	case <-fb.started:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not start")
	}
}

func TestSequencer(t *testing.T) {
	var seq Sequencer

	a := seq.Issue()
	b := seq.Issue()
	assert.Greater(t, b, a)

	applied := false
	assert.False(t, seq.Commit(a, func() { applied = true }), "older number is stale")
	assert.False(t, applied)
	assert.True(t, seq.Commit(b, func() { applied = true }))
	assert.True(t, applied)

	seq.Invalidate()
	assert.False(t, seq.Commit(b, func() {}))

	last := seq.current()
	assert.False(t, seq.Supersede(func() bool { return false }))
	assert.Equal(t, last, seq.current(), "no change, nothing retired")
	assert.True(t, seq.Supersede(func() bool { return true }))
	assert.Greater(t, seq.current(), last)
}

func TestScheduler_TriggerNowAppliesSnapshot(t *testing.T) {
	fb := newFakeBackend(snapshotOf(unreadNote("1", 3), unreadNote("2", 2)))
	st := notify.NewStore()
	s := New(fb, st, Options{})

	require.NoError(t, s.TriggerNow(context.Background()))

	assert.Equal(t, []model.ID{"1", "2"}, unreadIDs(st))
	assert.Equal(t, SyncIdle, s.Status().State)
	assert.False(t, s.Status().LastSync.IsZero())

	msg := (<-s.Events()).(SyncResultMsg)
	assert.True(t, msg.Applied)
	assert.Empty(t, msg.New, "first fetch reports nothing as new")

	fb.setSnapshot(snapshotOf(unreadNote("3", 4), unreadNote("1", 3), unreadNote("2", 2)))
	require.NoError(t, s.TriggerNow(context.Background()))
	msg = (<-s.Events()).(SyncResultMsg)
	require.Len(t, msg.New, 1)
	assert.Equal(t, model.ID("3"), msg.New[0].ID)
}

func TestScheduler_TriggerNowSkipsWhileInFlight(t *testing.T) {
	fb := newFakeBackend(snapshotOf(unreadNote("1", 1)))
	gate := make(chan struct{})
	fb.setGate(gate)
	s := New(fb, notify.NewStore(), Options{})

	done := make(chan error, 1)
	go func() { done <- s.TriggerNow(context.Background()) }()
	waitStarted(t, fb)

	assert.ErrorIs(t, s.TriggerNow(context.Background()), ErrFetchInFlight)
	assert.Equal(t, SyncRunning, s.Status().State)

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, fb.fetchCount())
}

func TestScheduler_LaterIssuedFetchWins(t *testing.T) {
	fb := newFakeBackend(snapshotOf(unreadNote("old", 1)))
	gateA := make(chan struct{})
	fb.setGate(gateA)
	st := notify.NewStore()
	s := New(fb, st, Options{})

	// Bypass the guard to force two overlapping fetches.
	errA := make(chan error, 1)
	go func() { errA <- s.fetch(context.Background(), nil) }()
	waitStarted(t, fb)

	fb.setGate(nil)
	fb.setSnapshot(snapshotOf(unreadNote("new", 2)))
	require.NoError(t, s.fetch(context.Background(), nil))
	assert.Equal(t, []model.ID{"new"}, unreadIDs(st))

	close(gateA)
	assert.ErrorIs(t, <-errA, ErrStaleResponse)
	assert.Equal(t, []model.ID{"new"}, unreadIDs(st), "A resolved last but was issued first")
}

func TestScheduler_FailedPollLeavesStoreIntact(t *testing.T) {
	fb := newFakeBackend(snapshotOf(unreadNote("1", 1)))
	st := notify.NewStore()
	s := New(fb, st, Options{Scope: model.ScopeAdmin})
	require.NoError(t, s.TriggerNow(context.Background()))
	<-s.Events()

	fb.fetchErr = &source.RejectedError{Op: "GET /notifications", StatusCode: 401}
	err := s.TriggerNow(context.Background())
	require.Error(t, err)
	assert.True(t, source.IsAuthError(err))

	assert.Equal(t, []model.ID{"1"}, unreadIDs(st))
	assert.Equal(t, SyncError, s.Status().State)

	msg := (<-s.Events()).(SyncResultMsg)
	assert.False(t, msg.Applied)
	require.NotNil(t, msg.AuthError)
	assert.Equal(t, model.ScopeAdmin, msg.AuthError.Scope)
}

func TestScheduler_StartFetchesImmediatelyAndStopIsIdempotent(t *testing.T) {
	fb := newFakeBackend(snapshotOf(unreadNote("1", 1)))
	st := notify.NewStore()
	s := New(fb, st, Options{})

	s.Start(time.Hour)
	s.Start(time.Hour)
	assert.True(t, s.Running())

	select {
	case msg := <-s.Events():
		assert.True(t, msg.(SyncResultMsg).Applied)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial fetch")
	}
	assert.Equal(t, 1, fb.fetchCount(), "second Start is a no-op")

	s.Stop()
	s.Stop()
	assert.False(t, s.Running())
}

func TestScheduler_TicksAreSkippedNotQueued(t *testing.T) {
	fb := newFakeBackend(snapshotOf(unreadNote("1", 1)))
	gate := make(chan struct{})
	fb.setGate(gate)
	s := New(fb, notify.NewStore(), Options{})

	manual := make(chan error, 1)
	go func() { manual <- s.TriggerNow(context.Background()) }()
	waitStarted(t, fb)

	// The initial fetch and every tick find the manual fetch in flight.
	s.Start(10 * time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, fb.fetchCount())

	s.Stop()
	close(gate)
	<-manual
}

func TestScheduler_StopDiscardsInFlightResponse(t *testing.T) {
	fb := newFakeBackend(snapshotOf(unreadNote("1", 1)))
	gate := make(chan struct{})
	fb.setGate(gate)
	st := notify.NewStore()
	s := New(fb, st, Options{})

	s.Start(time.Hour)
	waitStarted(t, fb)
	s.Stop()
	close(gate)

	require.Eventually(t, func() bool {
		if !s.guard.TryAcquire(1) {
			return false
		}
		s.guard.Release(1)
		return true
	}, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, st.Unread(), "response arrived after Stop")
}

func TestScheduler_ReconcileWaitsForInFlightFetch(t *testing.T) {
	fb := newFakeBackend(snapshotOf(unreadNote("1", 1)))
	gate := make(chan struct{})
	fb.setGate(gate)
	st := notify.NewStore()
	s := New(fb, st, Options{})

	first := make(chan error, 1)
	go func() { first <- s.TriggerNow(context.Background()) }()
	waitStarted(t, fb)

	reconciled := make(chan error, 1)
	go func() { reconciled <- s.Reconcile(context.Background()) }()

	select {
	case <-reconciled:
		t.Fatal("reconcile did not wait for the guard")
	case <-time.After(50 * time.Millisecond):
	}

	fb.setSnapshot(snapshotOf(unreadNote("2", 2)))
	close(gate)

	require.NoError(t, <-first)
	require.NoError(t, <-reconciled)
	assert.Equal(t, []model.ID{"2"}, unreadIDs(st))
	assert.Equal(t, 2, fb.fetchCount())
}

func TestScheduler_ReconcileHonoursContext(t *testing.T) {
	fb := newFakeBackend(snapshotOf())
	gate := make(chan struct{})
	defer close(gate)
	fb.setGate(gate)
	s := New(fb, notify.NewStore(), Options{})

	go func() { _ = s.TriggerNow(context.Background()) }()
	waitStarted(t, fb)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Reconcile(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), err)
}
