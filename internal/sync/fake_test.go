package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/nhle/campusbourses/internal/model"
	"github.com/nhle/campusbourses/internal/source"
)

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func unreadNote(id string, minute int) model.Notification {
	return model.Notification{
		ID:        model.ID(id),
		Kind:      model.KindApplicationApproved,
		Title:     "notification " + id,
		CreatedAt: epoch.Add(time.Duration(minute) * time.Minute),
	}
}

// snapshotOf builds a snapshot where recent holds every entry and unread
// the ones not yet read.
func snapshotOf(all ...model.Notification) model.Snapshot {
	var snap model.Snapshot
	for _, n := range all {
		snap.Recent = append(snap.Recent, n)
		if !n.IsRead {
			snap.Unread = append(snap.Unread, n)
		}
	}
	snap.UnreadCount = len(snap.Unread)
	return snap
}

// fakeBackend is an in-memory source.Source whose responses can be held
// back or failed on demand.
type fakeBackend struct {
	mu        gosync.Mutex
	snap      model.Snapshot
	fetchErr  error
	mutateErr error

	// gate, when set, blocks Fetch until a value or close.
	gate    chan struct{}
	started chan struct{}

	fetches int
	calls   []string

	// onFailedMutation runs before a failing mutation returns, to model a
	// backend that applied part of the request.
	onFailedMutation func(snap *model.Snapshot)
}

var _ source.Source = (*fakeBackend)(nil)

func newFakeBackend(snap model.Snapshot) *fakeBackend {
	return &fakeBackend{snap: snap, started: make(chan struct{}, 16)}
}

func (f *fakeBackend) Scope() model.Scope { return model.ScopeStudent }

func (f *fakeBackend) Fetch(ctx context.Context) (*model.Snapshot, error) {
	f.mu.Lock()
	f.fetches++
	snap := cloneSnapshot(f.snap)
	err := f.fetchErr
	gate := f.gate
	f.mu.Unlock()

	select {
	case f.started <- struct{}{}:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (f *fakeBackend) setSnapshot(snap model.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = snap
}

func (f *fakeBackend) setGate(gate chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = gate
}

func (f *fakeBackend) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeBackend) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) mutate(call string, apply func(snap *model.Snapshot)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.mutateErr != nil {
		if f.onFailedMutation != nil {
			f.onFailedMutation(&f.snap)
		}
		return f.mutateErr
	}
	apply(&f.snap)
	return nil
}

func (f *fakeBackend) MarkRead(_ context.Context, id model.ID) error {
	return f.mutate("read "+id.String(), func(snap *model.Snapshot) {
		*snap = rebuild(snap.Recent, func(n *model.Notification) bool {
			if n.ID == id {
				n.IsRead = true
			}
			return true
		})
	})
}

func (f *fakeBackend) MarkAllRead(context.Context) error {
	return f.mutate("read-all", func(snap *model.Snapshot) {
		*snap = rebuild(snap.Recent, func(n *model.Notification) bool {
			n.IsRead = true
			return true
		})
	})
}

func (f *fakeBackend) Delete(_ context.Context, id model.ID) error {
	return f.mutate("delete "+id.String(), func(snap *model.Snapshot) {
		*snap = rebuild(snap.Recent, func(n *model.Notification) bool { return n.ID != id })
	})
}

func (f *fakeBackend) DeleteAll(context.Context) error {
	return f.mutate("delete-all", func(snap *model.Snapshot) {
		*snap = model.Snapshot{}
	})
}

// rebuild applies edit to each entry, drops those it rejects and
// recomputes the unread view.
func rebuild(all []model.Notification, edit func(n *model.Notification) bool) model.Snapshot {
	var kept []model.Notification
	for _, n := range all {
		if edit(&n) {
			kept = append(kept, n)
		}
	}
	return snapshotOf(kept...)
}

func cloneSnapshot(s model.Snapshot) model.Snapshot {
	return model.Snapshot{
		Unread:         append([]model.Notification(nil), s.Unread...),
		Recent:         append([]model.Notification(nil), s.Recent...),
		UnreadCount:    s.UnreadCount,
		ImportantCount: s.ImportantCount,
	}
}

var errUnreachable = &source.NetworkError{Op: "POST /notifications", Err: errors.New("connection refused")}
