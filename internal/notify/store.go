// Package notify holds the in-memory notification state of one session.
package notify

import (
	"slices"
	"sync"

	"github.com/nhle/campusbourses/internal/model"
)

// Store is the single source of truth for one user's notifications during
// a session. Counts are always derived from the lists.
//
// Store is safe for concurrent use. Mutators never fail; they report
// whether the state changed.
type Store struct {
	mu      sync.RWMutex
	unread  []model.Notification
	recent  []model.Notification
	version uint64

	subsMu  sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		subs: make(map[int]chan struct{}),
	}
}

// Replace swaps in a fetched snapshot. Entries in unread are normalised to
// IsRead=false. The inputs are copied.
func (s *Store) Replace(unread, recent []model.Notification) bool {
	u := make([]model.Notification, len(unread))
	copy(u, unread)
	for i := range u {
		u[i].IsRead = false
	}
	r := make([]model.Notification, len(recent))
	copy(r, recent)

	s.mu.Lock()
	changed := !slices.EqualFunc(s.unread, u, sameNotification) ||
		!slices.EqualFunc(s.recent, r, sameNotification)
	s.unread = u
	s.recent = r
	if changed {
		s.version++
	}
	s.mu.Unlock()

	if changed {
		s.broadcast()
	}
	return changed
}

// MarkRead moves id from the unread view into the recent view with
// IsRead=true. Marking an absent or already read id is a no-op.
func (s *Store) MarkRead(id model.ID) bool {
	s.mu.Lock()
	changed := s.markReadLocked(id)
	if changed {
		s.version++
	}
	s.mu.Unlock()

	if changed {
		s.broadcast()
	}
	return changed
}

func (s *Store) markReadLocked(id model.ID) bool {
	if i := indexOf(s.unread, id); i >= 0 {
		n := s.unread[i]
		s.unread = slices.Delete(s.unread, i, i+1)
		n.IsRead = true
		s.putRecentLocked(n)
		return true
	}

	if j := indexOf(s.recent, id); j >= 0 && !s.recent[j].IsRead {
		s.recent[j].IsRead = true
		return true
	}
	return false
}

// putRecentLocked updates n in the recent view, or inserts it keeping the
// view ordered newest first.
func (s *Store) putRecentLocked(n model.Notification) {
	if j := indexOf(s.recent, n.ID); j >= 0 {
		s.recent[j] = n
		return
	}
	pos := len(s.recent)
	for k, r := range s.recent {
		if r.CreatedAt.Before(n.CreatedAt) {
			pos = k
			break
		}
	}
	s.recent = slices.Insert(s.recent, pos, n)
}

// MarkAllRead empties the unread view and flips IsRead on every recent
// entry. Idempotent.
func (s *Store) MarkAllRead() bool {
	s.mu.Lock()
	changed := len(s.unread) > 0
	for _, n := range s.unread {
		n.IsRead = true
		s.putRecentLocked(n)
	}
	s.unread = s.unread[:0]
	for i := range s.recent {
		if !s.recent[i].IsRead {
			s.recent[i].IsRead = true
			changed = true
		}
	}
	if changed {
		s.version++
	}
	s.mu.Unlock()

	if changed {
		s.broadcast()
	}
	return changed
}

// Remove deletes id from every view regardless of read state.
func (s *Store) Remove(id model.ID) bool {
	s.mu.Lock()
	changed := false
	if i := indexOf(s.unread, id); i >= 0 {
		s.unread = slices.Delete(s.unread, i, i+1)
		changed = true
	}
	if j := indexOf(s.recent, id); j >= 0 {
		s.recent = slices.Delete(s.recent, j, j+1)
		changed = true
	}
	if changed {
		s.version++
	}
	s.mu.Unlock()

	if changed {
		s.broadcast()
	}
	return changed
}

// RemoveAll empties both views.
func (s *Store) RemoveAll() bool {
	s.mu.Lock()
	changed := len(s.unread) > 0 || len(s.recent) > 0
	s.unread = nil
	s.recent = nil
	if changed {
		s.version++
	}
	s.mu.Unlock()

	if changed {
		s.broadcast()
	}
	return changed
}

// Unread returns a copy of the unread view.
func (s *Store) Unread() []model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.unread)
}

// Recent returns a copy of the recent/history view.
func (s *Store) Recent() []model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.recent)
}

// All returns the recent view followed by any unread entries the backend
// did not include in it.
func (s *Store) All() []model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allLocked()
}

func (s *Store) allLocked() []model.Notification {
	out := slices.Clone(s.recent)
	for _, n := range s.unread {
		if indexOf(s.recent, n.ID) < 0 {
			out = append(out, n)
		}
	}
	return out
}

// Important returns every entry flagged important, read or not.
func (s *Store) Important() []model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Notification
	for _, n := range s.allLocked() {
		if n.IsImportant {
			out = append(out, n)
		}
	}
	return out
}

// Get looks up id in either view. The unread copy wins.
func (s *Store) Get(id model.ID) (model.Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := indexOf(s.unread, id); i >= 0 {
		return s.unread[i], true
	}
	if j := indexOf(s.recent, id); j >= 0 {
		return s.recent[j], true
	}
	return model.Notification{}, false
}

// UnreadCount is the length of the unread view.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.unread)
}

// ImportantCount is the number of unread entries flagged important.
func (s *Store) ImportantCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.unread {
		if n.IsImportant {
			count++
		}
	}
	return count
}

// Version increases by one on every state change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe returns a channel that receives a signal after state changes.
// Signals coalesce: a slow reader sees at most one pending signal. Call the
// returned func to unsubscribe.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

func (s *Store) broadcast() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func indexOf(list []model.Notification, id model.ID) int {
	return slices.IndexFunc(list, func(n model.Notification) bool { return n.ID == id })
}

func sameNotification(a, b model.Notification) bool {
	return a.ID == b.ID &&
		a.Kind == b.Kind &&
		a.Title == b.Title &&
		a.Message == b.Message &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		a.IsRead == b.IsRead &&
		a.IsImportant == b.IsImportant &&
		sameRef(a.RelatedDocumentID, b.RelatedDocumentID) &&
		sameRef(a.RelatedApplicationID, b.RelatedApplicationID) &&
		a.ActorName == b.ActorName &&
		a.MetadataLabel == b.MetadataLabel
}

func sameRef(a, b *model.ID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
