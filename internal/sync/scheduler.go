package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/nhle/campusbourses/internal/metrics"
	"github.com/nhle/campusbourses/internal/model"
	"github.com/nhle/campusbourses/internal/notify"
	"github.com/nhle/campusbourses/internal/source"
)

var (
	// ErrFetchInFlight is returned when a fetch is skipped because
	// another one is still outstanding.
	ErrFetchInFlight = errors.New("fetch already in flight")

	// ErrStaleResponse is returned when a response was discarded because
	// a newer request was issued after it.
	ErrStaleResponse = errors.New("stale response discarded")

	// ErrClosed is returned by fetches on a closed scheduler.
	ErrClosed = errors.New("scheduler closed")
)

const (
	// DefaultPollInterval matches the web client's refresh cadence.
	DefaultPollInterval = 30 * time.Second

	// fetchTimeout is the maximum time allowed for a single fetch operation.
	fetchTimeout = 30 * time.Second
)

// Fetcher retrieves the authoritative notification snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) (*model.Snapshot, error)
}

// Options tunes a Scheduler. The zero value is usable.
type Options struct {
	Logger       *zap.Logger
	FetchTimeout time.Duration
	Scope        model.Scope
}

// Scheduler drives periodic refresh of a notify.Store without overlapping
// requests: at most one fetch is outstanding at any time, and a response
// is applied only if it belongs to the most recently issued request.
type Scheduler struct {
	src     Fetcher
	store   *notify.Store
	seq     Sequencer
	guard   *semaphore.Weighted
	log     *zap.Logger
	scope   model.Scope
	timeout time.Duration

	events chan tea.Msg

	mu       gosync.Mutex
	status   SyncStatus
	running  bool
	closed   bool
	stopCh   chan struct{}
	seen     map[model.ID]bool
	hasFetch bool
}

// New creates a new Scheduler feeding st from src.
func New(src Fetcher, st *notify.Store, opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = fetchTimeout
	}
	return &Scheduler{
		src:     src,
		store:   st,
		guard:   semaphore.NewWeighted(1),
		log:     logger,
		scope:   opts.Scope,
		timeout: timeout,
		events:  make(chan tea.Msg, 16),
	}
}

// Start fetches immediately, then every interval until Stop. Calling Start
// on a running scheduler does nothing.
func (s *Scheduler) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	s.log.Info("sync started", zap.Duration("interval", interval))
	go s.loop(interval, stopCh)
}

// Stop halts the timer. In-flight requests may complete; their responses
// are discarded. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.running = false
	s.mu.Unlock()

	s.seq.Invalidate()
	s.log.Info("sync stopped")
}

// Close stops the scheduler for good. Fetches started afterwards fail with
// ErrClosed and responses still in flight are discarded.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.Stop()
	s.seq.Invalidate()
}

func (s *Scheduler) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Running reports whether the timer is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Do an initial fetch immediately
	s.tick(stopCh)

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.tick(stopCh)
		}
	}
}

func (s *Scheduler) tick(stopCh <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	select {
	case <-stopCh:
		return
	default:
	}

	if err := s.trigger(ctx, stopCh); errors.Is(err, ErrFetchInFlight) {
		s.log.Debug("tick skipped, fetch in flight")
	}
}

// TriggerNow runs an out-of-band fetch sharing the timer's in-flight
// guard. It returns ErrFetchInFlight without fetching if another fetch is
// outstanding.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.trigger(ctx, nil)
}

func (s *Scheduler) trigger(ctx context.Context, stopCh <-chan struct{}) error {
	if !s.guard.TryAcquire(1) {
		metrics.Fetches.WithLabelValues(metrics.ResultSkipped).Inc()
		return ErrFetchInFlight
	}
	defer s.guard.Release(1)

	return s.fetch(ctx, stopCh)
}

// Reconcile re-fetches the authoritative state. Unlike TriggerNow it waits
// for an outstanding fetch to finish instead of skipping, so the result
// always reflects the backend after the caller's mutation.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	if err := s.guard.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for in-flight fetch: %w", err)
	}
	defer s.guard.Release(1)

	return s.fetch(ctx, nil)
}

// Invalidate discards the response of every request issued so far. The
// mutation gateway calls it around optimistic updates.
func (s *Scheduler) Invalidate() {
	s.seq.Invalidate()
}

// ApplyLocal runs an optimistic store mutation. When it changes the store,
// every outstanding fetch is invalidated in the same step so an older
// snapshot cannot overwrite it.
func (s *Scheduler) ApplyLocal(mutate func() bool) bool {
	return s.seq.Supersede(mutate)
}

// Status returns the current sync status.
func (s *Scheduler) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Events returns the channel carrying SyncResultMsg and MutationResultMsg
// values.
func (s *Scheduler) Events() <-chan tea.Msg {
	return s.events
}

// WaitForEvent returns a tea.Cmd that waits for the next event. Call it
// again after handling each event to keep listening. The command returns
// nil once done is closed.
func (s *Scheduler) WaitForEvent(done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-s.events:
			return msg
		case <-done:
			return nil
		}
	}
}

// fetch performs one fetch. The caller holds the guard. A timer-driven
// fetch passes its stop channel; once closed, the response is dropped.
func (s *Scheduler) fetch(ctx context.Context, stopCh <-chan struct{}) error {
	if s.isClosed() {
		return ErrClosed
	}
	n := s.seq.Issue()
	s.setStatus(SyncRunning, nil)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	snap, err := s.src.Fetch(ctx)
	if err != nil {
		s.setStatus(SyncError, err)
		metrics.Fetches.WithLabelValues(metrics.ResultError).Inc()
		s.log.Warn("fetch failed",
			zap.Bool("network", source.IsNetworkFailure(err)),
			zap.Bool("rejected", source.IsRejected(err)),
			zap.Error(err))

		msg := SyncResultMsg{Error: err}
		if source.IsAuthError(err) {
			msg.AuthError = &AuthErrorMsg{
				Scope:   s.scope,
				Message: "authentication expired. Run 'campusbourses login' or press 'c' to reconfigure.",
			}
		}
		s.emit(msg)
		return err
	}

	// Stop and Close invalidate after flipping their flag, so a fetch
	// issued before the check fails Commit and one issued after it sees
	// the flag.
	if s.isClosed() {
		s.log.Debug("discarding response of closed scheduler", zap.Uint64("seq", n))
		return ErrClosed
	}
	applied := !closed(stopCh) && s.seq.Commit(n, func() {
		s.store.Replace(snap.Unread, snap.Recent)
	})
	if !applied {
		s.setStatus(SyncIdle, nil)
		metrics.Fetches.WithLabelValues(metrics.ResultStale).Inc()
		s.log.Debug("discarding stale response", zap.Uint64("seq", n))
		return ErrStaleResponse
	}

	if snap.UnreadCount != len(snap.Unread) {
		s.log.Debug("backend unread_count differs from list",
			zap.Int("reported", snap.UnreadCount),
			zap.Int("listed", len(snap.Unread)))
	}

	fresh := s.trackUnread(snap.Unread)
	s.setStatus(SyncIdle, nil)
	metrics.Fetches.WithLabelValues(metrics.ResultOK).Inc()
	s.recordCounts()

	s.emit(SyncResultMsg{Applied: true, New: fresh})
	return nil
}

// recordCounts publishes the store's counts as gauges.
func (s *Scheduler) recordCounts() {
	metrics.Unread.Set(float64(s.store.UnreadCount()))
	metrics.Important.Set(float64(s.store.ImportantCount()))
}

// trackUnread returns the unread entries not present in the previous
// snapshot and remembers the current set.
func (s *Scheduler) trackUnread(unread []model.Notification) []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fresh []model.Notification
	seen := make(map[model.ID]bool, len(unread))
	for _, n := range unread {
		seen[n.ID] = true
		if s.hasFetch && !s.seen[n.ID] {
			fresh = append(fresh, n)
		}
	}
	s.seen = seen
	s.hasFetch = true
	return fresh
}

// setStatus updates the sync status.
func (s *Scheduler) setStatus(state SyncState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.State = state
	s.status.Error = err
	if state == SyncIdle && err == nil {
		s.status.LastSync = time.Now()
	}
}

func closed(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// emit sends a message on the event channel without blocking.
func (s *Scheduler) emit(msg tea.Msg) {
	select {
	case s.events <- msg:
	default:
		// Drop if channel is full to avoid blocking the fetch path
	}
}
