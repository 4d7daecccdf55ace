package sync

import (
	"time"

	"go.uber.org/zap"

	"github.com/nhle/campusbourses/internal/notify"
	"github.com/nhle/campusbourses/internal/source"
)

// Session owns the notification state of one authenticated user: a single
// store, the scheduler that feeds it and the gateway that mutates it. Every
// UI surface shares the same Session.
type Session struct {
	Store     *notify.Store
	Scheduler *Scheduler
	Gateway   *Gateway

	src source.Source
}

// NewSession wires a session around src. Nothing runs until Start.
func NewSession(src source.Source, logger *zap.Logger, fetchTimeout time.Duration) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("scope", string(src.Scope())))

	st := notify.NewStore()
	sched := New(src, st, Options{
		Logger:       logger.Named("sync"),
		FetchTimeout: fetchTimeout,
		Scope:        src.Scope(),
	})

	return &Session{
		Store:     st,
		Scheduler: sched,
		Gateway:   NewGateway(src, st, sched, logger.Named("gateway")),
		src:       src,
	}
}

// Source returns the backend the session talks to.
func (s *Session) Source() source.Source {
	return s.src
}

// Start begins polling.
func (s *Session) Start(interval time.Duration) {
	s.Scheduler.Start(interval)
}

// Close stops polling and clears local state, as on logout. Responses
// that arrive later are not applied.
func (s *Session) Close() {
	s.Scheduler.Close()
	s.Store.RemoveAll()
}
