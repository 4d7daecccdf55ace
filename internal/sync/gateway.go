package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/campusbourses/internal/metrics"
	"github.com/nhle/campusbourses/internal/model"
	"github.com/nhle/campusbourses/internal/notify"
	"github.com/nhle/campusbourses/internal/source"
)

// Op names a user-initiated mutation.
type Op string

const (
	OpMarkRead    Op = "mark_read"
	OpMarkAllRead Op = "mark_all_read"
	OpDelete      Op = "delete"
	OpDeleteAll   Op = "delete_all"
)

func (o Op) describe() string {
	switch o {
	case OpMarkRead:
		return "mark notification as read"
	case OpMarkAllRead:
		return "mark all notifications as read"
	case OpDelete:
		return "delete notification"
	case OpDeleteAll:
		return "delete all notifications"
	default:
		return string(o)
	}
}

// reconcileTimeout bounds the re-fetch after a failed mutation.
const reconcileTimeout = 30 * time.Second

// Mutator sends mutations to the backend.
type Mutator interface {
	MarkRead(ctx context.Context, id model.ID) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id model.ID) error
	DeleteAll(ctx context.Context) error
}

// MutationError is returned when the backend did not confirm a mutation.
// The store has already been reconciled when it is returned, unless
// ReconcileErr is set.
type MutationError struct {
	Op Op
	ID model.ID

	// Err is the backend failure.
	Err error

	// ReconcileErr is set when the re-fetch failed too. The store then
	// keeps the optimistic state until the next successful poll.
	ReconcileErr error
}

func (e *MutationError) Error() string {
	target := ""
	if e.ID != "" {
		target = " " + e.ID.String()
	}
	if e.ReconcileErr != nil {
		return fmt.Sprintf("%s%s: %v (reconcile: %v)", e.Op, target, e.Err, e.ReconcileErr)
	}
	return fmt.Sprintf("%s%s: %v", e.Op, target, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// Notice is the transient, dismissible text shown to the user.
func (e *MutationError) Notice() string {
	var reason string
	var rejErr *source.RejectedError
	switch {
	case source.IsNetworkFailure(e.Err):
		reason = "the server could not be reached"
	case source.IsAuthError(e.Err):
		reason = "your session has expired"
	case source.IsNotFound(e.Err):
		reason = "it no longer exists"
	case errors.As(e.Err, &rejErr) && rejErr.Reason != "":
		reason = rejErr.Reason
	case errors.Is(e.Err, context.DeadlineExceeded):
		reason = "the server took too long to answer"
	default:
		reason = "the server refused the request"
	}

	if e.ReconcileErr != nil {
		return fmt.Sprintf("Could not %s: %s. The list will catch up on the next refresh.", e.Op.describe(), reason)
	}
	return fmt.Sprintf("Could not %s: %s. Showing the latest state.", e.Op.describe(), reason)
}

// Gateway applies user mutations optimistically, then confirms them with
// the backend. A failed mutation is rolled back by re-fetching the
// authoritative state rather than by an inverse operation.
type Gateway struct {
	backend Mutator
	store   *notify.Store
	sched   *Scheduler
	log     *zap.Logger
}

// NewGateway creates a Gateway. sched must feed st.
func NewGateway(backend Mutator, st *notify.Store, sched *Scheduler, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		backend: backend,
		store:   st,
		sched:   sched,
		log:     logger,
	}
}

// MarkRead marks one notification read. Marking an unknown or already read
// notification returns nil without contacting the backend.
func (g *Gateway) MarkRead(ctx context.Context, id model.ID) error {
	return g.apply(ctx, OpMarkRead, id,
		func() bool { return g.store.MarkRead(id) },
		func(ctx context.Context) error { return g.backend.MarkRead(ctx, id) })
}

// MarkAllRead marks every notification read.
func (g *Gateway) MarkAllRead(ctx context.Context) error {
	return g.apply(ctx, OpMarkAllRead, "",
		g.store.MarkAllRead,
		g.backend.MarkAllRead)
}

// Delete removes one notification.
func (g *Gateway) Delete(ctx context.Context, id model.ID) error {
	return g.apply(ctx, OpDelete, id,
		func() bool { return g.store.Remove(id) },
		func(ctx context.Context) error { return g.backend.Delete(ctx, id) })
}

// DeleteAll removes every notification.
func (g *Gateway) DeleteAll(ctx context.Context) error {
	return g.apply(ctx, OpDeleteAll, "",
		g.store.RemoveAll,
		g.backend.DeleteAll)
}

func (g *Gateway) apply(
	ctx context.Context,
	op Op,
	id model.ID,
	local func() bool,
	remote func(context.Context) error,
) error {
	logger := g.log.With(zap.String("op", string(op)))
	if id != "" {
		logger = logger.With(zap.String("id", id.String()))
	}

	if !g.sched.ApplyLocal(local) {
		metrics.Mutations.WithLabelValues(string(op), "noop").Inc()
		logger.Debug("mutation is a no-op")
		g.sched.emit(MutationResultMsg{Op: op, ID: id})
		return nil
	}
	g.sched.recordCounts()

	err := remote(ctx)
	if err == nil {
		// A poll issued while the request was in flight may predate it.
		g.sched.Invalidate()
		metrics.Mutations.WithLabelValues(string(op), metrics.ResultOK).Inc()
		logger.Debug("mutation confirmed")
		g.sched.emit(MutationResultMsg{Op: op, ID: id, Changed: true})
		return nil
	}

	metrics.Mutations.WithLabelValues(string(op), metrics.ResultError).Inc()
	metrics.Rollbacks.Inc()
	logger.Warn("mutation failed, reconciling", zap.Error(err))

	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reconcileTimeout)
	defer cancel()

	recErr := g.sched.Reconcile(recCtx)
	switch {
	case errors.Is(recErr, ErrStaleResponse):
		// A later mutation superseded this one and will reconcile itself.
		recErr = nil
	case errors.Is(recErr, ErrClosed):
		recErr = nil
	}
	if recErr != nil {
		logger.Warn("reconcile failed", zap.Error(recErr))
	}

	mErr := &MutationError{Op: op, ID: id, Err: err, ReconcileErr: recErr}
	g.sched.emit(MutationResultMsg{Op: op, ID: id, Changed: true, Err: mErr})
	return mErr
}
