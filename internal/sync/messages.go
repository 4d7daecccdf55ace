package sync

import (
	"time"

	"github.com/nhle/campusbourses/internal/model"
)

// SyncState represents the current state of the scheduler.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "syncing"
	case SyncError:
		return "unreachable"
	default:
		return "idle"
	}
}

// SyncStatus holds the sync state of a session.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Error    error
}

// SyncResultMsg is a tea.Msg sent when a fetch completes.
type SyncResultMsg struct {
	// Applied is false when the fetch failed or its response was stale.
	Applied bool

	// New holds unread notifications not seen in the previous snapshot.
	// It is empty after the first fetch of a session.
	New []model.Notification

	Error     error
	AuthError *AuthErrorMsg
}

// AuthErrorMsg is sent when the backend refuses the session's token.
type AuthErrorMsg struct {
	Scope   model.Scope
	Message string
}

// MutationResultMsg is a tea.Msg sent when a mutation completes.
type MutationResultMsg struct {
	Op Op
	ID model.ID

	// Changed is false when the mutation was a local no-op and the
	// backend was never called.
	Changed bool

	// Err is nil on success and for no-op mutations.
	Err *MutationError
}
