package state

import (
	"errors"

	"github.com/danielpatrickdp/spiral-state/internal/profile"
)

// #region errors
var (
	// ErrOverflow is returned when an increment would exceed math.MaxUint32.
	ErrOverflow = errors.New("counter overflow")
	// ErrCorruptState is returned when a persisted blob cannot be restored.
	ErrCorruptState = errors.New("corrupt state")
	// ErrStateNotReady is returned for operations issued before Startup or
	// Restore, or after TakeForShutdown.
	ErrStateNotReady = errors.New("state not ready")
	// ErrAlreadyStarted is returned by Startup on a store that is not absent.
	ErrAlreadyStarted = errors.New("state already started")

	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
)
// #endregion errors

// #region phase
// Phase is the lifecycle position of the in-memory state.
type Phase int

const (
	// PhaseAbsent: no state yet (fresh process).
	PhaseAbsent Phase = iota
	// PhasePresent: state is live and operations are served.
	PhasePresent
	// PhaseTaken: state was surrendered to a shutdown blob.
	PhaseTaken
)

func (p Phase) String() string {
	switch p {
	case PhaseAbsent:
		return "absent"
	case PhasePresent:
		return "present"
	case PhaseTaken:
		return "taken"
	default:
		return "unknown"
	}
}
// #endregion phase

// #region process-state
// ProcessState is everything the service keeps across restarts.
type ProcessState struct {
	Counter uint32
	Users   map[string]*profile.Profile
}

func defaultState() *ProcessState {
	return &ProcessState{Users: make(map[string]*profile.Profile)}
}
// #endregion process-state
