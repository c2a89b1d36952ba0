package spfresh

import (
	"errors"
	"fmt"
)

// Status is the coarse outcome class of an operation.
type Status int

const (
	StatusOK Status = iota
	StatusInvalidParameter
	StatusNotReady
	StatusBuildFailed
	StatusSearchFailed
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusInvalidParameter:
		return "InvalidParameter"
	case StatusNotReady:
		return "NotReady"
	case StatusBuildFailed:
		return "BuildFailed"
	case StatusSearchFailed:
		return "SearchFailed"
	case StatusUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// StatusOf classifies err. A nil error is StatusOK and anything outside the
// taxonomy is StatusUnknown.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrInvalidParameter):
		return StatusInvalidParameter
	case errors.Is(err, ErrNotReady):
		return StatusNotReady
	case errors.Is(err, ErrBuildFailed):
		return StatusBuildFailed
	case errors.Is(err, ErrSearchFailed):
		return StatusSearchFailed
	default:
		return StatusUnknown
	}
}

// State is the readiness state of an Index.
type State int32

const (
	// StateEmpty is a fresh index that has not been built or loaded.
	StateEmpty State = iota
	// StateBuilding is held for the duration of a Build.
	StateBuilding
	// StateReady serves Search, Add and Save.
	StateReady
	// StateFailed marks an index whose Build did not complete.
	StateFailed
	// StateClosed marks an index after Close.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}
