package spfresh

import (
	"errors"
	"fmt"

	"github.com/hupe1980/spfresh/internal/headindex"
	"github.com/hupe1980/spfresh/internal/posting"
)

var (
	// ErrInvalidParameter is returned when a caller violates an operation's
	// contract: empty batch, non-positive k, bad option or dimension mismatch.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotReady is returned by operations that need a built or loaded index.
	ErrNotReady = errors.New("index not ready")

	// ErrBuildFailed is returned when head selection or corpus assignment
	// could not complete. A failed index rejects further builds.
	ErrBuildFailed = errors.New("build failed")

	// ErrSearchFailed is returned when a traversal yields no usable candidate heads.
	ErrSearchFailed = errors.New("search failed")

	// ErrUnknown classifies every other internal fault, including storage
	// I/O errors and corrupt snapshots. The cause stays reachable through
	// errors.Is and errors.As.
	ErrUnknown = errors.New("internal error")

	// ErrClosed is returned by every method of a closed index.
	ErrClosed = fmt.Errorf("index closed: %w", ErrInvalidParameter)
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
// It matches ErrInvalidParameter under errors.Is.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return ErrInvalidParameter }

func invalidParam(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

func classified(err error) bool {
	for _, target := range []error{ErrInvalidParameter, ErrNotReady, ErrBuildFailed, ErrSearchFailed, ErrUnknown} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// translateError maps an internal error onto the public taxonomy while
// keeping the original error in the chain.
func translateError(err error) error {
	if err == nil || classified(err) {
		return err
	}

	switch {
	case errors.Is(err, headindex.ErrDimension), errors.Is(err, posting.ErrDimension):
		return fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	case errors.Is(err, headindex.ErrNoCandidates):
		return fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	return fmt.Errorf("%w: %w", ErrUnknown, err)
}

// recoverError turns a panic in a public method into ErrUnknown.
func recoverError(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: panic: %v", ErrUnknown, r)
	}
}
