package spfresh

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/spfresh/internal/headindex"
	"github.com/hupe1980/spfresh/internal/posting"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status Status
	}{
		{name: "nil", err: nil, status: StatusOK},
		{name: "classified", err: fmt.Errorf("wrap: %w", ErrNotReady), status: StatusNotReady},
		{name: "head dimension", err: headindex.ErrDimension, status: StatusInvalidParameter},
		{name: "posting dimension", err: fmt.Errorf("append: %w", posting.ErrDimension), status: StatusInvalidParameter},
		{name: "no candidates", err: headindex.ErrNoCandidates, status: StatusSearchFailed},
		{name: "io", err: io.ErrUnexpectedEOF, status: StatusUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.err)
			assert.Equal(t, tt.status, StatusOf(got))
			if tt.err != nil {
				assert.ErrorIs(t, got, tt.err)
			}
		})
	}

	// Already classified errors pass through untouched.
	err := invalidParam("k=%d", 0)
	assert.Same(t, err, translateError(err))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusOK, StatusOf(nil))
	assert.Equal(t, StatusInvalidParameter, StatusOf(ErrClosed))
	assert.Equal(t, StatusInvalidParameter, StatusOf(&ErrDimensionMismatch{Expected: 2, Actual: 3}))
	assert.Equal(t, StatusBuildFailed, StatusOf(fmt.Errorf("%w: x", ErrBuildFailed)))
	assert.Equal(t, StatusUnknown, StatusOf(errors.New("boom")))

	assert.Equal(t, "InvalidParameter", StatusInvalidParameter.String())
	assert.Equal(t, "Status(42)", Status(42).String())
	assert.Equal(t, "ready", StateReady.String())
}

func TestRecoverError(t *testing.T) {
	f := func() (err error) {
		defer recoverError(&err)
		panic("kaboom")
	}
	err := f()
	assert.ErrorIs(t, err, ErrUnknown)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestErrDimensionMismatch(t *testing.T) {
	err := error(&ErrDimensionMismatch{Expected: 4, Actual: 3})
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.EqualError(t, err, "dimension mismatch: expected 4, got 3")
}
