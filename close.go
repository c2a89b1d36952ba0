package spfresh

import (
	"context"

	"github.com/hupe1980/spfresh/internal/posting"
)

// Close releases the index. It is idempotent and safe on a nil index; every
// later call returns ErrClosed.
func (x *Index) Close() error {
	if x == nil {
		return nil
	}
	x.phase.Lock()
	defer x.phase.Unlock()
	if x.State() == StateClosed {
		return nil
	}
	x.state.Store(int32(StateClosed))
	x.head.Store(nil)
	x.postings = posting.NewStore(x.dim)
	x.stageMu.Lock()
	x.staged = nil
	x.stageMu.Unlock()
	x.logger.DebugContext(context.Background(), "index closed")
	return nil
}
