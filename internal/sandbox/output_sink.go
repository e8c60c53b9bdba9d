package sandbox

import (
	"github.com/foldnet/gameserver/internal/logging"
)

// OutputSink records a run's captured stdout/stderr for later diagnosis,
// delegating to the host's TTL-bounded logging.OutputStore so captured
// output doesn't accumulate forever.
type OutputSink struct {
	store *logging.OutputStore
}

// NewOutputSink wraps an already-initialized logging.OutputStore.
func NewOutputSink(store *logging.OutputStore) *OutputSink {
	return &OutputSink{store: store}
}

// Record stores the stdout/stderr captured from one run against
// moduleID. The request id is omitted (sandbox runs are not otherwise
// addressable); the store indexes by a synthetic id to still support
// the per-module recency listing in logging.OutputStore.GetByModule.
func (s *OutputSink) Record(moduleID, stdout, stderr string) {
	if s == nil || s.store == nil {
		return
	}
	s.store.Store(syntheticRequestID(), moduleID, stdout, stderr)
}

var requestSeq = newAtomicCounter()

func syntheticRequestID() string {
	return "run-" + requestSeq.next()
}
