package actionlog

import (
	"context"
	"sync"

	"github.com/foldnet/gameserver/internal/domain"
)

// Local is an in-process, non-durable ActionLog backed by a plain slice.
// It is intended for tests and single-node deployments that accept
// losing the log on restart. Watch fan-out gives each subscriber its
// own buffered channel; sends are non-blocking, and channels are torn
// down when their context ends.
type Local struct {
	mu      sync.Mutex
	entries []domain.LogEntry
	memo    *fetchMemo

	subMu sync.Mutex
	subs  map[chan uint64]struct{}

	closed bool
}

// NewLocal creates an empty Local log.
func NewLocal() *Local {
	return &Local{
		memo: newFetchMemo(),
		subs: make(map[chan uint64]struct{}),
	}
}

func (l *Local) Append(ctx context.Context, moduleID domain.ModuleId, action domain.ActionBlob) (uint64, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0, domain.ErrStorageUnavailable
	}
	index := uint64(len(l.entries))
	entry := domain.LogEntry{Index: index, ModuleID: moduleID, Action: action}
	l.entries = append(l.entries, entry)
	newLen := uint64(len(l.entries))
	l.broadcast(newLen)
	l.mu.Unlock()

	return index, nil
}

func (l *Local) Fetch(ctx context.Context, index uint64) (domain.LogEntry, error) {
	return l.memo.fetch(ctx, index, func(ctx context.Context) (domain.LogEntry, error) {
		l.mu.Lock()
		defer l.mu.Unlock()
		if index >= uint64(len(l.entries)) {
			return domain.LogEntry{}, domain.ErrLogCorrupt
		}
		return l.entries[index], nil
	})
}

func (l *Local) Len(ctx context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint64(len(l.entries)), nil
}

// Watch emits the current length (when it is above from) and then each
// new length as Append commits it, in increasing order, closing the
// returned channel when ctx ends. Sends are non-blocking: a subscriber
// whose 16-slot buffer is full does not receive that length, and learns
// of it only when a later append broadcasts a higher one.
func (l *Local) Watch(ctx context.Context, from uint64) (<-chan uint64, error) {
	ch := make(chan uint64, 16)

	l.mu.Lock()
	l.subMu.Lock()
	l.subs[ch] = struct{}{}
	l.subMu.Unlock()

	cur := uint64(len(l.entries))
	if cur > from {
		select {
		case ch <- cur:
		default:
		}
	}
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.subMu.Lock()
		delete(l.subs, ch)
		l.subMu.Unlock()
		close(ch)
	}()

	return ch, nil
}

func (l *Local) broadcast(newLen uint64) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	for ch := range l.subs {
		select {
		case ch <- newLen:
		default:
			// Subscriber is behind; this length is dropped and the
			// subscriber sees a higher one only when a later append
			// broadcasts it. Watchers act on the highest length they
			// have received, so a skipped length loses no entry once
			// a later one arrives.
		}
	}
}

func (l *Local) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}
