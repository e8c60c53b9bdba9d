package actionlog

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/foldnet/gameserver/internal/domain"
)

// fetchMemo is a process-wide memoization of already-fetched log
// entries, keyed by index. Concurrent watchers that fetch the same
// committed index share one underlying round trip to the backend
// instead of each issuing their own redundant fetch.
type fetchMemo struct {
	group singleflight.Group

	mu      sync.RWMutex
	entries map[uint64]domain.LogEntry
}

func newFetchMemo() *fetchMemo {
	return &fetchMemo{entries: make(map[uint64]domain.LogEntry)}
}

// fetch returns the memoized entry for index, calling raw to populate it
// on first request. raw is only ever invoked once per index even under
// concurrent callers.
func (m *fetchMemo) fetch(ctx context.Context, index uint64, raw func(context.Context) (domain.LogEntry, error)) (domain.LogEntry, error) {
	m.mu.RLock()
	entry, ok := m.entries[index]
	m.mu.RUnlock()
	if ok {
		return entry, nil
	}

	key := keyFor(index)
	v, err, _ := m.group.Do(key, func() (interface{}, error) {
		// Re-check under the singleflight key in case a concurrent
		// caller finished populating the cache while we waited to
		// enter Do.
		m.mu.RLock()
		if e, ok := m.entries[index]; ok {
			m.mu.RUnlock()
			return e, nil
		}
		m.mu.RUnlock()

		e, err := raw(ctx)
		if err != nil {
			return domain.LogEntry{}, err
		}

		m.mu.Lock()
		m.entries[index] = e
		m.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return domain.LogEntry{}, err
	}
	return v.(domain.LogEntry), nil
}

func keyFor(index uint64) string {
	return strconv.FormatUint(index, 10)
}
