package fold

import (
	"context"
	"sync"

	"github.com/foldnet/gameserver/internal/domain"
)

// Manager shares one running Pipeline per ModuleId across callers: the
// first caller for a given id starts the underlying fold; later callers
// join the same one instead of re-folding the log from scratch. Each
// caller still gets its own independent read cursor via Join.
type Manager struct {
	log    ActionLog
	runner Runner

	mu        sync.Mutex
	pipelines map[domain.ModuleId]*broadcastPipeline
}

// NewManager creates a Manager backed by log and runner.
func NewManager(log ActionLog, runner Runner) *Manager {
	return &Manager{log: log, runner: runner, pipelines: make(map[domain.ModuleId]*broadcastPipeline)}
}

// Join returns a channel of Results for moduleID, starting the
// underlying pipeline on first use and fanning it out to subsequent
// joiners. The channel closes when ctx is cancelled; the underlying
// pipeline keeps running for other joiners until the Manager itself is
// torn down (it is cheap: one compiled module, read-only shared state).
func (m *Manager) Join(ctx context.Context, moduleID domain.ModuleId) <-chan Result {
	m.mu.Lock()
	bp, ok := m.pipelines[moduleID]
	if !ok {
		bp = newBroadcastPipeline(context.Background(), moduleID, m.log, m.runner)
		m.pipelines[moduleID] = bp
	}
	m.mu.Unlock()

	return bp.subscribe(ctx)
}

// broadcastPipeline runs one Pipeline and lets any number of subscribers
// read its full Result history, each at its own pace via an independent
// cursor into a shared append-only log. A slow or stalled subscriber
// blocks only its own delivery goroutine; it never causes another
// subscriber, or the underlying Pipeline itself, to miss a Result.
type broadcastPipeline struct {
	mu      sync.Mutex
	cond    *sync.Cond
	history []Result
	done    bool
}

func newBroadcastPipeline(ctx context.Context, moduleID domain.ModuleId, log ActionLog, runner Runner) *broadcastPipeline {
	bp := &broadcastPipeline{}
	bp.cond = sync.NewCond(&bp.mu)
	pipe := New(ctx, moduleID, log, runner)

	go func() {
		for r := range pipe.Snapshots() {
			bp.mu.Lock()
			bp.history = append(bp.history, r)
			if r.Err != nil {
				bp.done = true
			}
			bp.cond.Broadcast()
			bp.mu.Unlock()
		}
	}()

	return bp
}

// subscribe returns a channel carrying every Result from index 0 onward,
// in order, with none dropped regardless of log length or how far behind
// this subscriber falls. The channel closes when ctx is cancelled or the
// pipeline ends with nothing left to deliver.
func (bp *broadcastPipeline) subscribe(ctx context.Context) <-chan Result {
	ch := make(chan Result, 1)

	go func() {
		<-ctx.Done()
		bp.mu.Lock()
		bp.cond.Broadcast()
		bp.mu.Unlock()
	}()

	go func() {
		defer close(ch)

		next := 0
		for {
			bp.mu.Lock()
			for next >= len(bp.history) && !bp.done && ctx.Err() == nil {
				bp.cond.Wait()
			}
			if next >= len(bp.history) {
				bp.mu.Unlock()
				return
			}
			r := bp.history[next]
			next++
			bp.mu.Unlock()

			select {
			case ch <- r:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}
