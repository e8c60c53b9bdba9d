// Package fold implements the state fold pipeline that turns the action
// log into a strictly-ordered stream of Snapshots by repeatedly
// invoking the sandbox runner's module entry point. Each Pipeline runs
// on its own goroutine, so a slow module call stalls only that
// subscriber's own fold, not the action log or other subscribers.
package fold

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/foldnet/gameserver/internal/domain"
	"github.com/foldnet/gameserver/internal/metrics"
	"github.com/foldnet/gameserver/internal/observability"
)

// Runner is the subset of sandbox.Runner the fold pipeline depends on.
type Runner interface {
	Run(ctx context.Context, moduleID domain.ModuleId, request []byte) ([]byte, error)
}

// ActionLog is the subset of actionlog.ActionLog the fold pipeline
// depends on.
type ActionLog interface {
	Fetch(ctx context.Context, index uint64) (domain.LogEntry, error)
	Watch(ctx context.Context, from uint64) (<-chan uint64, error)
}

// actionCall is the envelope sent to a module's stdin for an action
// step: the fold's running state plus the raw action bytes from the
// log. Blobs travel as JSON strings holding their raw bytes. Trace
// carries the host's current trace context so a module that
// emits its own logs can correlate them with the span that invoked it.
type actionCall struct {
	State  string                     `json:"state,omitempty"`
	Action string                     `json:"action"`
	Trace  observability.TraceContext `json:"trace,omitempty"`
}

// actionResult is the envelope a module writes to stdout for an action
// step. An empty NewState means "carry the previous state forward
// unchanged" (the empty-state convention).
type actionResult struct {
	NewState string `json:"new_state,omitempty"`
	Response string `json:"response"`
}

// Pipeline folds one module_id's view of the action log into a stream
// of Snapshots. A Pipeline is single-use: create one per subscriber via
// New, read from Snapshots() until it closes, then discard it.
type Pipeline struct {
	moduleID domain.ModuleId
	log      ActionLog
	runner   Runner

	out chan Result
}

// Result is either a Snapshot or a terminal error. Exactly one Result
// with Err != nil may appear, always last.
type Result struct {
	Snapshot domain.Snapshot
	Err      error
}

// New starts folding log entries under moduleID from index 0, emitting
// onto the returned Pipeline's channel. Folding stops when ctx is
// cancelled or a module invocation fails.
func New(ctx context.Context, moduleID domain.ModuleId, log ActionLog, runner Runner) *Pipeline {
	p := &Pipeline{
		moduleID: moduleID,
		log:      log,
		runner:   runner,
		out:      make(chan Result, 1),
	}
	go p.run(ctx)
	return p
}

// Snapshots returns the channel of fold results. It is closed after
// exactly one Result with a non-nil Err, or when ctx passed to New is
// cancelled.
func (p *Pipeline) Snapshots() <-chan Result {
	return p.out
}

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.out)

	lengths, err := p.log.Watch(ctx, 0)
	if err != nil {
		p.emit(Result{Err: fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)})
		return
	}

	var state domain.StateBlob
	next := uint64(0)

	for {
		var ceiling uint64
		select {
		case c, ok := <-lengths:
			if !ok {
				return
			}
			ceiling = c
		case <-ctx.Done():
			return
		}

		for next < ceiling {
			entry, err := p.log.Fetch(ctx, next)
			if err != nil {
				p.emit(Result{Err: err})
				return
			}

			stepCtx := ctx
			var sp trace.Span
			if observability.Enabled() {
				stepCtx, sp = observability.StartSpan(ctx, "fold.step",
					observability.AttrModuleID.String(string(p.moduleID)),
					observability.AttrLogIndex.Int64(int64(next)),
				)
			}

			newState, response, err := p.step(stepCtx, state, entry.Action)
			metrics.Global().RecordFoldAdvance(string(p.moduleID), err == nil)

			if sp != nil {
				if err != nil {
					observability.SetSpanError(sp, err)
				} else {
					observability.SetSpanOK(sp)
				}
				sp.End()
			}

			if err != nil {
				p.emit(Result{Err: err})
				return
			}

			if len(newState) > 0 {
				state = newState
			}

			snap := domain.Snapshot{Index: next, ModuleID: p.moduleID, State: state, LastResponse: response}

			select {
			case p.out <- Result{Snapshot: snap}:
			case <-ctx.Done():
				return
			}
			next++
		}
	}
}

func (p *Pipeline) step(ctx context.Context, state domain.StateBlob, action domain.ActionBlob) (domain.StateBlob, domain.ResponseBlob, error) {
	call := actionCall{State: string(state), Action: string(action), Trace: observability.ExtractTraceContext(ctx)}
	req, err := json.Marshal(call)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: encode action call: %v", domain.ErrProtocolMismatch, err)
	}

	respBytes, err := p.runner.Run(ctx, p.moduleID, req)
	if err != nil {
		return nil, nil, err
	}

	var result actionResult
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, nil, fmt.Errorf("%w: decode action result: %v", domain.ErrProtocolMismatch, err)
	}

	return domain.StateBlob(result.NewState), domain.ResponseBlob(result.Response), nil
}

// emit delivers a terminal Result (always an error), blocking briefly to
// give a waiting consumer a chance to see it but never hanging forever
// if nobody is listening.
func (p *Pipeline) emit(r Result) {
	select {
	case p.out <- r:
	default:
		select {
		case p.out <- r:
		case <-time.After(time.Second):
		}
	}
}
