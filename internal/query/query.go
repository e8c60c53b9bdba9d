// Package query implements a live subscription that
// invokes a module's query entry point each time the fold pipeline
// advances, yielding one response per advance until the caller cancels.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/foldnet/gameserver/internal/domain"
	"github.com/foldnet/gameserver/internal/fold"
	"github.com/foldnet/gameserver/internal/logging"
	"github.com/foldnet/gameserver/internal/observability"
	"github.com/foldnet/gameserver/internal/pkg/crypto"
)

var querySeq atomic.Uint64

// Runner is the subset of sandbox.Runner the query subscription depends
// on.
type Runner interface {
	Run(ctx context.Context, moduleID domain.ModuleId, request []byte) ([]byte, error)
}

// queryCall is the envelope sent to a module's stdin for a query step.
// Blobs travel as JSON strings holding their raw bytes.
type queryCall struct {
	State string                     `json:"state,omitempty"`
	Query string                     `json:"query"`
	Trace observability.TraceContext `json:"trace,omitempty"`
}

// queryResult is the envelope a module writes to stdout for a query
// step.
type queryResult struct {
	Response string `json:"response"`
}

// Item is one element of a query subscription's output: either a
// response or a terminal error (always the last item).
type Item struct {
	Response domain.QueryResponseBlob
	Err      error
}

// Subscribe invokes query against the module's state on every advance
// of the fold result stream in results (typically fold.Manager.Join),
// emitting one Item per Snapshot. No deduplication is performed:
// identical consecutive responses are still emitted. The returned
// channel closes when ctx is cancelled or the pipeline ends.
func Subscribe(ctx context.Context, runner Runner, moduleID domain.ModuleId, results <-chan fold.Result, query domain.QueryBlob) <-chan Item {
	out := make(chan Item, 1)

	go func() {
		defer close(out)

		for r := range results {
			if r.Err != nil {
				send(ctx, out, Item{Err: r.Err})
				return
			}

			resp, err := invoke(ctx, runner, moduleID, r.Snapshot.State, query)
			if err != nil {
				send(ctx, out, Item{Err: err})
				return
			}

			if !send(ctx, out, Item{Response: resp}) {
				return
			}
		}
	}()

	return out
}

// invoke runs one query round trip, recording a span and a RequestLog
// entry around it when tracing is enabled (observability.Init with
// Enabled: true); otherwise it just calls doInvoke directly, so callers
// that never initialize tracing pay nothing for it.
func invoke(ctx context.Context, runner Runner, moduleID domain.ModuleId, state domain.StateBlob, query domain.QueryBlob) (domain.QueryResponseBlob, error) {
	if !observability.Enabled() {
		return doInvoke(ctx, runner, moduleID, state, query)
	}

	requestID := crypto.HashString(fmt.Sprintf("%s-%d", moduleID, querySeq.Add(1)))

	ctx, sp := observability.StartSpan(ctx, "query.invoke",
		observability.AttrModuleID.String(string(moduleID)),
		observability.AttrRequestID.String(requestID),
		observability.AttrActionKind.String("query"),
	)
	defer sp.End()

	start := time.Now()
	resp, err := doInvoke(ctx, runner, moduleID, state, query)
	duration := time.Since(start)

	entry := &logging.RequestLog{
		RequestID:  requestID,
		Kind:       "query",
		ModuleID:   string(moduleID),
		DurationMs: duration.Milliseconds(),
		Success:    err == nil,
		InputSize:  len(query),
	}
	if sc := sp.SpanContext(); sc.IsValid() {
		entry.TraceID = sc.TraceID().String()
		entry.SpanID = sc.SpanID().String()
	}
	if err != nil {
		entry.Error = err.Error()
		observability.SetSpanError(sp, err)
	} else {
		entry.OutputSize = len(resp)
		observability.SetSpanOK(sp)
	}
	logging.Default().Log(entry)

	return resp, err
}

func doInvoke(ctx context.Context, runner Runner, moduleID domain.ModuleId, state domain.StateBlob, query domain.QueryBlob) (domain.QueryResponseBlob, error) {
	req, err := json.Marshal(queryCall{State: string(state), Query: string(query), Trace: observability.ExtractTraceContext(ctx)})
	if err != nil {
		return nil, fmt.Errorf("%w: encode query call: %v", domain.ErrProtocolMismatch, err)
	}

	respBytes, err := runner.Run(ctx, moduleID, req)
	if err != nil {
		return nil, err
	}

	var result queryResult
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("%w: decode query result: %v", domain.ErrProtocolMismatch, err)
	}
	return domain.QueryResponseBlob(result.Response), nil
}

// send delivers item, returning false if ctx ended before delivery
// (meaning the caller dropped the subscription — cancellation ends the
// upstream pipeline share, but any in-flight runner call is allowed to
// complete and its result simply discarded here).
func send(ctx context.Context, out chan<- Item, item Item) bool {
	select {
	case out <- item:
		return true
	case <-ctx.Done():
		return false
	}
}
