// Package action implements appending one action to the
// log and returning the response the fold pipeline produced for it.
package action

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/foldnet/gameserver/internal/domain"
	"github.com/foldnet/gameserver/internal/fold"
	"github.com/foldnet/gameserver/internal/logging"
	"github.com/foldnet/gameserver/internal/metrics"
	"github.com/foldnet/gameserver/internal/observability"
	"github.com/foldnet/gameserver/internal/pkg/crypto"
)

var actionSeq atomic.Uint64

// ActionLog is the subset of actionlog.ActionLog the handler depends on.
type ActionLog interface {
	Append(ctx context.Context, moduleID domain.ModuleId, action domain.ActionBlob) (uint64, error)
}

// Joiner starts or joins a fold pipeline for moduleID, returning its
// result stream. A fold.Manager.Join satisfies this directly; tests may
// instead pass a one-shot fold.New(...).Snapshots().
type Joiner func(ctx context.Context, moduleID domain.ModuleId) <-chan fold.Result

// Provider resolves the default module id.
type Provider interface {
	Default(ctx context.Context) (domain.ModuleId, error)
}

// Handler orchestrates append → fold-and-skip → response.
type Handler struct {
	log      ActionLog
	provider Provider
	join     Joiner
}

// New creates a Handler.
func New(log ActionLog, provider Provider, join Joiner) *Handler {
	return &Handler{log: log, provider: provider, join: join}
}

// Handle appends request under moduleID (defaulting via the provider),
// then waits for the fold pipeline to reach the appended index and
// returns its response.
func (h *Handler) Handle(ctx context.Context, moduleID domain.ModuleId, request domain.ActionBlob) (domain.ResponseBlob, error) {
	if moduleID == "" {
		id, err := h.provider.Default(ctx)
		if err != nil {
			return nil, err
		}
		moduleID = id
	}

	if !observability.Enabled() {
		return h.handle(ctx, moduleID, request)
	}

	requestID := crypto.HashString(fmt.Sprintf("%s-%d", moduleID, actionSeq.Add(1)))
	ctx, sp := observability.StartServerSpan(ctx, "action.handle",
		observability.AttrModuleID.String(string(moduleID)),
		observability.AttrRequestID.String(requestID),
		observability.AttrActionKind.String("action"),
	)
	defer sp.End()

	start := time.Now()
	resp, err := h.handle(ctx, moduleID, request)
	duration := time.Since(start)

	entry := &logging.RequestLog{
		RequestID:  requestID,
		Kind:       "action",
		ModuleID:   string(moduleID),
		DurationMs: duration.Milliseconds(),
		Success:    err == nil,
		InputSize:  len(request),
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

func (h *Handler) handle(ctx context.Context, moduleID domain.ModuleId, request domain.ActionBlob) (domain.ResponseBlob, error) {
	targetIndex, err := h.log.Append(ctx, moduleID, request)
	metrics.Global().RecordAppend(err == nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	results := h.join(ctx, moduleID)

	for r := range results {
		if r.Err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrLogicFailure, r.Err)
		}
		if r.Snapshot.Index == targetIndex {
			return r.Snapshot.LastResponse, nil
		}
	}

	return nil, domain.ErrPipelineEnded
}
