package rpcfront

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/foldnet/gameserver/internal/actionlog"
	"github.com/foldnet/gameserver/internal/domain"
	"github.com/foldnet/gameserver/internal/fold"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type echoRunner struct{}

func (echoRunner) Run(ctx context.Context, moduleID domain.ModuleId, request []byte) ([]byte, error) {
	var call struct {
		State  json.RawMessage `json:"state"`
		Action json.RawMessage `json:"action,omitempty"`
		Query  json.RawMessage `json:"query,omitempty"`
	}
	if err := json.Unmarshal(request, &call); err != nil {
		return nil, err
	}
	if call.Query != nil {
		return json.Marshal(map[string]json.RawMessage{"response": call.Query})
	}
	return json.Marshal(map[string]json.RawMessage{"new_state": call.Action, "response": call.Action})
}

type fixedActionHandler struct {
	response domain.ResponseBlob
	err      error
}

func (f fixedActionHandler) Handle(ctx context.Context, moduleID domain.ModuleId, request domain.ActionBlob) (domain.ResponseBlob, error) {
	return f.response, f.err
}

func withModuleID(id string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(moduleIDMetadataKey, id))
}

func TestServerActReturnsHandlerResponse(t *testing.T) {
	s := New(fixedActionHandler{response: domain.ResponseBlob(`"ok"`)}, echoRunner{}, nil)

	resp, err := s.Act(withModuleID("1.0.0"), wrapperspb.Bytes([]byte(`"req"`)))
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if string(resp.GetValue()) != `"ok"` {
		t.Fatalf("unexpected response: %s", resp.GetValue())
	}
}

func TestServerActRequiresModuleID(t *testing.T) {
	s := New(fixedActionHandler{}, echoRunner{}, nil)

	if _, err := s.Act(context.Background(), wrapperspb.Bytes(nil)); err == nil {
		t.Fatal("expected error without module_id metadata")
	}
}

func TestServerQueryStreamsOneResponsePerAdvance(t *testing.T) {
	log := actionlog.NewLocal()
	moduleID := domain.ModuleId("1.0.0")
	if _, err := log.Append(context.Background(), moduleID, domain.ActionBlob(`"a"`)); err != nil {
		t.Fatalf("append: %v", err)
	}

	join := func(ctx context.Context, id domain.ModuleId) <-chan fold.Result {
		return fold.New(ctx, id, log, echoRunner{}).Snapshots()
	}
	s := New(fixedActionHandler{}, echoRunner{}, join)

	ctx, cancel := context.WithCancel(withModuleID(string(moduleID)))
	defer cancel()

	stream := &recordingStream{ctx: ctx, cancel: cancel}
	_ = s.Query(wrapperspb.Bytes([]byte(`"q"`)), stream)
	if len(stream.sent) == 0 {
		t.Fatal("expected at least one streamed response")
	}
}

// recordingStream is a minimal grpc.ServerStreamingServer[wrapperspb.BytesValue]
// fake that records sent messages and cancels after the first one, since
// query.Subscribe otherwise streams for the pipeline's lifetime.
type recordingStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	sent   [][]byte
}

func (r *recordingStream) Send(m *wrapperspb.BytesValue) error {
	r.sent = append(r.sent, m.GetValue())
	r.cancel()
	return r.ctx.Err()
}

func (r *recordingStream) Context() context.Context { return r.ctx }

func (r *recordingStream) SendMsg(m interface{}) error  { return nil }
func (r *recordingStream) RecvMsg(m interface{}) error  { return nil }
func (r *recordingStream) SendHeader(metadata.MD) error { return nil }
func (r *recordingStream) SetHeader(metadata.MD) error  { return nil }
func (r *recordingStream) SetTrailer(metadata.MD)       {}
