package query

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/foldnet/gameserver/internal/actionlog"
	"github.com/foldnet/gameserver/internal/domain"
	"github.com/foldnet/gameserver/internal/fold"
)

// accumulatingRunner handles both action and query calls: actions
// append their bytes to state, queries echo back the current state.
type accumulatingRunner struct{}

func (accumulatingRunner) Run(ctx context.Context, moduleID domain.ModuleId, request []byte) ([]byte, error) {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(request, &generic); err != nil {
		return nil, err
	}
	var state string
	if raw, ok := generic["state"]; ok {
		_ = json.Unmarshal(raw, &state)
	}
	if _, ok := generic["action"]; ok {
		var action string
		json.Unmarshal(generic["action"], &action)
		newState := state + action
		out, _ := json.Marshal(map[string]string{"new_state": newState, "response": newState})
		return out, nil
	}
	out, _ := json.Marshal(map[string]string{"response": "state=" + state})
	return out, nil
}

func TestSubscribeEmitsOnePerAdvance(t *testing.T) {
	log := actionlog.NewLocal()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, a := range []string{"a", "b"} {
		if _, err := log.Append(ctx, "1.0.0", domain.ActionBlob(a)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	pipe := fold.New(ctx, "1.0.0", log, accumulatingRunner{})
	items := Subscribe(ctx, accumulatingRunner{}, "1.0.0", pipe.Snapshots(), domain.QueryBlob("anything"))

	var responses []string
	for i := 0; i < 2; i++ {
		select {
		case item := <-items:
			if item.Err != nil {
				t.Fatalf("unexpected error: %v", item.Err)
			}
			responses = append(responses, string(item.Response))
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for query item")
		}
	}

	if responses[0] != "state=a" {
		t.Fatalf("expected first response 'state=a', got %q", responses[0])
	}
	if responses[1] != "state=ab" {
		t.Fatalf("expected second response 'state=ab', got %q", responses[1])
	}
}
