package fold

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/foldnet/gameserver/internal/actionlog"
	"github.com/foldnet/gameserver/internal/domain"
)

// countingRunner implements a trivial module: it decodes the action
// call, appends the action bytes onto the prior state, and returns the
// concatenation as both the new state and the response, letting tests
// assert fold ordering and state accumulation without a real sandbox.
type countingRunner struct{}

func (countingRunner) Run(ctx context.Context, moduleID domain.ModuleId, request []byte) ([]byte, error) {
	var call struct {
		State  string `json:"state,omitempty"`
		Action string `json:"action"`
	}
	if err := json.Unmarshal(request, &call); err != nil {
		return nil, err
	}
	newState := call.State + call.Action
	out, _ := json.Marshal(map[string]string{
		"new_state": newState,
		"response":  newState,
	})
	return out, nil
}

func TestPipelineFoldsInOrder(t *testing.T) {
	log := actionlog.NewLocal()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, a := range []string{"a", "b", "c"} {
		if _, err := log.Append(ctx, "1.0.0", domain.ActionBlob(a)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	p := New(ctx, "1.0.0", log, countingRunner{})

	var got []domain.Snapshot
	for i := 0; i < 3; i++ {
		select {
		case r := <-p.Snapshots():
			if r.Err != nil {
				t.Fatalf("unexpected pipeline error: %v", r.Err)
			}
			got = append(got, r.Snapshot)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for snapshot")
		}
	}

	for i, snap := range got {
		if snap.Index != uint64(i) {
			t.Fatalf("expected index %d, got %d", i, snap.Index)
		}
	}
	if string(got[2].State) != "abc" {
		t.Fatalf("expected accumulated state 'abc', got %q", got[2].State)
	}
}
