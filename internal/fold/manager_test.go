package fold

import (
	"context"
	"testing"
	"time"

	"github.com/foldnet/gameserver/internal/actionlog"
	"github.com/foldnet/gameserver/internal/domain"
)

func TestManagerJoinReplaysHistoryToLateSubscriber(t *testing.T) {
	log := actionlog.NewLocal()
	ctx := context.Background()

	if _, err := log.Append(ctx, "1.0.0", domain.ActionBlob("a")); err != nil {
		t.Fatalf("append: %v", err)
	}

	mgr := NewManager(log, countingRunner{})

	sub1, cancel1 := context.WithCancel(ctx)
	defer cancel1()
	first := mgr.Join(sub1, "1.0.0")

	select {
	case r := <-first:
		if r.Err != nil || r.Snapshot.Index != 0 {
			t.Fatalf("unexpected first result: %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first subscriber")
	}

	// A second, later joiner must still observe the already-folded
	// history from index 0.
	sub2, cancel2 := context.WithCancel(ctx)
	defer cancel2()
	second := mgr.Join(sub2, "1.0.0")

	select {
	case r := <-second:
		if r.Err != nil || r.Snapshot.Index != 0 {
			t.Fatalf("unexpected replayed result: %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for replayed history")
	}
}

// TestManagerJoinDoesNotDropResultsPastBufferDepth guards against a
// broadcast fan-out that silently drops a Result once a subscriber falls
// further behind than some fixed channel buffer: a joiner must eventually
// observe every index, however long the log, however late it starts
// reading its channel.
func TestManagerJoinDoesNotDropResultsPastBufferDepth(t *testing.T) {
	log := actionlog.NewLocal()
	ctx := context.Background()

	const n = 200
	for i := 0; i < n; i++ {
		if _, err := log.Append(ctx, "1.0.0", domain.ActionBlob("x")); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	mgr := NewManager(log, countingRunner{})
	sub, cancel := context.WithCancel(ctx)
	defer cancel()

	results := mgr.Join(sub, "1.0.0")

	// Let the pipeline run well ahead before this subscriber reads
	// anything, so any fixed-size non-blocking fan-out buffer would
	// already have overflowed and dropped entries by the time we start
	// draining.
	time.Sleep(200 * time.Millisecond)

	seen := make(map[uint64]bool)
	for len(seen) < n {
		select {
		case r := <-results:
			if r.Err != nil {
				t.Fatalf("unexpected result error: %v", r.Err)
			}
			seen[r.Snapshot.Index] = true
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out with only %d/%d indices observed", len(seen), n)
		}
	}

	for i := uint64(0); i < n; i++ {
		if !seen[i] {
			t.Fatalf("index %d was never delivered to the subscriber", i)
		}
	}
}
