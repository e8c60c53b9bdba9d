package actionlog

import (
	"context"
	"testing"
	"time"

	"github.com/foldnet/gameserver/internal/domain"
)

func TestLocalAppendFetch(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	idx, err := l.Append(ctx, "1.0.0", domain.ActionBlob("a"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if idx != 0 {
		t.Fatalf("expected index 0, got %d", idx)
	}

	idx2, err := l.Append(ctx, "1.0.0", domain.ActionBlob("b"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if idx2 != 1 {
		t.Fatalf("expected index 1, got %d", idx2)
	}

	entry, err := l.Fetch(ctx, 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(entry.Action) != "a" {
		t.Fatalf("expected action 'a', got %q", entry.Action)
	}

	if _, err := l.Fetch(ctx, 2); err != domain.ErrLogCorrupt {
		t.Fatalf("expected ErrLogCorrupt for out-of-range index, got %v", err)
	}
}

func TestLocalWatchEmitsIncreasingLengths(t *testing.T) {
	l := NewLocal()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := l.Watch(ctx, 0)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	if _, err := l.Append(ctx, "1.0.0", domain.ActionBlob("x")); err != nil {
		t.Fatalf("append: %v", err)
	}

	select {
	case n := <-ch:
		if n != 1 {
			t.Fatalf("expected length 1, got %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for watch notification")
	}
}

func TestLocalLenMatchesAppendCount(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := l.Append(ctx, "1.0.0", domain.ActionBlob("x")); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	n, err := l.Len(ctx)
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected length 5, got %d", n)
	}
}
