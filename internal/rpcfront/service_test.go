package rpcfront

import (
	"context"
	"testing"

	"github.com/foldnet/gameserver/internal/domain"
	"google.golang.org/grpc/metadata"
)

func TestModuleIDFromContextMissingMetadata(t *testing.T) {
	if _, err := moduleIDFromContext(context.Background()); err == nil {
		t.Fatal("expected error without incoming metadata")
	}
}

func TestModuleIDFromContextReadsModuleID(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(moduleIDMetadataKey, "1.2.3"))
	id, err := moduleIDFromContext(ctx)
	if err != nil {
		t.Fatalf("moduleIDFromContext: %v", err)
	}
	if id != domain.ModuleId("1.2.3") {
		t.Fatalf("expected module id 1.2.3, got %s", id)
	}
}

func TestTranslateErrorMapsKnownSentinels(t *testing.T) {
	cases := map[error]bool{
		domain.ErrModuleNotFound:     true,
		domain.ErrProtocolMismatch:   true,
		domain.ErrAuth:               true,
		domain.ErrStorageUnavailable: true,
	}
	for sentinel := range cases {
		if translateError(sentinel) == nil {
			t.Fatalf("expected a status error for %v", sentinel)
		}
	}
}
