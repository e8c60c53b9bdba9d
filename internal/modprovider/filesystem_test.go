package modprovider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/foldnet/gameserver/internal/domain"
)

func TestFilesystemLoad(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "v1.0.0.wasm"), []byte("bytecode"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	p := NewFilesystem(dir, "1.0.0")
	ctx := context.Background()

	id, err := p.Default(ctx)
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if id != "1.0.0" {
		t.Fatalf("expected default 1.0.0, got %s", id)
	}

	data, err := p.Load(ctx, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(data) != "bytecode" {
		t.Fatalf("expected 'bytecode', got %q", data)
	}
}

func TestFilesystemLoadMissing(t *testing.T) {
	p := NewFilesystem(t.TempDir(), "1.0.0")
	_, err := p.Load(context.Background(), "9.9.9")
	if err == nil {
		t.Fatal("expected error for missing module")
	}
	if !errors.Is(err, domain.ErrModuleNotFound) {
		t.Fatalf("expected ErrModuleNotFound, got %v", err)
	}
}
