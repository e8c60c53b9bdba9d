package modprovider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/foldnet/gameserver/internal/domain"
)

// Filesystem resolves modules from a directory of "v<semver>.wasm"
// files: Load(version) reads root/v<version>.wasm.
type Filesystem struct {
	root  string
	defID domain.ModuleId
}

// NewFilesystem creates a Filesystem provider rooted at dir, with
// defaultID as the version handed out by Default.
func NewFilesystem(dir string, defaultID domain.ModuleId) *Filesystem {
	return &Filesystem{root: dir, defID: defaultID}
}

func (f *Filesystem) Default(ctx context.Context) (domain.ModuleId, error) {
	if f.defID == "" {
		return "", fmt.Errorf("%w: no default module configured", domain.ErrModuleNotFound)
	}
	return f.defID, nil
}

func (f *Filesystem) Load(ctx context.Context, id domain.ModuleId) ([]byte, error) {
	path := f.path(id)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrModuleNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("modprovider: read %s: %w", path, err)
	}
	return data, nil
}

func (f *Filesystem) path(id domain.ModuleId) string {
	return filepath.Join(f.root, fmt.Sprintf("v%s.wasm", id))
}

// Close is a no-op: Filesystem holds no resource beyond a root path.
func (f *Filesystem) Close() error { return nil }
