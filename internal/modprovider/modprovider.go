// Package modprovider implements resolving a ModuleId to
// the bytecode it names, and resolving the default version to use for
// new actions. Two backends are provided: Filesystem, using a
// "<root>/v<semver>.wasm" convention, and S3, for deployments
// that publish modules to object storage.
package modprovider

import (
	"context"

	"github.com/foldnet/gameserver/internal/domain"
)

// Provider resolves module identities to bytecode.
type Provider interface {
	// Default returns the ModuleId that new actions should be appended
	// against when the caller does not pin a specific version.
	Default(ctx context.Context) (domain.ModuleId, error)

	// Load returns the bytecode for id, or domain.ErrModuleNotFound if
	// no such version has been published.
	Load(ctx context.Context, id domain.ModuleId) ([]byte, error)

	// Close releases any resources the provider holds (a cache backend's
	// connection, in Cached's case). Backends with nothing to release
	// return nil.
	Close() error
}
