package sandbox

import (
	"context"
	"fmt"

	"github.com/foldnet/gameserver/internal/domain"
)

// PassthroughCompiler is the default Compiler: it performs no actual
// bytecode compilation, treating the module's published bytes as
// already in the form the sandbox agent binary understands (e.g. a
// precompiled WASM module). Real deployments that need ahead-of-time
// compilation plug in a Compiler that shells out to their engine's
// compile step and caches the resulting artifact bytes instead.
type PassthroughCompiler struct{}

func (PassthroughCompiler) Compile(ctx context.Context, id domain.ModuleId, bytecode []byte) (*domain.CompiledModule, error) {
	if len(bytecode) == 0 {
		return nil, fmt.Errorf("empty module bytecode for %s", id)
	}
	return &domain.CompiledModule{ModuleID: id, Artifact: bytecode}, nil
}
