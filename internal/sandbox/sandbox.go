// Package sandbox implements loading and caching compiled
// modules and executing one request→response round trip per call inside
// an isolated process with no filesystem, network, clock, or
// environment access beyond the stdin/stdout channel the runner wires
// up. Uses exec.Command wiring with readiness/trap handling, adapted to
// a fresh OS process per run since the sandbox contract here requires
// no ambient state to survive between calls.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/foldnet/gameserver/internal/domain"
	"github.com/foldnet/gameserver/internal/metrics"
	"github.com/foldnet/gameserver/internal/modprovider"
	"github.com/foldnet/gameserver/internal/observability"
)

// Compiler turns raw module bytecode into a host-specific executable
// artifact. The default Compiler (PassthroughCompiler) simply validates
// the bytes are non-empty and returns them unchanged; execute then
// writes the artifact to a temp file the sandbox binary loads on each
// run. A real WASM-capable deployment would plug in an actual
// engine's compile step here.
type Compiler interface {
	Compile(ctx context.Context, id domain.ModuleId, bytecode []byte) (*domain.CompiledModule, error)
}

// Config configures the sandbox runner's executable wiring.
type Config struct {
	// AgentPath is the path to the sandbox host binary invoked for each
	// run; it receives the compiled module's artifact path as argv[1]
	// and the request bytes on stdin.
	AgentPath string
	// RunTimeout bounds a single run() call; exceeding it is reported
	// as a SandboxTrap.
	RunTimeout time.Duration
}

// Runner executes module calls inside sandboxed processes, caching
// compiled modules across calls.
type Runner struct {
	cfg      Config
	provider modprovider.Provider
	compiler Compiler

	mu       sync.RWMutex
	compiled map[domain.ModuleId]*domain.CompiledModule
	group    singleflight.Group

	outputs *OutputSink
}

// NewRunner creates a Runner that loads module bytes from provider,
// compiles them with compiler, and launches cfg.AgentPath for each run.
func NewRunner(cfg Config, provider modprovider.Provider, compiler Compiler, outputs *OutputSink) *Runner {
	return &Runner{
		cfg:      cfg,
		provider: provider,
		compiler: compiler,
		compiled: make(map[domain.ModuleId]*domain.CompiledModule),
		outputs:  outputs,
	}
}

// Run executes one request→response round trip. An empty moduleID means
// "use the provider's default". Many concurrent Run calls against the
// same moduleID are safe: each gets its own OS process but shares one
// compiled artifact.
func (r *Runner) Run(ctx context.Context, moduleID domain.ModuleId, request []byte) ([]byte, error) {
	if moduleID == "" {
		id, err := r.provider.Default(ctx)
		if err != nil {
			return nil, err
		}
		moduleID = id
	}

	compiled, err := r.compiledModule(ctx, moduleID)
	if err != nil {
		return nil, err
	}

	var sp trace.Span
	if observability.Enabled() {
		ctx, sp = observability.StartSpan(ctx, "sandbox.run", observability.AttrModuleID.String(string(moduleID)))
		defer sp.End()
	}

	start := time.Now()
	resp, err := r.execute(ctx, compiled, request)
	durationMs := time.Since(start).Milliseconds()

	var trapErr *domain.SandboxTrapError
	trapped := asTrapError(err, &trapErr)
	metrics.Global().RecordSandboxRun(string(moduleID), durationMs, err == nil, trapped)

	if sp != nil {
		sp.SetAttributes(observability.AttrDurationMs.Int64(durationMs), observability.AttrSandboxTrap.Bool(trapped))
		if err != nil {
			observability.SetSpanError(sp, err)
		} else {
			observability.SetSpanOK(sp)
		}
	}

	return resp, err
}

func asTrapError(err error, target **domain.SandboxTrapError) bool {
	te, ok := err.(*domain.SandboxTrapError)
	if !ok {
		return false
	}
	*target = te
	return true
}

// compiledModule returns the cached CompiledModule for id, compiling it
// on first use. Concurrent first-use requests for the same id coalesce
// onto a single compile via singleflight, matching the pool package's
// cold-start-coalescing discipline.
func (r *Runner) compiledModule(ctx context.Context, id domain.ModuleId) (*domain.CompiledModule, error) {
	r.mu.RLock()
	cm, ok := r.compiled[id]
	r.mu.RUnlock()
	if ok {
		metrics.Global().RecordCompileCache(true)
		return cm, nil
	}
	metrics.Global().RecordCompileCache(false)

	v, err, _ := r.group.Do(string(id), func() (interface{}, error) {
		r.mu.RLock()
		if cm, ok := r.compiled[id]; ok {
			r.mu.RUnlock()
			return cm, nil
		}
		r.mu.RUnlock()

		raw, err := r.provider.Load(ctx, id)
		if err != nil {
			return nil, err
		}

		cm, err := r.compiler.Compile(ctx, id, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrModuleCompile, err)
		}

		r.mu.Lock()
		r.compiled[id] = cm
		r.mu.Unlock()
		return cm, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.CompiledModule), nil
}

// execute forks a fresh sandbox process for one round trip: request
// bytes go to stdin, captured stdout is the response, stderr is
// forwarded to the host for observability and also tailed for
// SandboxTrap diagnostics.
func (r *Runner) execute(ctx context.Context, cm *domain.CompiledModule, request []byte) ([]byte, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if r.cfg.RunTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}

	artifactPath, err := writeArtifact(cm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSandboxTrap, err)
	}
	defer removeArtifact(artifactPath)

	cmd := exec.CommandContext(runCtx, r.cfg.AgentPath, artifactPath)
	cmd.Env = []string{} // no ambient environment reaches the module
	cmd.Stdin = bytes.NewReader(request)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = io.MultiWriter(os.Stderr, &stderr)

	runErr := cmd.Run()

	tail := tailString(stderr.Bytes(), 4096)
	if r.outputs != nil {
		r.outputs.Record(string(cm.ModuleID), stdout.String(), tail)
	}

	if runErr != nil {
		return nil, &domain.SandboxTrapError{
			ModuleID:   cm.ModuleID,
			ExitCode:   exitCode(runErr),
			StderrTail: tail,
			Cause:      runErr,
		}
	}

	return stdout.Bytes(), nil
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		return exitErr.ExitCode()
	}
	return -1
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if !ok {
		return false
	}
	*target = ee
	return true
}

func tailString(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[len(b)-maxLen:])
}
