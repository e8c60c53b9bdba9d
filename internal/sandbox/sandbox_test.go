package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/foldnet/gameserver/internal/domain"
)

// fakeProvider counts how many times Load is invoked so tests can
// assert the compiled-module cache coalesces concurrent first use.
type fakeProvider struct {
	loads atomic.Int64
}

func (p *fakeProvider) Default(ctx context.Context) (domain.ModuleId, error) {
	return "1.0.0", nil
}

func (p *fakeProvider) Load(ctx context.Context, id domain.ModuleId) ([]byte, error) {
	p.loads.Add(1)
	return []byte("module-bytes"), nil
}

func (p *fakeProvider) Close() error { return nil }

// countingCompiler counts compiles separately from loads.
type countingCompiler struct {
	compiles atomic.Int64
}

func (c *countingCompiler) Compile(ctx context.Context, id domain.ModuleId, bytecode []byte) (*domain.CompiledModule, error) {
	c.compiles.Add(1)
	return &domain.CompiledModule{ModuleID: id, Artifact: bytecode}, nil
}

func echoScriptPath(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("echo agent script assumes a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.sh")
	script := "#!/bin/sh\ncat\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("write agent script: %v", err)
	}
	return path
}

func TestRunnerCompilesOncePerModule(t *testing.T) {
	provider := &fakeProvider{}
	compiler := &countingCompiler{}
	cfg := Config{AgentPath: echoScriptPath(t)}
	r := NewRunner(cfg, provider, compiler, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Run(context.Background(), "1.0.0", []byte("ping")); err != nil {
				t.Errorf("run: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := compiler.compiles.Load(); got != 1 {
		t.Fatalf("expected exactly 1 compile, got %d", got)
	}
	if got := provider.loads.Load(); got != 1 {
		t.Fatalf("expected exactly 1 load, got %d", got)
	}
}

func TestRunnerEchoesRequestAsResponse(t *testing.T) {
	provider := &fakeProvider{}
	compiler := &countingCompiler{}
	cfg := Config{AgentPath: echoScriptPath(t)}
	r := NewRunner(cfg, provider, compiler, nil)

	resp, err := r.Run(context.Background(), "", []byte("hello"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if string(resp) != "hello" {
		t.Fatalf("expected echoed 'hello', got %q", resp)
	}
}

func TestRunnerTrapOnNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.sh")
	if runtime.GOOS == "windows" {
		t.Skip("trap agent script assumes a POSIX shell")
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\necho boom >&2\nexit 1\n"), 0755); err != nil {
		t.Fatalf("write agent script: %v", err)
	}

	provider := &fakeProvider{}
	compiler := &countingCompiler{}
	cfg := Config{AgentPath: path}
	r := NewRunner(cfg, provider, compiler, nil)

	_, err := r.Run(context.Background(), "1.0.0", []byte("x"))
	if err == nil {
		t.Fatal("expected sandbox trap error")
	}
	var trapErr *domain.SandboxTrapError
	if !asSandboxTrapError(err, &trapErr) {
		t.Fatalf("expected *domain.SandboxTrapError, got %T: %v", err, err)
	}
}

func asSandboxTrapError(err error, target **domain.SandboxTrapError) bool {
	te, ok := err.(*domain.SandboxTrapError)
	if !ok {
		return false
	}
	*target = te
	return true
}
