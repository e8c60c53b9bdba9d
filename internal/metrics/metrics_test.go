package metrics

import "testing"

func TestRecordSandboxRunUpdatesGlobalAndModuleCounters(t *testing.T) {
	m := &Metrics{startTime: StartTime()}
	m.MinLatencyMs.Store(int64(^uint64(0) >> 1))
	m.tsChan = make(chan timeSeriesEvent, 16)
	go m.processTimeSeriesLoop()

	m.RecordSandboxRun("1.0.0", 42, true, false)
	m.RecordSandboxRun("1.0.0", 10, false, true)

	if got := m.SandboxRuns.Load(); got != 2 {
		t.Fatalf("expected 2 sandbox runs, got %d", got)
	}
	if got := m.SandboxTraps.Load(); got != 1 {
		t.Fatalf("expected 1 trap, got %d", got)
	}

	mm := m.GetModuleMetrics("1.0.0")
	if mm == nil {
		t.Fatal("expected module metrics for 1.0.0")
	}
	if got := mm.Runs.Load(); got != 2 {
		t.Fatalf("expected 2 module runs, got %d", got)
	}
	if got := mm.Failures.Load(); got != 1 {
		t.Fatalf("expected 1 module failure, got %d", got)
	}
}

func TestRecordCompileCacheTracksHitsAndMisses(t *testing.T) {
	m := &Metrics{}
	m.RecordCompileCache(true)
	m.RecordCompileCache(false)
	m.RecordCompileCache(true)

	if got := m.CompileCacheHits.Load(); got != 2 {
		t.Fatalf("expected 2 hits, got %d", got)
	}
	if got := m.CompileCacheMisses.Load(); got != 1 {
		t.Fatalf("expected 1 miss, got %d", got)
	}
}

func TestRecordCredentialRefreshTracksFailures(t *testing.T) {
	m := &Metrics{}
	m.RecordCredentialRefresh(true)
	m.RecordCredentialRefresh(false)

	if got := m.CredentialRefreshes.Load(); got != 1 {
		t.Fatalf("expected 1 refresh, got %d", got)
	}
	if got := m.CredentialRefreshFailures.Load(); got != 1 {
		t.Fatalf("expected 1 refresh failure, got %d", got)
	}
}
