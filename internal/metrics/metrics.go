// Package metrics collects and exposes gameserver runtime observability
// data.
//
// # Design rationale
//
// Two metric stores coexist in this package:
//
//  1. The in-process Metrics struct (per-module counters + time series)
//     for the lightweight JSON /metrics.json endpoint.
//  2. A Prometheus registry (prometheus.go) for scraping by external
//     monitoring systems (Grafana, Alertmanager, etc.).
//
// # Concurrency — hot path
//
// RecordSandboxRun is called from the sandbox runner on every module
// invocation and must be as fast as possible. It uses atomic increments
// for global counters and dispatches a lightweight event onto a buffered
// channel (tsChan) for the time-series worker to process asynchronously.
// This avoids holding any lock on the hot path.
//
// The per-module ModuleMetrics struct also uses atomic operations
// exclusively; the sync.Map that stores the per-module entries is
// read-heavy and write-once-per-new-module, which is the ideal use case
// for sync.Map.
//
// # Invariants
//
//   - SandboxRuns == SandboxSuccesses + SandboxFailures (maintained by
//     RecordSandboxRun).
//   - The time-series ring buffer holds at most timeSeriesBucketCount
//     buckets (24 * 60 = 1440 for the last 24 hours at 1-minute
//     granularity).
//   - tsChan capacity is 8192 events; events dropped when full are
//     counted in tsDroppedEvents for observability.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	timeSeriesBucketDuration = time.Minute
	timeSeriesBucketCount    = 24 * 60
)

// TimeSeriesBucket stores metrics for a single time bucket.
type TimeSeriesBucket struct {
	Timestamp    time.Time
	Runs         int64
	Errors       int64
	TotalLatency int64
	Count        int64 // for calculating avg
}

// Metrics collects and exposes gameserver runtime metrics.
type Metrics struct {
	// Action log metrics
	ActionsAppended atomic.Int64
	AppendFailures  atomic.Int64

	// Fold pipeline metrics
	FoldAdvances atomic.Int64
	FoldFailures atomic.Int64

	// Sandbox metrics
	SandboxRuns       atomic.Int64
	SandboxSuccesses  atomic.Int64
	SandboxFailures   atomic.Int64
	SandboxTraps      atomic.Int64

	// Sandbox latency (milliseconds)
	TotalLatencyMs atomic.Int64
	MinLatencyMs   atomic.Int64
	MaxLatencyMs   atomic.Int64

	// Compiled-module cache metrics
	CompileCacheHits   atomic.Int64
	CompileCacheMisses atomic.Int64

	// Credential refresh metrics
	CredentialRefreshes       atomic.Int64
	CredentialRefreshFailures atomic.Int64

	// Per-module metrics
	moduleMetrics sync.Map // ModuleId -> *ModuleMetrics

	// Time-series data (minute buckets for last 24 hours)
	timeSeriesMu    sync.RWMutex
	timeSeries      []*TimeSeriesBucket
	tsChan          chan timeSeriesEvent
	tsDroppedEvents atomic.Int64

	startTime time.Time
}

// timeSeriesEvent is sent over a channel to avoid write-lock contention
// on the hot path.
type timeSeriesEvent struct {
	durationMs int64
	isError    bool
}

// ModuleMetrics tracks metrics for a single module id.
type ModuleMetrics struct {
	Runs      atomic.Int64
	Successes atomic.Int64
	Failures  atomic.Int64
	TotalMs   atomic.Int64
	MinMs     atomic.Int64
	MaxMs     atomic.Int64
}

// Global metrics instance.
var global = &Metrics{startTime: time.Now()}

func init() {
	global.MinLatencyMs.Store(int64(^uint64(0) >> 1)) // Max int64
	global.tsChan = make(chan timeSeriesEvent, 8192)
	global.initTimeSeries()
	go global.processTimeSeriesLoop()
}

// initTimeSeries initializes minute-level buckets for the last 24 hours.
func (m *Metrics) initTimeSeries() {
	m.timeSeriesMu.Lock()
	defer m.timeSeriesMu.Unlock()

	now := time.Now().Truncate(timeSeriesBucketDuration)
	m.timeSeries = make([]*TimeSeriesBucket, timeSeriesBucketCount)
	for i := 0; i < timeSeriesBucketCount; i++ {
		m.timeSeries[i] = &TimeSeriesBucket{
			Timestamp: now.Add(time.Duration(i-(timeSeriesBucketCount-1)) * timeSeriesBucketDuration),
		}
	}
}

// Global returns the global metrics instance.
func Global() *Metrics {
	return global
}

// StartTime returns the time when the metrics system was initialized.
func StartTime() time.Time {
	return global.startTime
}

// RecordAppend records an action-log append outcome.
func (m *Metrics) RecordAppend(success bool) {
	if success {
		m.ActionsAppended.Add(1)
	} else {
		m.AppendFailures.Add(1)
	}
	RecordPrometheusAppend(success)
}

// RecordFoldAdvance records a fold pipeline producing (or failing to
// produce) a Snapshot for moduleID.
func (m *Metrics) RecordFoldAdvance(moduleID string, success bool) {
	if success {
		m.FoldAdvances.Add(1)
	} else {
		m.FoldFailures.Add(1)
	}
	RecordPrometheusFoldAdvance(moduleID, success)
}

// RecordSandboxRun records a sandbox Run outcome, keyed by module id.
// trapped indicates the module exited non-zero (a SandboxTrapError).
func (m *Metrics) RecordSandboxRun(moduleID string, durationMs int64, success bool, trapped bool) {
	m.SandboxRuns.Add(1)
	if success {
		m.SandboxSuccesses.Add(1)
	} else {
		m.SandboxFailures.Add(1)
	}
	if trapped {
		m.SandboxTraps.Add(1)
	}

	m.TotalLatencyMs.Add(durationMs)
	updateMin(&m.MinLatencyMs, durationMs)
	updateMax(&m.MaxLatencyMs, durationMs)

	mm := m.getModuleMetrics(moduleID)
	mm.Runs.Add(1)
	if success {
		mm.Successes.Add(1)
	} else {
		mm.Failures.Add(1)
	}
	mm.TotalMs.Add(durationMs)
	updateMin(&mm.MinMs, durationMs)
	updateMax(&mm.MaxMs, durationMs)

	m.recordTimeSeries(durationMs, !success)

	RecordPrometheusSandboxRun(moduleID, durationMs, success, trapped)
}

// RecordCompileCache records whether a compiled-module lookup hit the
// cache or triggered a fresh compile.
func (m *Metrics) RecordCompileCache(hit bool) {
	if hit {
		m.CompileCacheHits.Add(1)
	} else {
		m.CompileCacheMisses.Add(1)
	}
	RecordPrometheusCompileCache(hit)
}

// RecordCredentialRefresh records a token source Fetch outcome.
func (m *Metrics) RecordCredentialRefresh(success bool) {
	if success {
		m.CredentialRefreshes.Add(1)
	} else {
		m.CredentialRefreshFailures.Add(1)
	}
	RecordPrometheusCredentialRefresh(success)
}

// recordTimeSeries enqueues a time-series event for async processing,
// avoiding a write-lock on the hot sandbox-run path.
func (m *Metrics) recordTimeSeries(durationMs int64, isError bool) {
	select {
	case m.tsChan <- timeSeriesEvent{durationMs: durationMs, isError: isError}:
	default:
		m.tsDroppedEvents.Add(1)
	}
}

// processTimeSeriesLoop drains tsChan and applies events under a write lock.
func (m *Metrics) processTimeSeriesLoop() {
	for evt := range m.tsChan {
		m.applyTimeSeriesEvent(evt.durationMs, evt.isError)
	}
}

// applyTimeSeriesEvent updates the time-series buckets (must be called
// from a single goroutine).
func (m *Metrics) applyTimeSeriesEvent(durationMs int64, isError bool) {
	m.timeSeriesMu.Lock()
	defer m.timeSeriesMu.Unlock()

	now := time.Now().Truncate(timeSeriesBucketDuration)

	if len(m.timeSeries) > 0 {
		lastBucket := m.timeSeries[len(m.timeSeries)-1]
		bucketsDiff := int(now.Sub(lastBucket.Timestamp) / timeSeriesBucketDuration)

		if bucketsDiff > 0 {
			if bucketsDiff >= timeSeriesBucketCount {
				m.timeSeries = make([]*TimeSeriesBucket, timeSeriesBucketCount)
				for i := 0; i < timeSeriesBucketCount; i++ {
					m.timeSeries[i] = &TimeSeriesBucket{
						Timestamp: now.Add(time.Duration(i-(timeSeriesBucketCount-1)) * timeSeriesBucketDuration),
					}
				}
			} else {
				m.timeSeries = m.timeSeries[bucketsDiff:]
				for i := 0; i < bucketsDiff; i++ {
					m.timeSeries = append(m.timeSeries, &TimeSeriesBucket{
						Timestamp: lastBucket.Timestamp.Add(time.Duration(i+1) * timeSeriesBucketDuration),
					})
				}
			}
		}
	}

	if len(m.timeSeries) > 0 {
		bucket := m.timeSeries[len(m.timeSeries)-1]
		bucket.Runs++
		bucket.TotalLatency += durationMs
		bucket.Count++
		if isError {
			bucket.Errors++
		}
	}
}

func (m *Metrics) getModuleMetrics(moduleID string) *ModuleMetrics {
	if v, ok := m.moduleMetrics.Load(moduleID); ok {
		return v.(*ModuleMetrics)
	}

	mm := &ModuleMetrics{}
	mm.MinMs.Store(int64(^uint64(0) >> 1))
	actual, _ := m.moduleMetrics.LoadOrStore(moduleID, mm)
	return actual.(*ModuleMetrics)
}

// GetModuleMetrics returns the metrics for a specific module id (or nil
// if none recorded yet).
func (m *Metrics) GetModuleMetrics(moduleID string) *ModuleMetrics {
	if v, ok := m.moduleMetrics.Load(moduleID); ok {
		return v.(*ModuleMetrics)
	}
	return nil
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() map[string]interface{} {
	totalRuns := m.SandboxRuns.Load()
	avgLatency := float64(0)
	if totalRuns > 0 {
		avgLatency = float64(m.TotalLatencyMs.Load()) / float64(totalRuns)
	}

	minLatency := m.MinLatencyMs.Load()
	if minLatency == int64(^uint64(0)>>1) {
		minLatency = 0
	}

	result := map[string]interface{}{
		"uptime_seconds": int64(time.Since(m.startTime).Seconds()),
		"action_log": map[string]interface{}{
			"appended": m.ActionsAppended.Load(),
			"failures": m.AppendFailures.Load(),
		},
		"fold": map[string]interface{}{
			"advances": m.FoldAdvances.Load(),
			"failures": m.FoldFailures.Load(),
		},
		"sandbox": map[string]interface{}{
			"runs":      totalRuns,
			"successes": m.SandboxSuccesses.Load(),
			"failures":  m.SandboxFailures.Load(),
			"traps":     m.SandboxTraps.Load(),
		},
		"latency_ms": map[string]interface{}{
			"avg": avgLatency,
			"min": minLatency,
			"max": m.MaxLatencyMs.Load(),
		},
		"compile_cache": map[string]interface{}{
			"hits":   m.CompileCacheHits.Load(),
			"misses": m.CompileCacheMisses.Load(),
		},
		"credentials": map[string]interface{}{
			"refreshes": m.CredentialRefreshes.Load(),
			"failures":  m.CredentialRefreshFailures.Load(),
		},
		"ts_dropped_events": m.tsDroppedEvents.Load(),
	}

	return result
}

// ModuleStats returns per-module-id metrics.
func (m *Metrics) ModuleStats() map[string]interface{} {
	result := make(map[string]interface{})

	m.moduleMetrics.Range(func(key, value interface{}) bool {
		moduleID := key.(string)
		mm := value.(*ModuleMetrics)

		total := mm.Runs.Load()
		avgMs := float64(0)
		if total > 0 {
			avgMs = float64(mm.TotalMs.Load()) / float64(total)
		}

		minMs := mm.MinMs.Load()
		if minMs == int64(^uint64(0)>>1) {
			minMs = 0
		}

		result[moduleID] = map[string]interface{}{
			"runs":      total,
			"successes": mm.Successes.Load(),
			"failures":  mm.Failures.Load(),
			"avg_ms":    avgMs,
			"min_ms":    minMs,
			"max_ms":    mm.MaxMs.Load(),
		}
		return true
	})

	return result
}

// JSONHandler returns an HTTP handler that exposes metrics in JSON format.
func (m *Metrics) JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		result := m.Snapshot()
		result["modules"] = m.ModuleStats()
		json.NewEncoder(w).Encode(result)
	})
}

// TimeSeries returns minute-level time-series data for the last 24 hours.
func (m *Metrics) TimeSeries() []map[string]interface{} {
	m.timeSeriesMu.RLock()
	defer m.timeSeriesMu.RUnlock()

	result := make([]map[string]interface{}, len(m.timeSeries))
	for i, bucket := range m.timeSeries {
		avgDuration := float64(0)
		if bucket.Count > 0 {
			avgDuration = float64(bucket.TotalLatency) / float64(bucket.Count)
		}
		result[i] = map[string]interface{}{
			"timestamp":    bucket.Timestamp.Format(time.RFC3339),
			"runs":         bucket.Runs,
			"errors":       bucket.Errors,
			"avg_duration": avgDuration,
		}
	}
	return result
}

// TimeSeriesHandler returns an HTTP handler for time-series metrics.
func (m *Metrics) TimeSeriesHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.TimeSeries())
	})
}

// Helper functions

func updateMin(target *atomic.Int64, value int64) {
	for {
		old := target.Load()
		if value >= old {
			return
		}
		if target.CompareAndSwap(old, value) {
			return
		}
	}
}

func updateMax(target *atomic.Int64, value int64) {
	for {
		old := target.Load()
		if value <= old {
			return
		}
		if target.CompareAndSwap(old, value) {
			return
		}
	}
}
