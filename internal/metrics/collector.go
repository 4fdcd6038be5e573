// Package metrics provides in-memory statistics for outbound calls made during a session.
package metrics

import (
	"math"
	"sync"
	"time"
)

// Operation names for the collector.
const (
	OpAuthLogin        = "auth_login"
	OpAuthIdentity     = "auth_identity"
	OpCompletion       = "completion"
	OpCompletionStream = "completion_stream"
	OpLLMGenerate      = "llm_generate"
)

// callStats holds aggregated metrics for one call type.
type callStats struct {
	count    int64
	failures int64
	total    time.Duration
	min      time.Duration
	max      time.Duration

	// Token usage, only reported by direct LLM backends.
	inputTokens  int64
	outputTokens int64
}

// OperationSnapshot provides computed stats for one call type.
type OperationSnapshot struct {
	Count       int64
	Failures    int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64

	// nil when the backend does not report usage
	InputTokens  *int64
	OutputTokens *int64
}

// Snapshot represents the session's call statistics at a point in time.
type Snapshot struct {
	UptimeSeconds    float64
	AuthLogin        *OperationSnapshot
	AuthIdentity     *OperationSnapshot
	Completion       *OperationSnapshot
	CompletionStream *OperationSnapshot
	LLMGenerate      *OperationSnapshot
}

// Collector aggregates call statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*callStats
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*callStats),
	}
}

// getOrCreate returns existing stats or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *callStats {
	m, ok := c.ops[op]
	if !ok {
		m = &callStats{min: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records a successful call.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.count++
	m.total += duration
	m.min = min(m.min, duration)
	m.max = max(m.max, duration)
}

// RecordLLMUsage records a successful call along with its token usage.
func (c *Collector) RecordLLMUsage(op string, duration time.Duration, inputTokens, outputTokens int64) {
	c.RecordTiming(op, duration)

	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.inputTokens += inputTokens
	m.outputTokens += outputTokens
}

// RecordFailure counts a failed call. Failed calls are not timed.
func (c *Collector) RecordFailure(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.getOrCreate(op).failures++
}

// Track times fn and records it under op, counting a failure when fn errors.
func (c *Collector) Track(op string, fn func() error) error {
	start := time.Now()
	if err := fn(); err != nil {
		c.RecordFailure(op)
		return err
	}
	c.RecordTiming(op, time.Since(start))
	return nil
}

// snapshotOp creates a snapshot for an operation, returning nil if nothing was recorded.
func snapshotOp(m *callStats) *OperationSnapshot {
	if m == nil || (m.count == 0 && m.failures == 0) {
		return nil
	}

	snap := &OperationSnapshot{
		Count:       m.count,
		Failures:    m.failures,
		TotalTimeMs: m.total.Milliseconds(),
	}
	if m.count > 0 {
		snap.AvgTimeMs = float64(m.total.Milliseconds()) / float64(m.count)
		snap.MinTimeMs = m.min.Milliseconds()
		snap.MaxTimeMs = m.max.Milliseconds()
	}
	if m.inputTokens > 0 || m.outputTokens > 0 {
		in, out := m.inputTokens, m.outputTokens
		snap.InputTokens = &in
		snap.OutputTokens = &out
	}
	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds:    time.Since(c.startTime).Seconds(),
		AuthLogin:        snapshotOp(c.ops[OpAuthLogin]),
		AuthIdentity:     snapshotOp(c.ops[OpAuthIdentity]),
		Completion:       snapshotOp(c.ops[OpCompletion]),
		CompletionStream: snapshotOp(c.ops[OpCompletionStream]),
		LLMGenerate:      snapshotOp(c.ops[OpLLMGenerate]),
	}
}
