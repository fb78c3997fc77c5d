package outbox

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines the interface for collecting outbox metrics
type MetricsCollector interface {
	RecordJobProcessed(kind JobKind, success bool, duration time.Duration)
	RecordBatchProcessed(count int, duration time.Duration)
	RecordQueueDepth(depth int)
	RecordWriteAttempt(kind JobKind, attempt int, success bool)
	RecordDropped(kind JobKind)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordJobProcessed(JobKind, bool, time.Duration) {}
func (NoOpMetricsCollector) RecordBatchProcessed(int, time.Duration)         {}
func (NoOpMetricsCollector) RecordQueueDepth(int)                            {}
func (NoOpMetricsCollector) RecordWriteAttempt(JobKind, int, bool)           {}
func (NoOpMetricsCollector) RecordDropped(JobKind)                           {}

// CounterMetrics keeps in-process totals, surfaced by the health endpoint.
type CounterMetrics struct {
	processed atomic.Int64
	failed    atomic.Int64
	batches   atomic.Int64
	retries   atomic.Int64
	dropped   atomic.Int64
	depth     atomic.Int64
}

func (m *CounterMetrics) RecordJobProcessed(_ JobKind, success bool, _ time.Duration) {
	if success {
		m.processed.Add(1)
		return
	}
	m.failed.Add(1)
}

func (m *CounterMetrics) RecordBatchProcessed(int, time.Duration) { m.batches.Add(1) }
func (m *CounterMetrics) RecordQueueDepth(depth int)              { m.depth.Store(int64(depth)) }
func (m *CounterMetrics) RecordDropped(JobKind)                   { m.dropped.Add(1) }

func (m *CounterMetrics) RecordWriteAttempt(_ JobKind, attempt int, _ bool) {
	if attempt > 1 {
		m.retries.Add(1)
	}
}

// MetricsSnapshot is a point-in-time copy of CounterMetrics.
type MetricsSnapshot struct {
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Batches    int64 `json:"batches"`
	Retries    int64 `json:"retries"`
	Dropped    int64 `json:"dropped"`
	QueueDepth int64 `json:"queue_depth"`
}

func (m *CounterMetrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Processed:  m.processed.Load(),
		Failed:     m.failed.Load(),
		Batches:    m.batches.Load(),
		Retries:    m.retries.Load(),
		Dropped:    m.dropped.Load(),
		QueueDepth: m.depth.Load(),
	}
}
