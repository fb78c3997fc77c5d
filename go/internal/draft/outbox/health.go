package outbox

import (
	"fmt"
	"time"
)

type HealthStatus struct {
	Healthy       bool             `json:"healthy"`
	Running       bool             `json:"running"`
	QueueDepth    int              `json:"queue_depth"`
	QueueSize     int              `json:"queue_size"`
	LastPersisted time.Time        `json:"last_persisted"`
	Metrics       *MetricsSnapshot `json:"metrics,omitempty"`
	Errors        []string         `json:"errors"`
}

// Health reports the worker state. A stopped worker or a queue above 90%
// is unhealthy.
func (w *Worker) Health() HealthStatus {
	status := HealthStatus{
		Healthy:       true,
		Running:       w.Running(),
		QueueDepth:    w.QueueDepth(),
		QueueSize:     w.config.QueueSize,
		LastPersisted: w.LastPersisted(),
		Errors:        []string{},
	}
	if c, ok := w.metrics.(*CounterMetrics); ok {
		snap := c.Snapshot()
		status.Metrics = &snap
	}

	if !status.Running {
		status.Healthy = false
		status.Errors = append(status.Errors, "worker not running")
	}
	if status.QueueDepth*10 > status.QueueSize*9 {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("queue nearly full: %d/%d", status.QueueDepth, status.QueueSize))
	}
	return status
}
