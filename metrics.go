package devicemgr

import "github.com/gregm123456/hailo-device-manager/internal/metrics"

// Re-exported for external callers that want to wire their own Observer
// without importing internal/metrics directly.
type (
	Metrics         = metrics.Metrics
	MetricsSnapshot = metrics.Snapshot
	Observer        = metrics.Observer
	NoOpObserver    = metrics.NoOpObserver
	MetricsObserver = metrics.MetricsObserver
)

// NewMetrics creates a fresh Metrics instance.
func NewMetrics() *Metrics {
	return metrics.New()
}

// NewMetricsObserver creates an Observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return metrics.NewObserver(m)
}
