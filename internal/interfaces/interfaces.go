// Package interfaces holds the small cross-package contracts used by the
// executor and socketserver packages. Kept separate from the root package to
// avoid import cycles between it and its internal/ children.
package interfaces

// Logger is the minimal logging contract components depend on.
type Logger interface {
	Printf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Observer receives point-in-time events from the Executor and Device
// Adapter for metrics collection. Implementations must be thread-safe:
// methods are called from the single Executor goroutine today, but the
// contract does not assume that will always be true.
type Observer interface {
	ObserveRequest(action string, latencyNs uint64, success bool)
	ObserveInfer(modelType string, latencyNs uint64, success bool)
	ObserveLoad(modelType string, success bool)
	ObserveUnload(modelType string, success bool)
	ObserveQueueDepth(depth int)
}

// NoOpObserver implements Observer with no-op methods.
type NoOpObserver struct{}

func (NoOpObserver) ObserveRequest(string, uint64, bool) {}
func (NoOpObserver) ObserveInfer(string, uint64, bool)   {}
func (NoOpObserver) ObserveLoad(string, bool)            {}
func (NoOpObserver) ObserveUnload(string, bool)          {}
func (NoOpObserver) ObserveQueueDepth(int)               {}
