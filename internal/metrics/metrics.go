// Package metrics tracks daemon operational statistics, grounded on the
// teacher's root-level metrics.go (atomic counters, a latency histogram with
// percentile estimation, and a point-in-time Snapshot/Observer split).
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// LatencyBuckets are the histogram boundaries in nanoseconds, unchanged from
// the teacher (1us through 10s, log-spaced) — request/infer latency in this
// domain spans the same rough range as block I/O latency did in the teacher.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks request and inference statistics for the Executor.
type Metrics struct {
	RequestsTotal atomic.Uint64
	RequestErrors atomic.Uint64

	InferTotal  atomic.Uint64
	InferErrors atomic.Uint64

	LoadTotal    atomic.Uint64
	LoadErrors   atomic.Uint64
	UnloadTotal  atomic.Uint64
	UnloadErrors atomic.Uint64

	QueueDepthTotal atomic.Uint64
	QueueDepthCount atomic.Uint64
	MaxQueueDepth   atomic.Uint32

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	mu          sync.Mutex
	byModelType map[string]*atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// New creates a fresh Metrics instance with StartTime set to now.
func New() *Metrics {
	m := &Metrics{byModelType: make(map[string]*atomic.Uint64)}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordRequest records one socket-level request; the action is not tracked.
func (m *Metrics) RecordRequest(latencyNs uint64, success bool) {
	m.RequestsTotal.Add(1)
	if !success {
		m.RequestErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordInfer records one infer action for modelType.
func (m *Metrics) RecordInfer(modelType string, latencyNs uint64, success bool) {
	m.InferTotal.Add(1)
	if !success {
		m.InferErrors.Add(1)
	}
	m.bumpModelType(modelType)
	m.recordLatency(latencyNs)
}

// RecordLoad records one load_model action.
func (m *Metrics) RecordLoad(success bool) {
	m.LoadTotal.Add(1)
	if !success {
		m.LoadErrors.Add(1)
	}
}

// RecordUnload records one unload_model action.
func (m *Metrics) RecordUnload(success bool) {
	m.UnloadTotal.Add(1)
	if !success {
		m.UnloadErrors.Add(1)
	}
}

// RecordQueueDepth samples the current executor queue depth.
func (m *Metrics) RecordQueueDepth(depth int) {
	d := uint64(depth)
	m.QueueDepthTotal.Add(d)
	m.QueueDepthCount.Add(1)
	for {
		current := m.MaxQueueDepth.Load()
		if depth <= int(current) {
			break
		}
		if m.MaxQueueDepth.CompareAndSwap(current, uint32(depth)) {
			break
		}
	}
}

func (m *Metrics) bumpModelType(modelType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byModelType[modelType]
	if !ok {
		c = &atomic.Uint64{}
		m.byModelType[modelType] = c
	}
	c.Add(1)
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the daemon as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// Snapshot is a point-in-time view of Metrics, safe to serialize.
type Snapshot struct {
	RequestsTotal uint64
	RequestErrors uint64

	InferTotal  uint64
	InferErrors uint64

	LoadTotal    uint64
	LoadErrors   uint64
	UnloadTotal  uint64
	UnloadErrors uint64

	AvgQueueDepth float64
	MaxQueueDepth uint32

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	InferByModelType map[string]uint64

	ErrorRate float64
}

// Snapshot captures the current metrics state.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		RequestsTotal: m.RequestsTotal.Load(),
		RequestErrors: m.RequestErrors.Load(),
		InferTotal:    m.InferTotal.Load(),
		InferErrors:   m.InferErrors.Load(),
		LoadTotal:     m.LoadTotal.Load(),
		LoadErrors:    m.LoadErrors.Load(),
		UnloadTotal:   m.UnloadTotal.Load(),
		UnloadErrors:  m.UnloadErrors.Load(),
		MaxQueueDepth: m.MaxQueueDepth.Load(),
	}

	queueDepthTotal := m.QueueDepthTotal.Load()
	queueDepthCount := m.QueueDepthCount.Load()
	if queueDepthCount > 0 {
		snap.AvgQueueDepth = float64(queueDepthTotal) / float64(queueDepthCount)
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	if m.RequestsTotal.Load() > 0 {
		snap.ErrorRate = float64(snap.RequestErrors) / float64(snap.RequestsTotal) * 100.0
	}

	m.mu.Lock()
	snap.InferByModelType = make(map[string]uint64, len(m.byModelType))
	for k, v := range m.byModelType {
		snap.InferByModelType[k] = v.Load()
	}
	m.mu.Unlock()

	return snap
}

func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Observer lets the Executor report events without depending on Metrics
// directly; root-level metrics.go re-exports this for external callers.
type Observer interface {
	ObserveRequest(action string, latencyNs uint64, success bool)
	ObserveInfer(modelType string, latencyNs uint64, success bool)
	ObserveLoad(modelType string, success bool)
	ObserveUnload(modelType string, success bool)
	ObserveQueueDepth(depth int)
}

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveRequest(string, uint64, bool) {}
func (NoOpObserver) ObserveInfer(string, uint64, bool)   {}
func (NoOpObserver) ObserveLoad(string, bool)            {}
func (NoOpObserver) ObserveUnload(string, bool)          {}
func (NoOpObserver) ObserveQueueDepth(int)               {}

// MetricsObserver implements Observer by recording into a Metrics instance.
type MetricsObserver struct {
	metrics *Metrics
}

// NewObserver returns an Observer that records into m.
func NewObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveRequest(_ string, latencyNs uint64, success bool) {
	o.metrics.RecordRequest(latencyNs, success)
}

func (o *MetricsObserver) ObserveInfer(modelType string, latencyNs uint64, success bool) {
	o.metrics.RecordInfer(modelType, latencyNs, success)
}

func (o *MetricsObserver) ObserveLoad(_ string, success bool) {
	o.metrics.RecordLoad(success)
}

func (o *MetricsObserver) ObserveUnload(_ string, success bool) {
	o.metrics.RecordUnload(success)
}

func (o *MetricsObserver) ObserveQueueDepth(depth int) {
	o.metrics.RecordQueueDepth(depth)
}

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
