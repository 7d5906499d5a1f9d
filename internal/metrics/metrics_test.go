package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordRequest(t *testing.T) {
	m := New()
	m.RecordRequest(5_000_000, true)
	m.RecordRequest(1_000_000, false)

	snap := m.Snapshot()
	require.Equal(t, uint64(2), snap.RequestsTotal)
	require.Equal(t, uint64(1), snap.RequestErrors)
	require.InDelta(t, 50.0, snap.ErrorRate, 0.01)
}

func TestMetrics_RecordInfer_ByModelType(t *testing.T) {
	m := New()
	m.RecordInfer("clip", 2_000_000, true)
	m.RecordInfer("clip", 3_000_000, true)
	m.RecordInfer("vlm", 1_000_000, false)

	snap := m.Snapshot()
	require.Equal(t, uint64(3), snap.InferTotal)
	require.Equal(t, uint64(1), snap.InferErrors)
	require.Equal(t, uint64(2), snap.InferByModelType["clip"])
	require.Equal(t, uint64(1), snap.InferByModelType["vlm"])
}

func TestMetrics_QueueDepth(t *testing.T) {
	m := New()
	m.RecordQueueDepth(3)
	m.RecordQueueDepth(7)
	m.RecordQueueDepth(2)

	snap := m.Snapshot()
	require.Equal(t, uint32(7), snap.MaxQueueDepth)
	require.InDelta(t, 4.0, snap.AvgQueueDepth, 0.01)
}

func TestMetrics_LoadUnload(t *testing.T) {
	m := New()
	m.RecordLoad(true)
	m.RecordLoad(false)
	m.RecordUnload(true)

	snap := m.Snapshot()
	require.Equal(t, uint64(2), snap.LoadTotal)
	require.Equal(t, uint64(1), snap.LoadErrors)
	require.Equal(t, uint64(1), snap.UnloadTotal)
	require.Equal(t, uint64(0), snap.UnloadErrors)
}

func TestObserver_NoOp(t *testing.T) {
	var o Observer = NoOpObserver{}
	o.ObserveRequest("ping", 100, true)
	o.ObserveInfer("clip", 100, true)
	o.ObserveLoad("clip", true)
	o.ObserveUnload("clip", true)
	o.ObserveQueueDepth(1)
}

func TestObserver_RecordsIntoMetrics(t *testing.T) {
	m := New()
	o := NewObserver(m)
	o.ObserveRequest("ping", 1_000, true)
	o.ObserveInfer("clip", 2_000, true)

	snap := m.Snapshot()
	require.Equal(t, uint64(1), snap.RequestsTotal)
	require.Equal(t, uint64(1), snap.InferTotal)
}
