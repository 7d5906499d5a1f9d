package devicemgr

import "testing"

func TestMetrics_RequestAndInfer(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	if snap.RequestsTotal != 0 {
		t.Errorf("expected 0 initial requests, got %d", snap.RequestsTotal)
	}

	m.RecordRequest(1_000_000, true)
	m.RecordInfer("clip", 2_000_000, true)
	m.RecordInfer("clip", 3_000_000, false)

	snap = m.Snapshot()
	if snap.RequestsTotal != 1 {
		t.Errorf("expected 1 request, got %d", snap.RequestsTotal)
	}
	if snap.InferTotal != 2 {
		t.Errorf("expected 2 infer calls, got %d", snap.InferTotal)
	}
	if snap.InferErrors != 1 {
		t.Errorf("expected 1 infer error, got %d", snap.InferErrors)
	}
	if snap.InferByModelType["clip"] != 2 {
		t.Errorf("expected 2 clip infers, got %d", snap.InferByModelType["clip"])
	}
}

func TestMetricsObserver_WiresIntoMetrics(t *testing.T) {
	m := NewMetrics()
	var obs Observer = NewMetricsObserver(m)

	obs.ObserveRequest("ping", 500, true)
	obs.ObserveLoad("vlm", true)
	obs.ObserveUnload("vlm", true)

	snap := m.Snapshot()
	if snap.RequestsTotal != 1 {
		t.Errorf("expected 1 request, got %d", snap.RequestsTotal)
	}
	if snap.LoadTotal != 1 || snap.UnloadTotal != 1 {
		t.Errorf("expected load/unload totals of 1, got load=%d unload=%d", snap.LoadTotal, snap.UnloadTotal)
	}
}
