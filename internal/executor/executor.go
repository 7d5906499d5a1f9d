// Package executor implements the Request Queue / Executor: the single
// goroutine that owns the Device Adapter and Model Registry and serializes
// every device call (spec.md §3, §4.4). Grounded on the teacher's
// internal/queue.Runner — a single goroutine draining a channel of work and
// replying through a per-item channel — generalized from ublk I/O
// descriptors to device-manager wire requests.
package executor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gregm123456/hailo-device-manager/internal/adapter"
	"github.com/gregm123456/hailo-device-manager/internal/deverrors"
	"github.com/gregm123456/hailo-device-manager/internal/interfaces"
	"github.com/gregm123456/hailo-device-manager/internal/registry"
	"github.com/gregm123456/hailo-device-manager/internal/wire"
)

const (
	actionPing         = "ping"
	actionStatus       = "status"
	actionDeviceStatus = "device_status"
	actionLoadModel    = "load_model"
	actionInfer        = "infer"
	actionUnloadModel  = "unload_model"
)

// WorkItem is one enqueued request together with the channel its reply must
// be delivered on. Reply is buffered by 1 so a connection that gave up
// waiting (client disconnected) never blocks the Executor (spec.md §5).
type WorkItem struct {
	Request wire.Request
	Reply   chan wire.Response
}

// Config configures a new Executor.
type Config struct {
	Adapter       *adapter.Adapter
	Registry      *registry.Registry
	QueueCapacity int
	SocketPath    string
	DeviceID      string
	Logger        interfaces.Logger
	Observer      interfaces.Observer
}

// Executor is the single-writer device-owning worker.
type Executor struct {
	adapter  *adapter.Adapter
	registry *registry.Registry
	queue    chan *WorkItem

	socketPath string
	deviceID   string
	startTime  time.Time

	logger   interfaces.Logger
	observer interfaces.Observer

	degraded     atomic.Bool
	shuttingDown atomic.Bool
}

// New constructs an Executor ready to Submit work, but does not start its
// goroutine — call Run in its own goroutine to do that.
func New(cfg Config) *Executor {
	observer := cfg.Observer
	if observer == nil {
		observer = interfaces.NoOpObserver{}
	}
	capacity := cfg.QueueCapacity
	if capacity <= 0 {
		capacity = 128
	}
	return &Executor{
		adapter:    cfg.Adapter,
		registry:   cfg.Registry,
		queue:      make(chan *WorkItem, capacity),
		socketPath: cfg.SocketPath,
		deviceID:   cfg.DeviceID,
		startTime:  time.Now(),
		logger:     cfg.Logger,
		observer:   observer,
	}
}

// QueueDepth reports the number of work items currently waiting (spec.md
// §4.4's ping/status payload field).
func (e *Executor) QueueDepth() int {
	return len(e.queue)
}

// Submit enqueues req and blocks until it is executed or ctx is cancelled.
// This is the back-pressure point spec.md §4.4 describes: when the queue is
// full, the call blocks the calling connection goroutine rather than
// dropping work.
func (e *Executor) Submit(ctx context.Context, req wire.Request) wire.Response {
	if e.shuttingDown.Load() {
		return wire.Err(req.RequestID, deverrors.ErrShuttingDown.Error())
	}

	item := &WorkItem{Request: req, Reply: make(chan wire.Response, 1)}

	select {
	case e.queue <- item:
	case <-ctx.Done():
		return wire.Err(req.RequestID, deverrors.ErrShuttingDown.Error())
	}

	e.observer.ObserveQueueDepth(e.QueueDepth())

	select {
	case resp := <-item.Reply:
		return resp
	case <-ctx.Done():
		return wire.Err(req.RequestID, deverrors.ErrShuttingDown.Error())
	}
}

// Run drains the queue until ctx is cancelled, then drains whatever remains
// for up to grace before replying deverrors.ErrShuttingDown to anything left
// (spec.md §4.7: shutdown grace then cancel pending work).
func (e *Executor) Run(ctx context.Context, grace time.Duration) {
	for {
		select {
		case item := <-e.queue:
			e.handle(item)
		case <-ctx.Done():
			e.drain(grace)
			return
		}
	}
}

// drain gives in-flight producers up to grace to have their work picked up
// before the remaining queue contents are failed with deverrors.ErrShuttingDown.
func (e *Executor) drain(grace time.Duration) {
	e.shuttingDown.Store(true)
	deadline := time.After(grace)
	for {
		select {
		case item := <-e.queue:
			e.handle(item)
		case <-deadline:
			for {
				select {
				case item := <-e.queue:
					item.Reply <- wire.Err(item.Request.RequestID, deverrors.ErrShuttingDown.Error())
				default:
					return
				}
			}
		}
	}
}

// ReleaseAll calls Release on every resident session, used during shutdown
// after the queue has drained (spec.md §4.7, step "release every
// ModelSession").
func (e *Executor) ReleaseAll() {
	for _, sess := range e.registry.All() {
		backend, ok := e.adapter.Lookup(adapter.ModelType(sess.Key.ModelType))
		if !ok {
			continue
		}
		if err := backend.Release(sess.Backend); err != nil && e.logger != nil {
			e.logger.Printf("release failed for %s/%s: %v", sess.Key.ModelPath, sess.Key.ModelType, err)
		}
	}
}

func (e *Executor) handle(item *WorkItem) {
	start := time.Now()
	req := item.Request

	var resp wire.Response
	var ok bool

	switch req.Action {
	case actionPing, actionStatus, actionDeviceStatus:
		resp, ok = e.handleStatus(req), true
	case actionLoadModel:
		resp, ok = e.handleLoadModel(req)
	case actionInfer:
		resp, ok = e.handleInfer(req)
	case actionUnloadModel:
		resp, ok = e.handleUnloadModel(req)
	default:
		resp = wire.Err(req.RequestID, deverrors.NewValidationError("dispatch", req.Action, "Unsupported action: "+req.Action).Error())
		ok = false
	}

	item.Reply <- resp
	e.observer.ObserveRequest(req.Action, uint64(time.Since(start).Nanoseconds()), ok)
}

// handleStatus serves ping/status/device_status. It never touches the
// device and is safe even while the Executor is otherwise degraded.
func (e *Executor) handleStatus(req wire.Request) wire.Response {
	return wire.OK(req.RequestID, map[string]any{
		"device_id":      e.deviceID,
		"loaded_models":  e.registry.Snapshot(),
		"uptime_seconds": int64(time.Since(e.startTime).Seconds()),
		"socket_path":    e.socketPath,
		"queue_depth":    e.QueueDepth(),
	})
}

func (e *Executor) handleLoadModel(req wire.Request) (wire.Response, bool) {
	if req.ModelPath == "" {
		return wire.Err(req.RequestID, deverrors.New("load_model", deverrors.KindProtocol, "missing required field: model_path").Error()), false
	}
	if !e.adapter.IsKnownModelType(req.ModelType) {
		return wire.Err(req.RequestID, deverrors.NewValidationError("load_model", req.ModelType, "Unsupported model_type: "+req.ModelType).Error()), false
	}
	if e.degraded.Load() {
		e.observer.ObserveLoad(req.ModelType, false)
		return wire.Err(req.RequestID, deverrors.ErrDeviceUnavailable.Error()), false
	}

	key := registry.Key{ModelPath: req.ModelPath, ModelType: req.ModelType}
	if _, exists := e.registry.Get(key); exists {
		// Idempotent: already resident, do not invoke the backend again.
		e.observer.ObserveLoad(req.ModelType, true)
		return wire.OK(req.RequestID, nil), true
	}

	backend, _ := e.adapter.Lookup(adapter.ModelType(req.ModelType))
	sess, err := backend.Load(req.ModelPath, req.ModelParams)
	if err != nil {
		e.observer.ObserveLoad(req.ModelType, false)
		return wire.Err(req.RequestID, err.Error()), false
	}

	now := time.Now()
	e.registry.Insert(&registry.Session{
		Key:         key,
		LoadedAt:    now,
		LastUsed:    now,
		ModelParams: req.ModelParams,
		Backend:     sess,
	})
	e.observer.ObserveLoad(req.ModelType, true)
	return wire.OK(req.RequestID, nil), true
}

func (e *Executor) handleInfer(req wire.Request) (wire.Response, bool) {
	if req.ModelPath == "" {
		return wire.Err(req.RequestID, deverrors.New("infer", deverrors.KindProtocol, "missing required field: model_path").Error()), false
	}
	if req.InputData == nil {
		return wire.Err(req.RequestID, deverrors.New("infer", deverrors.KindProtocol, "missing required field: input_data").Error()), false
	}
	if !e.adapter.IsKnownModelType(req.ModelType) {
		return wire.Err(req.RequestID, deverrors.NewValidationError("infer", req.ModelType, "Unsupported model_type: "+req.ModelType).Error()), false
	}
	if e.degraded.Load() {
		e.observer.ObserveInfer(req.ModelType, 0, false)
		return wire.Err(req.RequestID, deverrors.ErrDeviceUnavailable.Error()), false
	}

	key := registry.Key{ModelPath: req.ModelPath, ModelType: req.ModelType}
	backend, _ := e.adapter.Lookup(adapter.ModelType(req.ModelType))

	sess, exists := e.registry.Get(key)
	if !exists {
		// Implicit load (spec.md §4.4).
		backendSess, err := backend.Load(req.ModelPath, req.ModelParams)
		if err != nil {
			e.observer.ObserveInfer(req.ModelType, 0, false)
			return wire.Err(req.RequestID, err.Error()), false
		}
		now := time.Now()
		sess = &registry.Session{
			Key:         key,
			LoadedAt:    now,
			LastUsed:    now,
			ModelParams: req.ModelParams,
			Backend:     backendSess,
		}
		e.registry.Insert(sess)
	}

	start := time.Now()
	result, err := backend.Infer(sess.Backend, req.InputData)
	elapsedMs := time.Since(start).Milliseconds()

	if err != nil {
		// A failed session is released and dropped from the Registry
		// (spec.md §7, Backend errors). If the backend reports the failure
		// as device loss rather than an ordinary inference error, the device
		// stays marked degraded until a supervisor-initiated reopen clears it.
		e.registry.Remove(key)
		_ = backend.Release(sess.Backend)
		if deverrors.IsDeviceLoss(err) {
			e.MarkDegraded()
			if e.logger != nil {
				e.logger.Printf("device lost during infer for %s/%s: marking device degraded", req.ModelPath, req.ModelType)
			}
		}
		e.observer.ObserveInfer(req.ModelType, uint64(time.Since(start).Nanoseconds()), false)
		return wire.Err(req.RequestID, err.Error()), false
	}

	e.registry.Touch(key, time.Now())
	e.observer.ObserveInfer(req.ModelType, uint64(time.Since(start).Nanoseconds()), true)

	return wire.OK(req.RequestID, map[string]any{
		"result":            result,
		"inference_time_ms": elapsedMs,
	}), true
}

func (e *Executor) handleUnloadModel(req wire.Request) (wire.Response, bool) {
	if req.ModelPath == "" {
		return wire.Err(req.RequestID, deverrors.New("unload_model", deverrors.KindProtocol, "missing required field: model_path").Error()), false
	}

	key := registry.Key{ModelPath: req.ModelPath, ModelType: req.ModelType}
	sess, exists := e.registry.Remove(key)
	if !exists {
		// Idempotent: missing key still succeeds.
		e.observer.ObserveUnload(req.ModelType, true)
		return wire.OK(req.RequestID, nil), true
	}

	backend, ok := e.adapter.Lookup(adapter.ModelType(req.ModelType))
	if ok {
		if err := backend.Release(sess.Backend); err != nil && e.logger != nil {
			e.logger.Printf("release failed for %s/%s: %v", req.ModelPath, req.ModelType, err)
		}
	}
	e.observer.ObserveUnload(req.ModelType, true)
	return wire.OK(req.RequestID, nil), true
}

// MarkDegraded flags the device as unavailable following a device-loss error
// (spec.md §4.3). Subsequent load/infer calls fail fast until ClearDegraded
// is called by a supervisor-initiated reopen.
func (e *Executor) MarkDegraded() {
	e.degraded.Store(true)
}

// ClearDegraded reverses MarkDegraded after a successful device reopen.
func (e *Executor) ClearDegraded() {
	e.degraded.Store(false)
}

// Degraded reports whether the device is currently marked unavailable.
func (e *Executor) Degraded() bool {
	return e.degraded.Load()
}
