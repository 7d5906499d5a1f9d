// Package adapter implements the Device Adapter: a polymorphic dispatch over
// ModelType, each variant implementing the load/infer/release triad against
// its own model_params/input_data/result schema (spec.md §4.3).
//
// No cgo binding to libhailort exists in this repository — model compilation
// and true device I/O are out of scope (spec.md §1 Non-goals). Each backend
// below simulates a resident Hailo session well enough to exercise the
// Executor's serialization, registry bookkeeping, and error-mapping
// contracts end-to-end.
package adapter

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/gregm123456/hailo-device-manager/internal/deverrors"
)

// ModelType is the closed enumeration of backends the Device Adapter knows
// how to load. spec.md §3 names vlm, vlm_chat, clip, whisper, ocr, depth as
// core, and florence_encoder/florence_decoder/pose as extension points; all
// nine are wired here (see SPEC_FULL.md §3).
type ModelType string

const (
	ModelVLM             ModelType = "vlm"
	ModelVLMChat         ModelType = "vlm_chat"
	ModelCLIP            ModelType = "clip"
	ModelWhisper         ModelType = "whisper"
	ModelOCR             ModelType = "ocr"
	ModelDepth           ModelType = "depth"
	ModelFlorenceEncoder ModelType = "florence_encoder"
	ModelFlorenceDecoder ModelType = "florence_decoder"
	ModelPose            ModelType = "pose"
)

// Session is the opaque backend-specific runtime object a Backend returns
// from Load and consumes in Infer/Release. The Executor and Registry never
// inspect it.
type Session any

// Backend is the interface every ModelType variant implements.
type Backend interface {
	// Load opens a model file and returns a backend-specific session.
	Load(modelPath string, params json.RawMessage) (Session, error)
	// Infer runs one inference call and returns the result as raw JSON,
	// which the Executor places verbatim under the response's "result" key.
	Infer(sess Session, input json.RawMessage) (json.RawMessage, error)
	// Release is cleanup that never fails the request that triggered it:
	// the Executor only logs a returned error and drops the session anyway.
	Release(sess Session) error
}

// Adapter dispatches to a Backend by ModelType.
type Adapter struct {
	mu       sync.RWMutex
	backends map[ModelType]Backend
}

// New returns an Adapter with the built-in backends registered.
func New() *Adapter {
	a := &Adapter{backends: make(map[ModelType]Backend)}
	a.Register(ModelVLM, newVLMBackend(false))
	a.Register(ModelVLMChat, newVLMBackend(true))
	a.Register(ModelCLIP, newCLIPBackend())
	a.Register(ModelWhisper, newWhisperBackend())
	a.Register(ModelOCR, newOCRBackend())
	a.Register(ModelDepth, newDepthBackend())
	a.Register(ModelFlorenceEncoder, newFlorenceEncoderBackend())
	a.Register(ModelFlorenceDecoder, newFlorenceDecoderBackend())
	a.Register(ModelPose, newPoseBackend())
	return a
}

// Register installs or replaces the backend for a ModelType. Exposed so
// tests (and, in principle, an operator extending the extension points) can
// swap in a fake.
func (a *Adapter) Register(mt ModelType, b Backend) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.backends[mt] = b
}

// Lookup returns the backend registered for mt, if any.
func (a *Adapter) Lookup(mt ModelType) (Backend, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	b, ok := a.backends[mt]
	return b, ok
}

// IsKnownModelType reports whether mt is a registered, non-empty ModelType.
func (a *Adapter) IsKnownModelType(mt string) bool {
	_, ok := a.Lookup(ModelType(mt))
	return ok
}

// statModelFile is the shared "does this HEF exist" check every Load
// implementation performs before doing any backend-specific work, returning
// the structured Resource error spec.md §7 names ("Model file not found:
// <path>").
func statModelFile(op, modelPath string) error {
	if modelPath == "" {
		return deverrors.NewResourceError(op, modelPath)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return deverrors.NewResourceError(op, modelPath)
	}
	return nil
}

// checkDeviceLost re-stats a resident session's backing model file at infer
// time. Its disappearance after a successful Load is this repository's
// stand-in for a device disconnecting mid-call (spec.md §7): the Executor
// reacts to the returned device-loss error by marking itself degraded and
// failing subsequent requests with "Device unavailable" until a
// supervisor-initiated reopen clears the condition.
func checkDeviceLost(op, modelPath string) error {
	if _, err := os.Stat(modelPath); err != nil {
		return deverrors.NewDeviceLossError(op, err)
	}
	return nil
}
