package devicemgr

import (
	"encoding/json"
	"sync"

	"github.com/gregm123456/hailo-device-manager/internal/adapter"
)

// MockAdapter provides a mock implementation of adapter.Backend for external
// callers' own test suites, tracking calls for verification the way the
// teacher's MockBackend tracks read/write/flush calls.
type MockAdapter struct {
	mu sync.RWMutex

	loadCalls    int
	inferCalls   int
	releaseCalls int

	loadFunc    func(modelPath string, params json.RawMessage) (adapter.Session, error)
	inferFunc   func(sess adapter.Session, input json.RawMessage) (json.RawMessage, error)
	releaseFunc func(sess adapter.Session) error
}

// NewMockAdapter creates a mock backend that, absent overrides, succeeds
// trivially: Load returns an opaque session, Infer echoes input_data back
// as {"echo": input_data} (which the Executor places under the response's
// "result" key), and Release is a no-op.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{}
}

// OnLoad overrides the Load behavior.
func (m *MockAdapter) OnLoad(f func(modelPath string, params json.RawMessage) (adapter.Session, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadFunc = f
}

// OnInfer overrides the Infer behavior.
func (m *MockAdapter) OnInfer(f func(sess adapter.Session, input json.RawMessage) (json.RawMessage, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inferFunc = f
}

// OnRelease overrides the Release behavior.
func (m *MockAdapter) OnRelease(f func(sess adapter.Session) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseFunc = f
}

func (m *MockAdapter) Load(modelPath string, params json.RawMessage) (adapter.Session, error) {
	m.mu.Lock()
	m.loadCalls++
	f := m.loadFunc
	m.mu.Unlock()

	if f != nil {
		return f(modelPath, params)
	}
	return modelPath, nil
}

func (m *MockAdapter) Infer(sess adapter.Session, input json.RawMessage) (json.RawMessage, error) {
	m.mu.Lock()
	m.inferCalls++
	f := m.inferFunc
	m.mu.Unlock()

	if f != nil {
		return f(sess, input)
	}
	return json.Marshal(map[string]json.RawMessage{"echo": input})
}

func (m *MockAdapter) Release(sess adapter.Session) error {
	m.mu.Lock()
	m.releaseCalls++
	f := m.releaseFunc
	m.mu.Unlock()

	if f != nil {
		return f(sess)
	}
	return nil
}

// CallCounts reports how many times each method has been invoked.
func (m *MockAdapter) CallCounts() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int{
		"load":    m.loadCalls,
		"infer":   m.inferCalls,
		"release": m.releaseCalls,
	}
}

// Reset clears all call counters.
func (m *MockAdapter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCalls = 0
	m.inferCalls = 0
	m.releaseCalls = 0
}

var _ adapter.Backend = (*MockAdapter)(nil)
