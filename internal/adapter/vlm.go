package adapter

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/gregm123456/hailo-device-manager/internal/deverrors"
)

// vlmInput matches spec.md §4.3's vlm/vlm_chat input schema.
type vlmInput struct {
	Prompt             string  `json:"prompt"`
	Frames             []struct{} `json:"frames,omitempty"`
	Temperature        float64 `json:"temperature,omitempty"`
	Seed                int64   `json:"seed,omitempty"`
	MaxGeneratedTokens int     `json:"max_generated_tokens,omitempty"`
}

// vlmOutput matches spec.md §4.3: vlm/vlm_chat produce {result: string}.
type vlmOutput struct {
	Result string `json:"result"`
}

type vlmSession struct {
	modelPath string
	chat      bool

	mu      sync.Mutex
	history []string // chat context; only used when chat == true
}

type vlmBackend struct {
	chat bool
}

func newVLMBackend(chat bool) *vlmBackend {
	return &vlmBackend{chat: chat}
}

func (b *vlmBackend) op(action string) string {
	if b.chat {
		return "vlm_chat." + action
	}
	return "vlm." + action
}

func (b *vlmBackend) Load(modelPath string, _ json.RawMessage) (Session, error) {
	if err := statModelFile(b.op("load"), modelPath); err != nil {
		return nil, err
	}
	return &vlmSession{modelPath: modelPath, chat: b.chat}, nil
}

func (b *vlmBackend) Infer(sess Session, input json.RawMessage) (json.RawMessage, error) {
	s, ok := sess.(*vlmSession)
	if !ok {
		return nil, fmt.Errorf("vlm backend received a foreign session")
	}
	if err := checkDeviceLost(b.op("infer"), s.modelPath); err != nil {
		return nil, err
	}

	var in vlmInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, deverrors.NewValidationError(b.op("infer"), "", fmt.Sprintf("invalid input_data for vlm: %v", err))
	}
	if in.Prompt == "" {
		return nil, deverrors.New(b.op("infer"), deverrors.KindProtocol, "missing required field: prompt")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result string
	if s.chat {
		// vlm_chat runs autoregressive generation over the accumulated
		// context and clears it after every call (spec.md §4.3).
		s.history = append(s.history, in.Prompt)
		result = fmt.Sprintf("[vlm_chat turn %d] %s", len(s.history), strings.Join(s.history, " -> "))
		s.history = nil
	} else {
		result = fmt.Sprintf("[vlm] %s", in.Prompt)
	}

	return json.Marshal(vlmOutput{Result: result})
}

func (b *vlmBackend) Release(Session) error {
	return nil
}
