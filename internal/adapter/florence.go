package adapter

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/gregm123456/hailo-device-manager/internal/deverrors"
	"github.com/gregm123456/hailo-device-manager/internal/wire"
)

// Florence captioning uses two HEFs, encoder and decoder. spec.md §9 flags
// as an open question whether the daemon must coordinate the pair
// atomically; DESIGN.md records the decision (it does not — each HEF is an
// independent ModelSession, and the client is responsible for loading and
// addressing both).

type florenceEncoderInput struct {
	Image wire.Tensor `json:"image"`
}

type florenceEncoderOutput struct {
	EncoderState wire.Tensor `json:"encoder_state"`
}

type florenceEncoderSession struct {
	modelPath string
}

type florenceEncoderBackend struct{}

func newFlorenceEncoderBackend() *florenceEncoderBackend {
	return &florenceEncoderBackend{}
}

func (b *florenceEncoderBackend) Load(modelPath string, _ json.RawMessage) (Session, error) {
	if err := statModelFile("florence_encoder.load", modelPath); err != nil {
		return nil, err
	}
	return &florenceEncoderSession{modelPath: modelPath}, nil
}

func (b *florenceEncoderBackend) Infer(sess Session, input json.RawMessage) (json.RawMessage, error) {
	s, ok := sess.(*florenceEncoderSession)
	if !ok {
		return nil, fmt.Errorf("florence_encoder backend received a foreign session")
	}
	if err := checkDeviceLost("florence_encoder.infer", s.modelPath); err != nil {
		return nil, err
	}

	var in florenceEncoderInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, deverrors.NewValidationError("florence_encoder.infer", "", fmt.Sprintf("invalid input_data for florence_encoder: %v", err))
	}
	data, err := in.Image.Decode()
	if err != nil {
		return nil, err
	}

	// Encoder state is a fixed-size opaque feature vector derived from the
	// image bytes, handed off verbatim to florence_decoder by the client.
	const stateDim = 256
	state := make([]byte, stateDim*4)
	embedding := deterministicEmbedding(data)
	for i := 0; i < stateDim && i < len(embedding); i++ {
		putFloat32(state, i*4, embedding[i])
	}

	stateTensor, err := wire.EncodeTensor("float32", []int{1, stateDim}, state)
	if err != nil {
		return nil, err
	}
	return json.Marshal(florenceEncoderOutput{EncoderState: stateTensor})
}

func (b *florenceEncoderBackend) Release(Session) error {
	return nil
}

type florenceDecoderInput struct {
	EncoderState wire.Tensor `json:"encoder_state"`
	Prompt       string      `json:"prompt,omitempty"`
}

type florenceDecoderOutput struct {
	Result string `json:"result"`
}

type florenceDecoderSession struct {
	modelPath string
}

type florenceDecoderBackend struct{}

func newFlorenceDecoderBackend() *florenceDecoderBackend {
	return &florenceDecoderBackend{}
}

func (b *florenceDecoderBackend) Load(modelPath string, _ json.RawMessage) (Session, error) {
	if err := statModelFile("florence_decoder.load", modelPath); err != nil {
		return nil, err
	}
	return &florenceDecoderSession{modelPath: modelPath}, nil
}

func (b *florenceDecoderBackend) Infer(sess Session, input json.RawMessage) (json.RawMessage, error) {
	s, ok := sess.(*florenceDecoderSession)
	if !ok {
		return nil, fmt.Errorf("florence_decoder backend received a foreign session")
	}
	if err := checkDeviceLost("florence_decoder.infer", s.modelPath); err != nil {
		return nil, err
	}

	var in florenceDecoderInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, deverrors.NewValidationError("florence_decoder.infer", "", fmt.Sprintf("invalid input_data for florence_decoder: %v", err))
	}
	if _, err := in.EncoderState.Decode(); err != nil {
		return nil, err
	}

	caption := "a photographed scene"
	if in.Prompt != "" {
		caption = fmt.Sprintf("%s: %s", in.Prompt, caption)
	}
	return json.Marshal(florenceDecoderOutput{Result: caption})
}

func (b *florenceDecoderBackend) Release(Session) error {
	return nil
}

func putFloat32(buf []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
}
