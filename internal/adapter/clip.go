package adapter

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/gregm123456/hailo-device-manager/internal/deverrors"
	"github.com/gregm123456/hailo-device-manager/internal/wire"
)

const clipEmbeddingDim = 512

// clipInput matches spec.md §4.3: clip consumes either an image tensor or a
// tokens tensor.
type clipInput struct {
	Image  *wire.Tensor `json:"image,omitempty"`
	Tokens *wire.Tensor `json:"tokens,omitempty"`
}

// clipOutput matches spec.md §4.3: clip produces an L2-normalized embedding.
type clipOutput struct {
	Embedding [clipEmbeddingDim]float32 `json:"embedding"`
}

type clipSession struct {
	modelPath string
}

type clipBackend struct{}

func newCLIPBackend() *clipBackend {
	return &clipBackend{}
}

func (b *clipBackend) Load(modelPath string, _ json.RawMessage) (Session, error) {
	if err := statModelFile("clip.load", modelPath); err != nil {
		return nil, err
	}
	return &clipSession{modelPath: modelPath}, nil
}

func (b *clipBackend) Infer(sess Session, input json.RawMessage) (json.RawMessage, error) {
	s, ok := sess.(*clipSession)
	if !ok {
		return nil, fmt.Errorf("clip backend received a foreign session")
	}
	if err := checkDeviceLost("clip.infer", s.modelPath); err != nil {
		return nil, err
	}

	var in clipInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, deverrors.NewValidationError("clip.infer", "", fmt.Sprintf("invalid input_data for clip: %v", err))
	}

	var tensor *wire.Tensor
	switch {
	case in.Image != nil:
		tensor = in.Image
	case in.Tokens != nil:
		tensor = in.Tokens
	default:
		return nil, deverrors.NewValidationError("clip.infer", "", "clip input_data must include image or tokens")
	}

	data, err := tensor.Decode()
	if err != nil {
		return nil, err
	}

	embedding := deterministicEmbedding(data)
	return json.Marshal(clipOutput{Embedding: embedding})
}

func (b *clipBackend) Release(Session) error {
	return nil
}

// deterministicEmbedding derives a reproducible, L2-normalized embedding from
// arbitrary input bytes. It stands in for the real CLIP tower: every byte of
// the tensor contributes to the hash feeding each dimension, so the same
// input always yields the same embedding.
func deterministicEmbedding(data []byte) [clipEmbeddingDim]float32 {
	var out [clipEmbeddingDim]float32
	for i := range out {
		h := fnv.New32a()
		h.Write(data)
		h.Write([]byte{byte(i), byte(i >> 8)})
		v := float32(h.Sum32()%20001) / 10000.0 - 1.0 // in [-1, 1]
		out[i] = v
	}

	var sumSq float64
	for _, v := range out {
		sumSq += float64(v) * float64(v)
	}
	norm := float32(math.Sqrt(sumSq))
	if norm == 0 {
		return out
	}
	for i := range out {
		out[i] /= norm
	}
	return out
}
