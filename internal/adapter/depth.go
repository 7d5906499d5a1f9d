package adapter

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/gregm123456/hailo-device-manager/internal/deverrors"
	"github.com/gregm123456/hailo-device-manager/internal/wire"
)

// depthOutput wraps a Tensor the same way clip/whisper/ocr wrap their typed
// results, for a [1,1,H,W] float32 depth map (spec.md §4.3).
type depthOutput struct {
	Depth wire.Tensor `json:"depth"`
}

type depthSession struct {
	modelPath string
}

type depthBackend struct{}

func newDepthBackend() *depthBackend {
	return &depthBackend{}
}

func (b *depthBackend) Load(modelPath string, _ json.RawMessage) (Session, error) {
	if err := statModelFile("depth.load", modelPath); err != nil {
		return nil, err
	}
	return &depthSession{modelPath: modelPath}, nil
}

func (b *depthBackend) Infer(sess Session, input json.RawMessage) (json.RawMessage, error) {
	s, ok := sess.(*depthSession)
	if !ok {
		return nil, fmt.Errorf("depth backend received a foreign session")
	}
	if err := checkDeviceLost("depth.infer", s.modelPath); err != nil {
		return nil, err
	}

	var tensor wire.Tensor
	if err := json.Unmarshal(input, &tensor); err != nil {
		return nil, deverrors.NewValidationError("depth.infer", "", fmt.Sprintf("invalid input_data for depth: %v", err))
	}
	if len(tensor.Shape) != 4 || tensor.Shape[0] != 1 || tensor.Shape[1] != 3 {
		return nil, deverrors.NewValidationError("depth.infer", "", "depth input must be an NCHW tensor of shape [1,3,H,W]")
	}
	if !isSupportedDepthDtype(tensor.Dtype) {
		return nil, deverrors.NewValidationError("depth.infer", "", fmt.Sprintf("unsupported depth tensor dtype: %s", tensor.Dtype))
	}

	data, err := tensor.Decode()
	if err != nil {
		return nil, err
	}

	h, w := tensor.Shape[2], tensor.Shape[3]
	plane := h * w
	elemSize, _ := wire.ElementSize(tensor.Dtype)

	out := make([]float32, plane)
	for i := 0; i < plane; i++ {
		var sum float64
		for c := 0; c < 3; c++ {
			sum += readElement(data, tensor.Dtype, (c*plane+i)*elemSize)
		}
		out[i] = float32(sum / 3)
	}

	depthBytes := make([]byte, plane*4)
	for i, v := range out {
		binary.LittleEndian.PutUint32(depthBytes[i*4:], math.Float32bits(v))
	}

	depthTensor, err := wire.EncodeTensor("float32", []int{1, 1, h, w}, depthBytes)
	if err != nil {
		return nil, err
	}

	return json.Marshal(depthOutput{Depth: depthTensor})
}

func (b *depthBackend) Release(Session) error {
	return nil
}

// isSupportedDepthDtype reports whether readElement knows how to decode
// dtype. Callers must check this before calling readElement: an
// unrecognized-but-length-valid dtype (e.g. float16, int16) would otherwise
// silently read as all zeros rather than failing loudly.
func isSupportedDepthDtype(dtype string) bool {
	switch dtype {
	case "uint8", "float32":
		return true
	default:
		return false
	}
}

// readElement reads a single element at byte offset off as a float64,
// interpreting it per dtype. Callers must only pass a dtype that
// isSupportedDepthDtype has already accepted.
func readElement(data []byte, dtype string, off int) float64 {
	switch dtype {
	case "uint8":
		return float64(data[off])
	case "float32":
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off:])))
	default:
		panic("readElement: unsupported dtype " + dtype)
	}
}
