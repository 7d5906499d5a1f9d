package adapter

import (
	"encoding/json"
	"fmt"

	"github.com/gregm123456/hailo-device-manager/internal/deverrors"
	"github.com/gregm123456/hailo-device-manager/internal/wire"
)

// ocrInput matches spec.md §4.3.
type ocrInput struct {
	Image wire.Tensor `json:"image"`
}

type ocrBox struct {
	X0, Y0, X1, Y1 float64 `json:"-"`
}

// MarshalJSON renders a box as [x0, y0, x1, y1].
func (b ocrBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([]float64{b.X0, b.Y0, b.X1, b.Y1})
}

// ocrOutput matches spec.md §4.3.
type ocrOutput struct {
	Boxes []ocrBox `json:"boxes"`
	Text  string   `json:"text"`
}

type ocrSession struct {
	modelPath string
}

type ocrBackend struct{}

func newOCRBackend() *ocrBackend {
	return &ocrBackend{}
}

func (b *ocrBackend) Load(modelPath string, _ json.RawMessage) (Session, error) {
	if err := statModelFile("ocr.load", modelPath); err != nil {
		return nil, err
	}
	return &ocrSession{modelPath: modelPath}, nil
}

func (b *ocrBackend) Infer(sess Session, input json.RawMessage) (json.RawMessage, error) {
	s, ok := sess.(*ocrSession)
	if !ok {
		return nil, fmt.Errorf("ocr backend received a foreign session")
	}
	if err := checkDeviceLost("ocr.infer", s.modelPath); err != nil {
		return nil, err
	}

	var in ocrInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, deverrors.NewValidationError("ocr.infer", "", fmt.Sprintf("invalid input_data for ocr: %v", err))
	}

	if _, err := in.Image.Decode(); err != nil {
		return nil, err
	}

	var width, height float64
	if shape := in.Image.Shape; len(shape) >= 3 {
		height = float64(shape[len(shape)-3])
		width = float64(shape[len(shape)-2])
	}

	out := ocrOutput{
		Boxes: []ocrBox{{X0: 0, Y0: 0, X1: width, Y1: height}},
		Text:  "",
	}
	return json.Marshal(out)
}

func (b *ocrBackend) Release(Session) error {
	return nil
}
