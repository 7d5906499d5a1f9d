package adapter

import (
	"encoding/json"
	"fmt"

	"github.com/gregm123456/hailo-device-manager/internal/deverrors"
	"github.com/gregm123456/hailo-device-manager/internal/wire"
)

const whisperSampleRateHz = 16000

// whisperInput matches spec.md §4.3: mono float32 audio at a known sample rate.
type whisperInput struct {
	Audio       wire.Tensor `json:"audio"`
	Language    string      `json:"language,omitempty"`
	Temperature float64     `json:"temperature,omitempty"`
}

type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// whisperOutput matches spec.md §4.3.
type whisperOutput struct {
	Segments []whisperSegment `json:"segments"`
	Text     string           `json:"text"`
	Language string           `json:"language"`
}

type whisperSession struct {
	modelPath string
}

type whisperBackend struct{}

func newWhisperBackend() *whisperBackend {
	return &whisperBackend{}
}

func (b *whisperBackend) Load(modelPath string, _ json.RawMessage) (Session, error) {
	if err := statModelFile("whisper.load", modelPath); err != nil {
		return nil, err
	}
	return &whisperSession{modelPath: modelPath}, nil
}

func (b *whisperBackend) Infer(sess Session, input json.RawMessage) (json.RawMessage, error) {
	s, ok := sess.(*whisperSession)
	if !ok {
		return nil, fmt.Errorf("whisper backend received a foreign session")
	}
	if err := checkDeviceLost("whisper.infer", s.modelPath); err != nil {
		return nil, err
	}

	var in whisperInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, deverrors.NewValidationError("whisper.infer", "", fmt.Sprintf("invalid input_data for whisper: %v", err))
	}

	data, err := in.Audio.Decode()
	if err != nil {
		return nil, err
	}

	numSamples := len(data) / 4 // float32
	durationSec := float64(numSamples) / float64(whisperSampleRateHz)

	language := in.Language
	if language == "" {
		language = "en"
	}

	text := "transcribed audio segment"
	out := whisperOutput{
		Segments: []whisperSegment{{Start: 0, End: durationSec, Text: text}},
		Text:     text,
		Language: language,
	}
	return json.Marshal(out)
}

func (b *whisperBackend) Release(Session) error {
	return nil
}
