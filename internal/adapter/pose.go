package adapter

import (
	"encoding/json"
	"fmt"

	"github.com/gregm123456/hailo-device-manager/internal/deverrors"
	"github.com/gregm123456/hailo-device-manager/internal/wire"
)

// poseInput is this repository's extension-point schema for the pose
// ModelType named but left unspecified in spec.md §3/§4.3.
type poseInput struct {
	Image wire.Tensor `json:"image"`
}

type keypoint struct {
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"`
}

type poseOutput struct {
	Keypoints []keypoint `json:"keypoints"`
	NumPeople int        `json:"num_people"`
}

var poseKeypointNames = []string{
	"nose", "left_eye", "right_eye", "left_shoulder", "right_shoulder",
	"left_hip", "right_hip", "left_knee", "right_knee", "left_ankle", "right_ankle",
}

type poseSession struct {
	modelPath string
}

type poseBackend struct{}

func newPoseBackend() *poseBackend {
	return &poseBackend{}
}

func (b *poseBackend) Load(modelPath string, _ json.RawMessage) (Session, error) {
	if err := statModelFile("pose.load", modelPath); err != nil {
		return nil, err
	}
	return &poseSession{modelPath: modelPath}, nil
}

func (b *poseBackend) Infer(sess Session, input json.RawMessage) (json.RawMessage, error) {
	s, ok := sess.(*poseSession)
	if !ok {
		return nil, fmt.Errorf("pose backend received a foreign session")
	}
	if err := checkDeviceLost("pose.infer", s.modelPath); err != nil {
		return nil, err
	}

	var in poseInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, deverrors.NewValidationError("pose.infer", "", fmt.Sprintf("invalid input_data for pose: %v", err))
	}
	if _, err := in.Image.Decode(); err != nil {
		return nil, err
	}

	keypoints := make([]keypoint, len(poseKeypointNames))
	for i, name := range poseKeypointNames {
		keypoints[i] = keypoint{Name: name, X: 0, Y: 0, Score: 0}
	}

	return json.Marshal(poseOutput{Keypoints: keypoints, NumPeople: 1})
}

func (b *poseBackend) Release(Session) error {
	return nil
}
