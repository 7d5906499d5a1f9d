package wire

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTensor_RoundTrip(t *testing.T) {
	raw := make([]byte, 1*224*224*3)
	for i := range raw {
		raw[i] = byte(i % 256)
	}

	tensor, err := EncodeTensor("uint8", []int{1, 224, 224, 3}, raw)
	require.NoError(t, err)

	decoded, err := tensor.Decode()
	require.NoError(t, err)
	require.Equal(t, raw, decoded)
}

func TestTensor_SizeMismatch(t *testing.T) {
	tensor := Tensor{
		Dtype:   "float32",
		Shape:   []int{1, 3, 4, 4},
		DataB64: base64.StdEncoding.EncodeToString(make([]byte, 10)), // wrong length
	}
	_, err := tensor.Decode()
	require.ErrorIs(t, err, ErrTensorInvalid)
}

func TestTensor_UnknownDtype(t *testing.T) {
	tensor := Tensor{Dtype: "complex128", Shape: []int{1}, DataB64: ""}
	_, err := tensor.Decode()
	require.ErrorIs(t, err, ErrTensorInvalid)
}

func TestTensor_EmptyShape(t *testing.T) {
	tensor := Tensor{Dtype: "uint8", Shape: []int{}, DataB64: ""}
	_, err := tensor.Decode()
	require.ErrorIs(t, err, ErrTensorInvalid)
}

func TestTensor_InvalidBase64(t *testing.T) {
	tensor := Tensor{Dtype: "uint8", Shape: []int{4}, DataB64: "not-valid-base64!!"}
	_, err := tensor.Decode()
	require.ErrorIs(t, err, ErrTensorInvalid)
}
