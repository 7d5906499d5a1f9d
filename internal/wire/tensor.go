package wire

import (
	"encoding/base64"
	"errors"
)

// ErrTensorInvalid is returned whenever a tensor payload fails validation:
// an unknown dtype, an empty or negative shape, or a byte length mismatch.
// spec.md §4.1 generalizes all of these to a single message so that a
// malformed tensor never leaks internal size-math to the client.
var ErrTensorInvalid = errors.New("tensor must include dtype, shape, and data_b64")

// dtypeSizes maps numpy-style dtype names to their element size in bytes.
var dtypeSizes = map[string]int{
	"bool":    1,
	"uint8":   1,
	"int8":    1,
	"uint16":  2,
	"int16":   2,
	"float16": 2,
	"uint32":  4,
	"int32":   4,
	"float32": 4,
	"uint64":  8,
	"int64":   8,
	"float64": 8,
}

// Tensor is the wire representation of a tensor payload: a numpy-style dtype
// name, a non-empty shape, and base64-encoded raw bytes.
type Tensor struct {
	Dtype   string `json:"dtype"`
	Shape   []int  `json:"shape"`
	DataB64 string `json:"data_b64"`
}

// ElementSize returns the byte size of one element of t.Dtype, or 0 and false
// if the dtype is not recognized.
func ElementSize(dtype string) (int, bool) {
	n, ok := dtypeSizes[dtype]
	return n, ok
}

// product returns the product of shape, or -1 if shape is empty or any
// dimension is negative.
func product(shape []int) int64 {
	if len(shape) == 0 {
		return -1
	}
	var total int64 = 1
	for _, d := range shape {
		if d < 0 {
			return -1
		}
		total *= int64(d)
	}
	return total
}

// Decode validates t and returns the decoded raw bytes. The byte length must
// equal product(shape) * element_size(dtype) exactly.
func (t Tensor) Decode() ([]byte, error) {
	elemSize, ok := ElementSize(t.Dtype)
	if !ok {
		return nil, ErrTensorInvalid
	}
	count := product(t.Shape)
	if count < 0 {
		return nil, ErrTensorInvalid
	}
	data, err := base64.StdEncoding.DecodeString(t.DataB64)
	if err != nil {
		return nil, ErrTensorInvalid
	}
	if int64(len(data)) != count*int64(elemSize) {
		return nil, ErrTensorInvalid
	}
	return data, nil
}

// EncodeTensor builds a Tensor from raw bytes, validating that the byte
// length matches product(shape) * element_size(dtype).
func EncodeTensor(dtype string, shape []int, data []byte) (Tensor, error) {
	elemSize, ok := ElementSize(dtype)
	if !ok {
		return Tensor{}, ErrTensorInvalid
	}
	count := product(shape)
	if count < 0 || int64(len(data)) != count*int64(elemSize) {
		return Tensor{}, ErrTensorInvalid
	}
	return Tensor{
		Dtype:   dtype,
		Shape:   append([]int(nil), shape...),
		DataB64: base64.StdEncoding.EncodeToString(data),
	}, nil
}
