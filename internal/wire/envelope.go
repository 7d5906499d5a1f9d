// Package wire implements the length-prefixed JSON protocol spoken over the
// device manager's Unix socket: a 4-byte big-endian length prefix followed by
// exactly that many bytes of UTF-8 JSON.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

// DefaultMaxMessageBytes is the default frame body size limit (8 MiB).
const DefaultMaxMessageBytes = 8 << 20

// frameHeaderSize is the length of the big-endian length prefix.
const frameHeaderSize = 4

var api = jsoniter.ConfigCompatibleWithStandardLibrary

// Request is a single decoded request envelope. Action-specific fields are
// kept as raw JSON so that each action's handler can decode only what it
// needs, matching the loose field set spec.md describes per action.
type Request struct {
	Action      string          `json:"action"`
	RequestID   string          `json:"request_id,omitempty"`
	ModelPath   string          `json:"model_path,omitempty"`
	ModelType   string          `json:"model_type,omitempty"`
	ModelParams json.RawMessage `json:"model_params,omitempty"`
	InputData   json.RawMessage `json:"input_data,omitempty"`
}

// Response is a response envelope. It is built as a plain map so that each
// action can attach exactly the fields it produces without a combinatorial
// struct of optional fields; OK/Error below are the two canonical shapes.
type Response map[string]any

// OK builds a successful response envelope, echoing request_id when present.
func OK(requestID string, fields map[string]any) Response {
	r := Response{"status": "ok"}
	for k, v := range fields {
		r[k] = v
	}
	if requestID != "" {
		r["request_id"] = requestID
	}
	return r
}

// Err builds an error response envelope, echoing request_id when present.
func Err(requestID string, message string) Response {
	r := Response{"error": message}
	if requestID != "" {
		r["request_id"] = requestID
	}
	return r
}

// Marshal encodes v (a Request or Response) to JSON using json-iterator's
// standard-library-compatible configuration.
func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

// UnmarshalRequest decodes a frame body into a Request.
func UnmarshalRequest(body []byte) (Request, error) {
	var req Request
	if err := api.Unmarshal(body, &req); err != nil {
		return Request{}, err
	}
	return req, nil
}

// FrameTooLargeError reports a frame whose declared length exceeds the limit.
type FrameTooLargeError struct {
	Declared int
	Max      int
}

func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("Message too large: %d bytes", e.Declared)
}

// ReadFrame reads one length-prefixed frame from r. If the declared length
// exceeds maxBytes, it returns a *FrameTooLargeError without reading the body
// any further than the value has already indicated; callers must treat this
// as a framing violation and close the connection (spec.md §4.1, §4.5).
func ReadFrame(r io.Reader, maxBytes int) ([]byte, error) {
	var lenBuf [frameHeaderSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	declared := int(binary.BigEndian.Uint32(lenBuf[:]))
	if declared > maxBytes {
		return nil, &FrameTooLargeError{Declared: declared, Max: maxBytes}
	}
	body := GetFrameBuffer(declared)
	if declared > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			ReleaseFrameBuffer(body)
			return nil, err
		}
	}
	return body, nil
}

// WriteFrame writes payload as one length-prefixed frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [frameHeaderSize]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
