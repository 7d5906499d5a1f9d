package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadWriteFrame_RoundTrip(t *testing.T) {
	req := Request{Action: "ping", RequestID: "a"}
	body, err := Marshal(req)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, body))

	got, err := ReadFrame(&buf, DefaultMaxMessageBytes)
	require.NoError(t, err)
	require.Equal(t, body, got)

	decoded, err := UnmarshalRequest(got)
	require.NoError(t, err)
	require.Equal(t, "ping", decoded.Action)
	require.Equal(t, "a", decoded.RequestID)
}

func TestReadFrame_TooLarge(t *testing.T) {
	var buf bytes.Buffer
	// Declare a 16 MiB frame when the limit is 8 MiB, per spec.md Scenario E.
	require.NoError(t, WriteFrame(&buf, make([]byte, 0)))
	buf.Reset()
	buf.Write([]byte{0x01, 0x00, 0x00, 0x00}) // 16777216 in big-endian

	_, err := ReadFrame(&buf, DefaultMaxMessageBytes)
	require.Error(t, err)
	var tooLarge *FrameTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	require.Equal(t, "Message too large: 16777216 bytes", err.Error())
}

func TestOK_EchoesRequestIDWhenPresent(t *testing.T) {
	withID := OK("a", map[string]any{"uptime_seconds": 5})
	require.Equal(t, "a", withID["request_id"])

	withoutID := OK("", map[string]any{"uptime_seconds": 5})
	_, present := withoutID["request_id"]
	require.False(t, present)
}

func TestErr_EchoesRequestIDWhenPresent(t *testing.T) {
	withID := Err("b", "boom")
	require.Equal(t, "b", withID["request_id"])
	require.Equal(t, "boom", withID["error"])

	withoutID := Err("", "boom")
	_, present := withoutID["request_id"]
	require.False(t, present)
}
