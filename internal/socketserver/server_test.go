package socketserver

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gregm123456/hailo-device-manager/internal/adapter"
	"github.com/gregm123456/hailo-device-manager/internal/executor"
	"github.com/gregm123456/hailo-device-manager/internal/interfaces"
	"github.com/gregm123456/hailo-device-manager/internal/registry"
	"github.com/gregm123456/hailo-device-manager/internal/wire"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) (*Server, string, func()) {
	t.Helper()
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "device.sock")

	reg := registry.New()
	ex := executor.New(executor.Config{
		Adapter:       adapter.New(),
		Registry:      reg,
		QueueCapacity: 8,
		SocketPath:    sockPath,
		DeviceID:      "hailo0",
		Observer:      interfaces.NoOpObserver{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go ex.Run(ctx, time.Second)

	srv := New(Config{
		SocketPath:      sockPath,
		MaxMessageBytes: wire.DefaultMaxMessageBytes,
		Executor:        ex,
	})
	require.NoError(t, srv.Listen())

	go srv.Serve(ctx)

	cleanup := func() {
		cancel()
		srv.Close()
		srv.Wait()
	}
	return srv, sockPath, cleanup
}

func sendRequest(t *testing.T, conn net.Conn, req wire.Request) wire.Response {
	t.Helper()
	payload, err := wire.Marshal(req)
	require.NoError(t, err)
	require.NoError(t, wire.WriteFrame(conn, payload))

	body, err := wire.ReadFrame(conn, wire.DefaultMaxMessageBytes)
	require.NoError(t, err)

	resp, err := unmarshalResponse(body)
	require.NoError(t, err)
	return resp
}

func unmarshalResponse(body []byte) (wire.Response, error) {
	var resp wire.Response
	err := json.Unmarshal(body, &resp)
	return resp, err
}

func TestServer_Ping(t *testing.T) {
	_, sockPath, cleanup := startTestServer(t)
	defer cleanup()

	conn, err := net.Dial("unix", sockPath)
	require.NoError(t, err)
	defer conn.Close()

	resp := sendRequest(t, conn, wire.Request{Action: "ping", RequestID: "a"})
	require.Equal(t, "ok", resp["status"])
	require.Equal(t, "a", resp["request_id"])
}

func TestServer_OversizeFrame_ClosesConnection(t *testing.T) {
	_, sockPath, cleanup := startTestServer(t)
	defer cleanup()

	conn, err := net.Dial("unix", sockPath)
	require.NoError(t, err)
	defer conn.Close()

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], 16<<20) // 16 MiB > 8 MiB default
	_, err = conn.Write(lenBuf[:])
	require.NoError(t, err)

	body, err := wire.ReadFrame(conn, wire.DefaultMaxMessageBytes)
	require.NoError(t, err)
	resp, err := unmarshalResponse(body)
	require.NoError(t, err)
	require.Equal(t, "Message too large: 16777216 bytes", resp["error"])

	buf := make([]byte, 1)
	conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	_, err = conn.Read(buf)
	require.Error(t, err) // connection should be closed after framing violation
}

func TestServer_InvalidJSON_KeepsConnectionOpen(t *testing.T) {
	_, sockPath, cleanup := startTestServer(t)
	defer cleanup()

	conn, err := net.Dial("unix", sockPath)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, wire.WriteFrame(conn, []byte("not json")))
	body, err := wire.ReadFrame(conn, wire.DefaultMaxMessageBytes)
	require.NoError(t, err)
	resp, err := unmarshalResponse(body)
	require.NoError(t, err)
	require.Contains(t, resp["error"], "invalid JSON")

	// Connection should still be usable.
	resp2 := sendRequest(t, conn, wire.Request{Action: "ping"})
	require.Equal(t, "ok", resp2["status"])
}

func TestServer_StaleSocketRemovedOnListen(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "device.sock")

	l, err := net.Listen("unix", sockPath)
	require.NoError(t, err)
	l.(*net.UnixListener).SetUnlinkOnClose(false)
	l.Close() // leaves the socket file behind, simulating an unclean exit

	_, err = os.Stat(sockPath)
	require.NoError(t, err)

	reg := registry.New()
	ex := executor.New(executor.Config{Adapter: adapter.New(), Registry: reg})
	srv := New(Config{SocketPath: sockPath, Executor: ex})
	require.NoError(t, srv.Listen())
	defer srv.Close()
}
