// Package integration exercises a fully wired Daemon end-to-end over its
// real Unix socket (and, where enabled, its HTTP status mirror), covering
// spec.md §8's literal scenarios and quantified properties.
package integration

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	devicemgr "github.com/gregm123456/hailo-device-manager"
	"github.com/gregm123456/hailo-device-manager/internal/wire"
	"github.com/stretchr/testify/require"
)

func startDaemon(t *testing.T, httpBind string) (*devicemgr.Daemon, func()) {
	t.Helper()
	dir := t.TempDir()
	cfg := devicemgr.DefaultConfig()
	cfg.SocketPath = filepath.Join(dir, "device.sock")
	cfg.HTTPBind = httpBind
	cfg.ShutdownGrace = 2 * time.Second

	d, err := devicemgr.Start(cfg, nil)
	require.NoError(t, err)

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = d.Shutdown(ctx)
	}
	return d, cleanup
}

func dial(t *testing.T, sockPath string) net.Conn {
	t.Helper()
	conn, err := net.Dial("unix", sockPath)
	require.NoError(t, err)
	return conn
}

func roundTrip(t *testing.T, conn net.Conn, req wire.Request) wire.Response {
	t.Helper()
	payload, err := wire.Marshal(req)
	require.NoError(t, err)
	require.NoError(t, wire.WriteFrame(conn, payload))

	body, err := wire.ReadFrame(conn, wire.DefaultMaxMessageBytes)
	require.NoError(t, err)

	var resp wire.Response
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func tempModelFile(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "model-*.hef")
	require.NoError(t, err)
	defer f.Close()
	return f.Name()
}

// Scenario A — ping.
func TestScenarioA_Ping(t *testing.T) {
	d, cleanup := startDaemon(t, "off")
	defer cleanup()

	conn := dial(t, d.SocketPath())
	defer conn.Close()

	resp := roundTrip(t, conn, wire.Request{Action: "ping", RequestID: "a"})
	require.Equal(t, "ok", resp["status"])
	require.Equal(t, "a", resp["request_id"])
	require.Equal(t, []any{}, resp["loaded_models"])

	uptime, ok := resp["uptime_seconds"].(float64)
	require.True(t, ok)
	require.GreaterOrEqual(t, uptime, float64(0))
}

func randomTensorB64(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return base64.StdEncoding.EncodeToString(buf)
}

// Scenario B — implicit load via infer.
func TestScenarioB_ImplicitLoadViaInfer(t *testing.T) {
	d, cleanup := startDaemon(t, "off")
	defer cleanup()

	conn := dial(t, d.SocketPath())
	defer conn.Close()

	modelPath := tempModelFile(t)
	inputData, err := json.Marshal(map[string]any{
		"image": map[string]any{
			"dtype":    "uint8",
			"shape":    []int{1, 224, 224, 3},
			"data_b64": randomTensorB64(1 * 224 * 224 * 3),
		},
	})
	require.NoError(t, err)

	resp := roundTrip(t, conn, wire.Request{
		Action:    "infer",
		RequestID: "b",
		ModelPath: modelPath,
		ModelType: "clip",
		InputData: inputData,
	})
	require.Equal(t, "ok", resp["status"])

	result, ok := resp["result"].(map[string]any)
	require.True(t, ok)
	embedding, ok := result["embedding"].([]any)
	require.True(t, ok)
	require.Len(t, embedding, 512)

	statusResp := roundTrip(t, conn, wire.Request{Action: "status", RequestID: "b2"})
	loaded, ok := statusResp["loaded_models"].([]any)
	require.True(t, ok)
	require.Len(t, loaded, 1)
	entry := loaded[0].(map[string]any)
	require.Equal(t, modelPath, entry["model_path"])
	require.Equal(t, "clip", entry["model_type"])
}

// Scenario C — idempotent load.
func TestScenarioC_IdempotentLoad(t *testing.T) {
	d, cleanup := startDaemon(t, "off")
	defer cleanup()

	conn := dial(t, d.SocketPath())
	defer conn.Close()

	modelPath := tempModelFile(t)
	req := wire.Request{Action: "load_model", RequestID: "c1", ModelPath: modelPath, ModelType: "clip"}

	resp1 := roundTrip(t, conn, req)
	require.Equal(t, "ok", resp1["status"])

	req.RequestID = "c2"
	resp2 := roundTrip(t, conn, req)
	require.Equal(t, "ok", resp2["status"])

	require.Len(t, d.Registry(), 1)
}

// Scenario D — unknown model_type.
func TestScenarioD_UnknownModelType(t *testing.T) {
	d, cleanup := startDaemon(t, "off")
	defer cleanup()

	conn := dial(t, d.SocketPath())
	defer conn.Close()

	resp := roundTrip(t, conn, wire.Request{
		Action:    "infer",
		ModelType: "xyzzy",
		ModelPath: "/m/a.hef",
		InputData: json.RawMessage(`{}`),
	})
	require.Equal(t, "Unsupported model_type: xyzzy", resp["error"])

	pingResp := roundTrip(t, conn, wire.Request{Action: "ping", RequestID: "d2"})
	require.Equal(t, "ok", pingResp["status"])
}

// Scenario E — oversize frame.
func TestScenarioE_OversizeFrame(t *testing.T) {
	d, cleanup := startDaemon(t, "off")
	defer cleanup()

	conn := dial(t, d.SocketPath())
	defer conn.Close()

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], 16<<20)
	_, err := conn.Write(lenBuf[:])
	require.NoError(t, err)

	body, err := wire.ReadFrame(conn, wire.DefaultMaxMessageBytes)
	require.NoError(t, err)
	var resp wire.Response
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Equal(t, "Message too large: 16777216 bytes", resp["error"])

	buf := make([]byte, 1)
	conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	_, err = conn.Read(buf)
	require.Error(t, err)
}

// Scenario F — HTTP status mirror.
func TestScenarioF_HTTPStatusMirror(t *testing.T) {
	d, cleanup := startDaemon(t, "127.0.0.1:18099")
	defer cleanup()

	conn := dial(t, d.SocketPath())
	defer conn.Close()

	modelPath := tempModelFile(t)
	inputData, err := json.Marshal(map[string]any{
		"image": map[string]any{
			"dtype":    "uint8",
			"shape":    []int{1, 224, 224, 3},
			"data_b64": randomTensorB64(1 * 224 * 224 * 3),
		},
	})
	require.NoError(t, err)

	resp := roundTrip(t, conn, wire.Request{
		Action: "infer", RequestID: "f", ModelPath: modelPath, ModelType: "clip", InputData: inputData,
	})
	require.Equal(t, "ok", resp["status"])

	socketStatus := roundTrip(t, conn, wire.Request{Action: "status"})
	socketLoaded := socketStatus["loaded_models"].([]any)
	require.Len(t, socketLoaded, 1)

	require.Eventually(t, func() bool {
		httpResp, err := http.Get("http://127.0.0.1:18099/v1/device/status")
		if err != nil {
			return false
		}
		defer httpResp.Body.Close()
		var body map[string]any
		if err := json.NewDecoder(httpResp.Body).Decode(&body); err != nil {
			return false
		}
		loaded, ok := body["loaded_models"].([]any)
		return ok && len(loaded) == 1
	}, 2*time.Second, 20*time.Millisecond)
}

// Testable Property 1 — mutual exclusion: eight concurrent infer calls on
// separate connections against one model all succeed. The test does not
// observe call overlap at the Device Adapter directly.
func TestProperty_MutualExclusion(t *testing.T) {
	d, cleanup := startDaemon(t, "off")
	defer cleanup()

	modelPath := tempModelFile(t)
	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := dial(t, d.SocketPath())
			defer conn.Close()
			inputData, _ := json.Marshal(map[string]any{
				"image": map[string]any{
					"dtype": "uint8", "shape": []int{1, 224, 224, 3},
					"data_b64": randomTensorB64(1 * 224 * 224 * 3),
				},
			})
			resp := roundTrip(t, conn, wire.Request{
				Action: "infer", RequestID: fmt.Sprintf("w%d", i),
				ModelPath: modelPath, ModelType: "clip", InputData: inputData,
			})
			if resp["status"] != "ok" {
				errs <- fmt.Errorf("worker %d: %v", i, resp["error"])
				return
			}
			errs <- nil
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

// Testable Property 3 — idempotence: unload on a missing key succeeds.
func TestProperty_UnloadMissingKeyIsIdempotent(t *testing.T) {
	d, cleanup := startDaemon(t, "off")
	defer cleanup()

	conn := dial(t, d.SocketPath())
	defer conn.Close()

	resp := roundTrip(t, conn, wire.Request{
		Action: "unload_model", ModelPath: "/m/never-loaded.hef", ModelType: "clip",
	})
	require.Equal(t, "ok", resp["status"])
}

// Testable Property 5 — echo: request_id appears iff the request had one.
func TestProperty_EchoRequestID(t *testing.T) {
	d, cleanup := startDaemon(t, "off")
	defer cleanup()

	conn := dial(t, d.SocketPath())
	defer conn.Close()

	withID := roundTrip(t, conn, wire.Request{Action: "ping", RequestID: "abc"})
	require.Equal(t, "abc", withID["request_id"])

	withoutID := roundTrip(t, conn, wire.Request{Action: "ping"})
	_, present := withoutID["request_id"]
	require.False(t, present)
}

// Testable Property 6 — ordering per connection: responses to r1, r2 arrive
// in the order they were sent when awaited synchronously.
func TestProperty_OrderingPerConnection(t *testing.T) {
	d, cleanup := startDaemon(t, "off")
	defer cleanup()

	conn := dial(t, d.SocketPath())
	defer conn.Close()

	r1 := roundTrip(t, conn, wire.Request{Action: "ping", RequestID: "1"})
	r2 := roundTrip(t, conn, wire.Request{Action: "ping", RequestID: "2"})
	require.Equal(t, "1", r1["request_id"])
	require.Equal(t, "2", r2["request_id"])
}

// Testable Property 7 — snapshot liveness: GET /v1/device/status returns
// within 100ms on an otherwise idle daemon.
func TestProperty_SnapshotLiveness(t *testing.T) {
	d, cleanup := startDaemon(t, "127.0.0.1:18100")
	defer cleanup()

	require.Eventually(t, func() bool {
		start := time.Now()
		resp, err := http.Get("http://127.0.0.1:18100/v1/device/status")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		elapsed := time.Since(start)
		return elapsed < 100*time.Millisecond
	}, 2*time.Second, 20*time.Millisecond)
}

// Testable Property 8 — tensor round-trip: a 64000-byte float32 tensor sent
// over the socket passes the daemon's decode-time length check. Byte-for-byte
// equality of encode -> decode is checked in internal/wire's tensor tests.
func TestProperty_TensorRoundTrip(t *testing.T) {
	d, cleanup := startDaemon(t, "off")
	defer cleanup()

	conn := dial(t, d.SocketPath())
	defer conn.Close()

	raw := make([]byte, 16000*4) // 1 second of 16kHz mono float32 audio
	_, _ = rand.Read(raw)

	modelPath := tempModelFile(t)
	inputData, err := json.Marshal(map[string]any{
		"audio": map[string]any{
			"dtype":    "float32",
			"shape":    []int{16000},
			"data_b64": base64.StdEncoding.EncodeToString(raw),
		},
	})
	require.NoError(t, err)

	resp := roundTrip(t, conn, wire.Request{
		Action: "infer", RequestID: "tensor", ModelPath: modelPath, ModelType: "whisper", InputData: inputData,
	})
	require.Equal(t, "ok", resp["status"])
}
