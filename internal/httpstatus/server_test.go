package httpstatus

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gregm123456/hailo-device-manager/internal/adapter"
	"github.com/gregm123456/hailo-device-manager/internal/executor"
	"github.com/gregm123456/hailo-device-manager/internal/interfaces"
	"github.com/gregm123456/hailo-device-manager/internal/registry"
	"github.com/stretchr/testify/require"
)

func newTestProvider() StatusProvider {
	reg := registry.New()
	ex := executor.New(executor.Config{
		Adapter:  adapter.New(),
		Registry: reg,
		Observer: interfaces.NoOpObserver{},
	})
	return StatusProvider{
		Registry:   reg,
		Executor:   ex,
		DeviceID:   "hailo0",
		SocketPath: "/run/hailo/device.sock",
		StartTime:  time.Now(),
	}
}

func TestHandleStatus_OK(t *testing.T) {
	s := New("127.0.0.1:0", newTestProvider())

	req := httptest.NewRequest(http.MethodGet, "/v1/device/status", nil)
	rec := httptest.NewRecorder()
	s.handleStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "hailo0", body["device_id"])
	require.Equal(t, []any{}, body["loaded_models"])
}

func TestHandleNotFound_OtherRoutes(t *testing.T) {
	s := New("127.0.0.1:0", newTestProvider())

	for _, path := range []string{"/", "/foo", "/v1/device/other"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.srv.Handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code, "path=%s", path)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "not found", body["error"])
	}
}

func TestHandleStatus_WithTimeout_StillSucceeds(t *testing.T) {
	provider := newTestProvider()
	provider.Timeout = 50 * time.Millisecond
	s := New("127.0.0.1:0", provider)

	req := httptest.NewRequest(http.MethodGet, "/v1/device/status", nil)
	rec := httptest.NewRecorder()
	s.handleStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleStatus_RejectsNonGet(t *testing.T) {
	s := New("127.0.0.1:0", newTestProvider())

	req := httptest.NewRequest(http.MethodPost, "/v1/device/status", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
