// Package httpstatus implements the read-only HTTP status mirror
// (spec.md §4.6): a single GET route that reads a non-blocking Registry
// snapshot so monitoring tools never wait behind the Executor queue.
package httpstatus

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gregm123456/hailo-device-manager/internal/executor"
	"github.com/gregm123456/hailo-device-manager/internal/registry"
)

const statusRoute = "/v1/device/status"

// StatusProvider is the minimal read path the HTTP server needs: a snapshot
// of resident sessions plus the same ambient fields the socket's status
// action reports, none of which require going through the Executor queue.
type StatusProvider struct {
	Registry   *registry.Registry
	Executor   *executor.Executor
	DeviceID   string
	SocketPath string
	StartTime  time.Time

	// Timeout bounds how long handleStatus waits on the registry snapshot
	// before answering 503 instead of hanging (spec.md §8 Testable Property
	// 7: the route must return within a configurable K ms, default 100,
	// even while the executor is mid-inference). Zero disables the bound.
	Timeout time.Duration
}

// Server is a minimal net/http wrapper exposing StatusProvider.
type Server struct {
	provider StatusProvider
	srv      *http.Server
}

// New builds a Server bound to addr but does not start it.
func New(addr string, provider StatusProvider) *Server {
	mux := http.NewServeMux()
	s := &Server{provider: provider}
	mux.HandleFunc(statusRoute, s.handleStatus)
	mux.HandleFunc("/", s.handleNotFound)
	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != statusRoute || r.Method != http.MethodGet {
		s.handleNotFound(w, r)
		return
	}

	entries, ok := s.snapshot()
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "status snapshot timed out"})
		return
	}

	body := map[string]any{
		"status":         "ok",
		"device_id":      s.provider.DeviceID,
		"loaded_models":  entries,
		"uptime_seconds": int64(time.Since(s.provider.StartTime).Seconds()),
		"socket_path":    s.provider.SocketPath,
		"queue_depth":    s.provider.Executor.QueueDepth(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}

// snapshot reads the registry, bounded by s.provider.Timeout (spec.md §8
// Testable Property 7). The registry's own Snapshot call never blocks on
// the Executor, so in practice this only ever times out under a
// pathological stall; the bound exists so that stall surfaces as a 503
// rather than a hung request.
func (s *Server) snapshot() ([]registry.Entry, bool) {
	if s.provider.Timeout <= 0 {
		return s.provider.Registry.Snapshot(), true
	}

	result := make(chan []registry.Entry, 1)
	go func() {
		result <- s.provider.Registry.Snapshot()
	}()

	select {
	case entries := <-result:
		return entries, true
	case <-time.After(s.provider.Timeout):
		return nil, false
	}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
}

// ListenAndServe starts the HTTP server; it blocks until the server is
// closed, mirroring net/http.Server's contract.
func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Close shuts down the HTTP server immediately.
func (s *Server) Close() error {
	return s.srv.Close()
}
