// Package socketserver accepts connections on the device manager's Unix
// domain socket, reads length-prefixed frames, and forwards each decoded
// request to the Executor (spec.md §4.5). Grounded on the teacher's
// connection-acceptance shape in backend.go's CreateAndServe (spawn one
// goroutine per unit of concurrent work, logger/observer passed through a
// Config struct) generalized from per-queue I/O loops to per-connection
// frame loops.
package socketserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/gregm123456/hailo-device-manager/internal/executor"
	"github.com/gregm123456/hailo-device-manager/internal/interfaces"
	"github.com/gregm123456/hailo-device-manager/internal/wire"
)

const (
	socketFileMode   = 0o660
	socketParentMode = 0o755
)

// Config configures the Server.
type Config struct {
	SocketPath      string
	SocketGroup     string // empty disables the chown
	MaxMessageBytes int
	Executor        *executor.Executor
	Logger          interfaces.Logger
}

// Server accepts connections and drives the per-connection frame loop.
type Server struct {
	cfg      Config
	listener net.Listener

	mu   sync.Mutex
	wg   sync.WaitGroup
	done chan struct{}
}

// New returns a Server bound to nothing yet; call Listen to bind.
func New(cfg Config) *Server {
	return &Server{cfg: cfg, done: make(chan struct{})}
}

// Listen creates the parent directory, removes any stale socket file, binds,
// and applies file mode/group ownership (spec.md §4.5).
func (s *Server) Listen() error {
	parent := filepath.Dir(s.cfg.SocketPath)
	if err := os.MkdirAll(parent, socketParentMode); err != nil {
		return fmt.Errorf("create socket parent dir: %w", err)
	}

	if err := removeStaleSocket(s.cfg.SocketPath); err != nil {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	l, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.SocketPath, err)
	}

	if err := os.Chmod(s.cfg.SocketPath, socketFileMode); err != nil {
		l.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	if s.cfg.SocketGroup != "" {
		if err := chownGroup(s.cfg.SocketPath, s.cfg.SocketGroup); err != nil {
			l.Close()
			return fmt.Errorf("chown socket group: %w", err)
		}
	}

	s.listener = l
	return nil
}

// removeStaleSocket unlinks a leftover socket file from a prior, uncleanly
// terminated run. Any other file type at the path is left alone and will
// surface as a bind error.
func removeStaleSocket(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("refusing to remove non-socket file at %s", path)
	}
	return os.Remove(path)
}

func chownGroup(path, group string) error {
	g, err := user.LookupGroup(group)
	if err != nil {
		return fmt.Errorf("lookup group %q: %w", group, err)
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return fmt.Errorf("parse gid %q: %w", g.Gid, err)
	}
	return unix.Chown(path, -1, gid)
}

// Serve accepts connections until ctx is cancelled or Close is called.
// Each accepted connection runs its frame loop in its own goroutine.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
				return err
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

// Close stops accepting new connections. It does not wait for in-flight
// connections to finish; call Wait for that.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		// already closed
	default:
		close(s.done)
	}
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Wait blocks until every accepted connection's goroutine has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Unlink removes the bound socket file, the last step of a clean shutdown.
func (s *Server) Unlink() error {
	err := os.Remove(s.cfg.SocketPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// serveConn runs the read-frame -> enqueue -> reply loop for one connection
// (spec.md §4.5): a deserialize failure keeps the connection open and
// replies with an error envelope; a framing violation (oversize frame, short
// read) closes it.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	maxBytes := s.cfg.MaxMessageBytes
	if maxBytes <= 0 {
		maxBytes = wire.DefaultMaxMessageBytes
	}

	for {
		body, err := wire.ReadFrame(conn, maxBytes)
		if err != nil {
			var tooLarge *wire.FrameTooLargeError
			if errors.As(err, &tooLarge) {
				resp := wire.Err("", tooLarge.Error())
				if payload, merr := wire.Marshal(resp); merr == nil {
					_ = wire.WriteFrame(conn, payload)
				}
			}
			return
		}

		req, err := wire.UnmarshalRequest(body)
		wire.ReleaseFrameBuffer(body)
		if err != nil {
			resp := wire.Err("", "invalid JSON: "+err.Error())
			payload, merr := wire.Marshal(resp)
			if merr != nil {
				return
			}
			if err := wire.WriteFrame(conn, payload); err != nil {
				return
			}
			continue
		}

		resp := s.cfg.Executor.Submit(ctx, req)
		payload, err := wire.Marshal(resp)
		if err != nil {
			if s.cfg.Logger != nil {
				s.cfg.Logger.Printf("failed to marshal response: %v", err)
			}
			return
		}
		// A disconnected client's reply is silently discarded, but the
		// executor has already completed the work (spec.md §5).
		if err := wire.WriteFrame(conn, payload); err != nil {
			return
		}
	}
}
