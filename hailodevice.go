package devicemgr

import (
	"context"
	"fmt"
	"time"

	"github.com/gregm123456/hailo-device-manager/internal/adapter"
	"github.com/gregm123456/hailo-device-manager/internal/config"
	"github.com/gregm123456/hailo-device-manager/internal/executor"
	"github.com/gregm123456/hailo-device-manager/internal/httpstatus"
	"github.com/gregm123456/hailo-device-manager/internal/metrics"
	"github.com/gregm123456/hailo-device-manager/internal/registry"
	"github.com/gregm123456/hailo-device-manager/internal/socketserver"
)

// Config is the daemon's fully-resolved runtime configuration, re-exported
// so callers outside internal/config can build one without reaching past
// the public API.
type Config = config.Config

// DefaultConfig returns spec.md §6's defaults.
func DefaultConfig() Config {
	return config.Default()
}

// ConfigFromEnv overlays HAILO_DEVICE_* environment variables onto
// DefaultConfig().
func ConfigFromEnv() (Config, error) {
	return config.FromEnv()
}

// Options carries the pieces of CreateAndServe's caller contract that don't
// belong in Config: logging and metrics wiring, mirroring the teacher's
// ublk.Options split between device parameters and operational hooks.
type Options struct {
	// Context for cancellation (if nil, uses context.Background()).
	Context context.Context

	// Logger for debug/info messages (if nil, no logging).
	Logger Logger

	// Observer for metrics collection (if nil, a fresh MetricsObserver is
	// created and exposed via Daemon.Metrics()).
	Observer Observer

	// Adapter overrides the built-in Device Adapter, e.g. to substitute a
	// MockAdapter-backed ModelType in tests. Defaults to adapter.New().
	Adapter *adapter.Adapter
}

// Logger is the logging contract the daemon depends on; satisfied by
// *internal/logging.Logger and by anything with the same two methods.
type Logger interface {
	Printf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Daemon is a running Hailo Device Manager instance: one Executor goroutine,
// one socket listener, and an optional HTTP status mirror.
type Daemon struct {
	cfg      Config
	executor *executor.Executor
	registry *registry.Registry
	socket   *socketserver.Server
	http     *httpstatus.Server
	metrics  *Metrics

	ctx     context.Context
	cancel  context.CancelFunc
	runDone chan struct{}
}

// Start brings up the daemon: it binds the Unix socket, starts the Executor
// goroutine, and — unless HTTPBind is "off" — binds the HTTP status mirror.
// It returns once the socket is accepting connections; the Executor and
// accept loops keep running in background goroutines until Shutdown is
// called or ctx given in Options is cancelled.
//
// Mirrors the teacher's CreateAndServe: validate inputs, stand up the
// owning goroutine(s) before declaring readiness, return a handle the
// caller uses for the rest of the process lifetime.
func Start(cfg Config, options *Options) (*Daemon, error) {
	if options == nil {
		options = &Options{}
	}

	ctx := options.Context
	if ctx == nil {
		ctx = context.Background()
	}

	m := metrics.New()
	var observer Observer = metrics.NewObserver(m)
	if options.Observer != nil {
		observer = options.Observer
	}

	ad := options.Adapter
	if ad == nil {
		ad = adapter.New()
	}

	reg := registry.New()

	daemonCtx, cancel := context.WithCancel(ctx)

	ex := executor.New(executor.Config{
		Adapter:       ad,
		Registry:      reg,
		QueueCapacity: cfg.QueueCapacity,
		SocketPath:    cfg.SocketPath,
		DeviceID:      "hailo0",
		Logger:        options.Logger,
		Observer:      observer,
	})

	sock := socketserver.New(socketserver.Config{
		SocketPath:      cfg.SocketPath,
		SocketGroup:     cfg.SocketGroup,
		MaxMessageBytes: cfg.MaxMessageBytes,
		Executor:        ex,
		Logger:          options.Logger,
	})
	if err := sock.Listen(); err != nil {
		cancel()
		return nil, fmt.Errorf("bind socket: %w", err)
	}

	d := &Daemon{
		cfg:      cfg,
		executor: ex,
		registry: reg,
		socket:   sock,
		metrics:  m,
		ctx:      daemonCtx,
		cancel:   cancel,
		runDone:  make(chan struct{}),
	}

	go func() {
		defer close(d.runDone)
		ex.Run(daemonCtx, cfg.ShutdownGrace)
	}()

	go func() {
		_ = sock.Serve(daemonCtx)
	}()

	if cfg.HTTPEnabled() {
		d.http = httpstatus.New(cfg.HTTPBind, httpstatus.StatusProvider{
			Registry:   reg,
			Executor:   ex,
			DeviceID:   "hailo0",
			SocketPath: cfg.SocketPath,
			StartTime:  time.Now(),
			Timeout:    cfg.StatusTimeout,
		})
		go func() {
			_ = d.http.ListenAndServe()
		}()
	}

	return d, nil
}

// Shutdown drains in-flight work for up to cfg.ShutdownGrace, stops
// accepting new socket connections, releases every resident model, and
// unlinks the socket file. Mirrors the teacher's StopAndDelete: cancel
// first, let goroutines observe it, then tear down in dependency order.
func (d *Daemon) Shutdown(ctx context.Context) error {
	if d == nil {
		return fmt.Errorf("nil daemon")
	}

	d.cancel()

	select {
	case <-d.runDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	d.executor.ReleaseAll()

	if d.http != nil {
		_ = d.http.Close()
	}

	_ = d.socket.Close()
	d.socket.Wait()
	_ = d.socket.Unlink()

	d.metrics.Stop()

	return nil
}

// QueueDepth reports the Executor's current backlog.
func (d *Daemon) QueueDepth() int {
	return d.executor.QueueDepth()
}

// Registry exposes a read-only snapshot of resident sessions, for callers
// embedding a Daemon that want status without a socket round-trip.
func (d *Daemon) Registry() []registry.Entry {
	return d.registry.Snapshot()
}

// Metrics returns the daemon's metrics instance.
func (d *Daemon) Metrics() *Metrics {
	return d.metrics
}

// SocketPath returns the Unix socket path this daemon is bound to.
func (d *Daemon) SocketPath() string {
	return d.cfg.SocketPath
}
