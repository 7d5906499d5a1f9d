// Package client implements the Hailo Device Manager client library
// (spec.md §4.8): a single in-flight-request-per-connection handle external
// per-domain services use to talk to the daemon over its Unix socket.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/teris-io/shortid"

	"github.com/gregm123456/hailo-device-manager/internal/wire"
)

// Client is a connected handle to the device manager daemon. Calls from
// multiple goroutines are serialized by an internal mutex, so at most one
// request is in flight on the connection; callers that want requests to run
// concurrently open multiple Clients.
type Client struct {
	mu          sync.Mutex
	conn        net.Conn
	socketPath  string
	maxBytes    int
	sidGen      *shortid.Shortid
}

// New returns an unconnected Client for socketPath.
func New(socketPath string) (*Client, error) {
	sid, err := shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		return nil, fmt.Errorf("init request-id generator: %w", err)
	}
	return &Client{
		socketPath: socketPath,
		maxBytes:   wire.DefaultMaxMessageBytes,
		sidGen:     sid,
	}, nil
}

// Connect dials the Unix socket. Calling Connect on an already-connected
// Client is a no-op unless Disconnect was called first.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.socketPath, err)
	}
	c.conn = conn
	return nil
}

// Disconnect closes the underlying socket. It is safe to call repeatedly.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) nextRequestID() string {
	id, err := c.sidGen.Generate()
	if err != nil {
		// shortid.Generate only fails on generator exhaustion, which does
		// not happen within a process lifetime at this call volume; fall
		// back to a fixed marker rather than propagate an error from every
		// call site.
		return "req"
	}
	return id
}

// roundTrip writes req as one frame and reads exactly one frame back. It
// holds c.mu for the duration, enforcing single-in-flight-per-connection.
func (c *Client) roundTrip(req wire.Request) (wire.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, fmt.Errorf("client not connected")
	}

	payload, err := wire.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if err := wire.WriteFrame(c.conn, payload); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}

	body, err := wire.ReadFrame(c.conn, c.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	defer wire.ReleaseFrameBuffer(body)

	var resp wire.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Ping sends a ping action.
func (c *Client) Ping() (wire.Response, error) {
	return c.roundTrip(wire.Request{Action: "ping", RequestID: c.nextRequestID()})
}

// Status requests the status payload over the socket (equivalent to the
// HTTP status mirror, but available without the optional HTTP server).
func (c *Client) Status() (wire.Response, error) {
	return c.roundTrip(wire.Request{Action: "status", RequestID: c.nextRequestID()})
}

// LoadModel requests a model be resident on the device. params may be nil.
func (c *Client) LoadModel(modelPath, modelType string, params json.RawMessage) (wire.Response, error) {
	return c.roundTrip(wire.Request{
		Action:      "load_model",
		RequestID:   c.nextRequestID(),
		ModelPath:   modelPath,
		ModelType:   modelType,
		ModelParams: params,
	})
}

// Infer runs one inference call, performing an implicit load server-side if
// the model is not yet resident.
func (c *Client) Infer(modelPath, modelType string, inputData json.RawMessage, params json.RawMessage) (wire.Response, error) {
	return c.roundTrip(wire.Request{
		Action:      "infer",
		RequestID:   c.nextRequestID(),
		ModelPath:   modelPath,
		ModelType:   modelType,
		InputData:   inputData,
		ModelParams: params,
	})
}

// UnloadModel releases a resident model. Idempotent: unloading a model that
// is not resident still returns success.
func (c *Client) UnloadModel(modelPath, modelType string) (wire.Response, error) {
	return c.roundTrip(wire.Request{
		Action:    "unload_model",
		RequestID: c.nextRequestID(),
		ModelPath: modelPath,
		ModelType: modelType,
	})
}
