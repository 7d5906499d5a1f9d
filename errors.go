package devicemgr

import "github.com/gregm123456/hailo-device-manager/internal/deverrors"

// ErrorKind and Error are re-exported from internal/deverrors for external
// callers (and this package's own errors_test.go) that want the structured
// taxonomy without importing internal/deverrors directly. internal/adapter
// and internal/executor construct and inspect these same types directly
// against internal/deverrors, since they cannot import this root package
// without an import cycle.
type (
	ErrorKind = deverrors.Kind
	Error     = deverrors.Error
)

const (
	KindProtocol   = deverrors.KindProtocol
	KindValidation = deverrors.KindValidation
	KindResource   = deverrors.KindResource
	KindBackend    = deverrors.KindBackend
	KindLifecycle  = deverrors.KindLifecycle
)

// ErrDeviceUnavailable and ErrShuttingDown are the two fixed Lifecycle/Backend
// strings the Executor returns once degraded or draining.
var (
	ErrDeviceUnavailable = deverrors.ErrDeviceUnavailable
	ErrShuttingDown      = deverrors.ErrShuttingDown
)

// NewError creates a structured error whose message is exactly what the wire
// protocol should echo back to the client.
func NewError(op string, kind ErrorKind, msg string) *Error {
	return deverrors.New(op, kind, msg)
}

// NewResourceError builds the canonical "Model file not found: <path>" error.
func NewResourceError(op, modelPath string) *Error {
	return deverrors.NewResourceError(op, modelPath)
}

// NewValidationError builds an unknown-action/unknown-model_type error.
func NewValidationError(op, modelType, msg string) *Error {
	return deverrors.NewValidationError(op, modelType, msg)
}

// WrapBackendError wraps an arbitrary backend failure, preserving its
// message verbatim.
func WrapBackendError(op string, inner error) *Error {
	return deverrors.WrapBackend(op, inner)
}

// NewDeviceLossError builds the error a Device Adapter backend returns when
// it detects its underlying device resource has gone away mid-call.
func NewDeviceLossError(op string, inner error) *Error {
	return deverrors.NewDeviceLossError(op, inner)
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return deverrors.IsKind(err, kind)
}

// IsDeviceLoss reports whether err is a device-loss flavored Backend error.
func IsDeviceLoss(err error) bool {
	return deverrors.IsDeviceLoss(err)
}
