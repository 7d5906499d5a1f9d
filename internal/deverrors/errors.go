// Package deverrors implements the structured error taxonomy named in
// spec.md §7: a small, closed set of Kinds a caller can branch on without
// parsing message text. It lives under internal/ (rather than at the module
// root, where it is re-exported from) so that internal/adapter and
// internal/executor can construct and inspect it without an import cycle
// back through the root devicemgr package — the same reason
// internal/interfaces exists.
//
// Directly modeled on the teacher's errors.go *ublk.Error (Op/Code/Msg/Inner,
// errors.Is/errors.As via Unwrap), substituting ModelPath/ModelType for the
// teacher's DevID/Queue fields and dropping Errno (no syscall boundary on
// the JSON wire protocol).
package deverrors

import (
	"errors"
	"fmt"
)

// Kind is the error taxonomy (spec.md §7): Protocol, Validation, Resource,
// Backend, Lifecycle.
type Kind string

const (
	KindProtocol   Kind = "protocol"
	KindValidation Kind = "validation"
	KindResource   Kind = "resource"
	KindBackend    Kind = "backend"
	KindLifecycle  Kind = "lifecycle"
)

// Error is a structured device-manager error carrying enough context to log
// usefully while still rendering as the plain message string the wire
// protocol puts under the response's "error" key.
type Error struct {
	Op        string // action or internal operation that failed
	ModelPath string
	ModelType string
	Kind      Kind
	Msg       string
	Inner     error

	// DeviceLoss marks a Backend-kind error as indicating the device itself
	// went away mid-call (spec.md §7: "the device remains open unless the
	// error indicates device loss"), as opposed to an ordinary inference
	// failure. The Executor checks this via IsDeviceLoss to decide whether
	// to mark itself degraded.
	DeviceLoss bool
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return string(e.Kind)
}

// Unwrap supports errors.Is/As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is compares by Kind, matching the teacher's code-comparison pattern.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == te.Kind
}

// New creates a structured error whose message is exactly what the wire
// protocol should echo back to the client (spec.md §7's error strings are
// literal; callers pass them through msg unmodified).
func New(op string, kind Kind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// NewResourceError builds the canonical "Model file not found: <path>" error.
func NewResourceError(op, modelPath string) *Error {
	return &Error{
		Op:        op,
		ModelPath: modelPath,
		Kind:      KindResource,
		Msg:       fmt.Sprintf("Model file not found: %s", modelPath),
	}
}

// NewValidationError builds an unknown-action/unknown-model_type/malformed-
// input error.
func NewValidationError(op, modelType, msg string) *Error {
	return &Error{Op: op, ModelType: modelType, Kind: KindValidation, Msg: msg}
}

// WrapBackend wraps an arbitrary backend failure, preserving its message
// verbatim (spec.md §7: Backend errors report "<backend message>").
func WrapBackend(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if be, ok := inner.(*Error); ok {
		return be
	}
	return &Error{Op: op, Kind: KindBackend, Msg: inner.Error(), Inner: inner}
}

// NewDeviceLossError builds the Backend-kind error a Device Adapter backend
// returns when it detects its underlying device resource has disappeared
// mid-call (this repository's stand-in: the HEF file backing a resident
// session vanishing between load and infer). Its message is the same fixed
// "Device unavailable" string the Executor uses once degraded, so the
// request that triggered the loss and every request that follows it report
// identically until a supervisor-initiated reopen clears the condition.
func NewDeviceLossError(op string, inner error) *Error {
	return &Error{Op: op, Kind: KindBackend, Msg: "Device unavailable", Inner: inner, DeviceLoss: true}
}

// ErrDeviceUnavailable and ErrShuttingDown are the two fixed Lifecycle/Backend
// strings the Executor returns once degraded or draining.
var (
	ErrDeviceUnavailable = &Error{Kind: KindBackend, Msg: "Device unavailable"}
	ErrShuttingDown      = &Error{Kind: KindLifecycle, Msg: "Device shutting down"}
)

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// IsDeviceLoss reports whether err is a *Error constructed by
// NewDeviceLossError (or otherwise flagged DeviceLoss), distinguishing it
// from an ordinary Backend-kind inference failure of the same Kind.
func IsDeviceLoss(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.DeviceLoss
	}
	return false
}
