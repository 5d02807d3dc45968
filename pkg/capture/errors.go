package capture

import (
	"errors"
	"fmt"
)

// Sentinel errors. A *DeviceError matches exactly one of the first three
// through errors.Is, depending on which step failed.
var (
	// ErrOpenFailed is returned when the device cannot be opened.
	ErrOpenFailed = errors.New("capture: open failed")

	// ErrStartFailed is returned when the device rejects the format or
	// refuses to start streaming.
	ErrStartFailed = errors.New("capture: start failed")

	// ErrCaptureFailed is returned when a frame cannot be read.
	ErrCaptureFailed = errors.New("capture: capture failed")

	// ErrNotConfigured is returned by CaptureOne before Configure succeeded.
	ErrNotConfigured = errors.New("capture: source not configured")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("capture: source closed")

	// ErrTimeout is returned when no frame arrived within CaptureTimeout.
	ErrTimeout = errors.New("capture: timed out waiting for frame")

	// ErrUnsupportedFormat is returned for pixel formats the device or this
	// package cannot handle.
	ErrUnsupportedFormat = errors.New("capture: unsupported pixel format")

	// ErrUnsupportedPlatform is returned by backends unavailable on this OS.
	ErrUnsupportedPlatform = errors.New("capture: backend not available on this platform")
)

// Op identifies the device operation that failed.
type Op string

const (
	OpOpen    Op = "open"
	OpStart   Op = "start"
	OpCapture Op = "capture"
)

// DeviceError carries the failing step, the device and the driver message.
type DeviceError struct {
	Op     Op
	Device string
	Err    error
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("capture [%s %s]: %v", e.Op, e.Device, e.Err)
}

// Unwrap returns the underlying device error.
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Is maps the operation onto ErrOpenFailed, ErrStartFailed or ErrCaptureFailed.
func (e *DeviceError) Is(target error) bool {
	switch target {
	case ErrOpenFailed:
		return e.Op == OpOpen
	case ErrStartFailed:
		return e.Op == OpStart
	case ErrCaptureFailed:
		return e.Op == OpCapture
	}
	return false
}

func openError(device string, err error) error {
	return &DeviceError{Op: OpOpen, Device: device, Err: err}
}

func startError(device string, err error) error {
	return &DeviceError{Op: OpStart, Device: device, Err: err}
}

func captureError(device string, err error) error {
	return &DeviceError{Op: OpCapture, Device: device, Err: err}
}
