package capture

import (
	"context"
	"io"

	"github.com/teslashibe/go-webcam/pkg/yuyv"
)

// Source is an open capture device.
//
// A Source has a single owner. Implementations serialise CaptureOne, but
// callers should not share one Source between independent capture paths.
type Source interface {
	// Configure sets resolution, frame rate and pixel format and starts
	// streaming. Failures are reported as ErrStartFailed.
	Configure(f Format) error

	// CaptureOne blocks until the next frame is available, at most one
	// frame interval in steady state and CaptureTimeout in the worst case.
	// Failures, including timeouts, are reported as ErrCaptureFailed.
	CaptureOne(ctx context.Context) (yuyv.Frame, error)

	// Format returns the configured format (zero before Configure).
	Format() Format

	// Name returns the backend name (e.g., "v4l2", "mock").
	Name() string

	// Close stops streaming and releases the device.
	// After Close, the source cannot be reconfigured.
	io.Closer
}

// SourceStats contains statistics about a capture source.
type SourceStats struct {
	// FramesCaptured is the total number of frames returned by CaptureOne.
	FramesCaptured int64 `json:"frames_captured"`

	// Failures is the number of failed CaptureOne calls.
	Failures int64 `json:"failures"`

	// Streaming indicates if the device is configured and streaming.
	Streaming bool `json:"streaming"`

	// Backend is the name of the capture backend.
	Backend string `json:"backend"`

	// Device is the device identifier.
	Device string `json:"device"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}
