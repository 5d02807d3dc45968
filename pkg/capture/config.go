// Package capture reads raw frames from a video capture device.
//
// This package supports multiple backends:
//   - V4L2 (Linux) - webcams and CSI cameras via /dev/videoN
//   - Mock - synthetic colour bars for CI and development
//
// The backend is selected automatically based on platform, or can be
// explicitly specified via configuration.
package capture

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-webcam/pkg/yuyv"
)

// Backend represents the capture backend type.
type Backend string

const (
	// BackendAuto selects the best available backend for the platform.
	BackendAuto Backend = "auto"
	// BackendV4L2 uses Video4Linux2.
	BackendV4L2 Backend = "v4l2"
	// BackendMock generates synthetic frames.
	BackendMock Backend = "mock"
)

// PixelFormat names a raw pixel layout by its FourCC.
type PixelFormat string

// PixelFormatYUYV is packed 4:2:2, Y0 U Y1 V.
const PixelFormatYUYV PixelFormat = "YUYV"

// FourCC returns the V4L2 code for the format.
func (p PixelFormat) FourCC() (uint32, bool) {
	if len(p) != 4 {
		return 0, false
	}
	return uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16 | uint32(p[3])<<24, true
}

// Format is the fixed stream contract requested from the device.
type Format struct {
	Width       int         `yaml:"width" json:"width"`
	Height      int         `yaml:"height" json:"height"`
	FrameRate   int         `yaml:"frame_rate" json:"frame_rate"`
	PixelFormat PixelFormat `yaml:"pixel_format" json:"pixel_format"`
}

// DefaultFormat is 640x480 YUYV at 30 fps.
func DefaultFormat() Format {
	return Format{
		Width:       640,
		Height:      480,
		FrameRate:   30,
		PixelFormat: PixelFormatYUYV,
	}
}

// Validate checks that the format is one this package can deliver.
func (f Format) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("resolution must be positive, got %dx%d", f.Width, f.Height)
	}
	if f.FrameRate <= 0 {
		return fmt.Errorf("frame_rate must be positive, got %d", f.FrameRate)
	}
	if f.PixelFormat != PixelFormatYUYV {
		return fmt.Errorf("pixel_format %q: %w", f.PixelFormat, ErrUnsupportedFormat)
	}
	return nil
}

// FrameInterval is the time between frames at the configured rate.
func (f Format) FrameInterval() time.Duration {
	if f.FrameRate <= 0 {
		return 0
	}
	return time.Second / time.Duration(f.FrameRate)
}

// FrameBytes is the size of one raw frame.
func (f Format) FrameBytes() int {
	return yuyv.ExpectedLen(f.Width, f.Height)
}

// String returns e.g. "640x480 YUYV @30fps".
func (f Format) String() string {
	return fmt.Sprintf("%dx%d %s @%dfps", f.Width, f.Height, f.PixelFormat, f.FrameRate)
}

// Config holds device configuration.
type Config struct {
	// Backend specifies which capture backend to use.
	// Default: "auto" (v4l2 on Linux, mock elsewhere)
	Backend Backend `yaml:"backend" json:"backend"`

	// Device is the platform-specific device identifier, e.g. "/dev/video0".
	Device string `yaml:"device" json:"device"`

	// CaptureTimeout bounds a single CaptureOne call.
	// V4L2 waits in whole seconds, so it is rounded up.
	CaptureTimeout time.Duration `yaml:"capture_timeout" json:"capture_timeout"`

	// BufferCount is the number of kernel buffers to request (0 = driver default).
	BufferCount int `yaml:"buffer_count" json:"buffer_count"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		Device:         "/dev/video0",
		CaptureTimeout: 2 * time.Second,
		BufferCount:    4,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendV4L2, BackendMock:
	default:
		return fmt.Errorf("unsupported backend: %s", c.Backend)
	}
	if c.Device == "" && c.Backend != BackendMock {
		return fmt.Errorf("device must be set")
	}
	if c.CaptureTimeout <= 0 {
		return fmt.Errorf("capture_timeout must be positive, got %v", c.CaptureTimeout)
	}
	if c.BufferCount < 0 {
		return fmt.Errorf("buffer_count must not be negative, got %d", c.BufferCount)
	}
	return nil
}
