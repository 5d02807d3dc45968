// Package camera holds the deployment configuration for the webcam server.
// Values are fixed at startup; nothing here is renegotiated at runtime.
package camera

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-webcam/pkg/capture"
	"github.com/teslashibe/go-webcam/pkg/yuyv"
)

// Mode selects the producer discipline.
type Mode string

const (
	// ModePush runs a background loop that refreshes the cache every Period.
	ModePush Mode = "push"
	// ModePull captures synchronously when a client asks for it.
	ModePull Mode = "pull"
)

// Config holds all camera configuration parameters.
type Config struct {
	// === Device ===
	Backend     capture.Backend `yaml:"backend" json:"backend"`
	Device      string          `yaml:"device" json:"device"`
	BufferCount int             `yaml:"buffer_count" json:"buffer_count"`

	// CaptureTimeout bounds one blocking frame read.
	CaptureTimeout time.Duration `yaml:"capture_timeout" json:"capture_timeout"`

	// === Stream format ===
	Width       int    `yaml:"width" json:"width"`               // Frame width in pixels
	Height      int    `yaml:"height" json:"height"`             // Frame height in pixels
	Framerate   int    `yaml:"framerate" json:"framerate"`       // Target FPS
	PixelFormat string `yaml:"pixel_format" json:"pixel_format"` // FourCC, only YUYV

	// === Encoding ===
	Quality int `yaml:"quality" json:"quality"` // JPEG quality 1-100

	// Conversion controls out-of-range RGB values.
	// Values: "saturate", "wrap"
	Conversion string `yaml:"conversion" json:"conversion"`

	// === Producer ===
	// Mode is "push" (background loop) or "pull" (capture per request).
	Mode Mode `yaml:"mode" json:"mode"`

	// Period is the push loop interval.
	Period time.Duration `yaml:"period" json:"period"`

	// ReopenAfter closes and reopens the device after this many consecutive
	// capture failures in push mode. 0 disables reopening.
	ReopenAfter int `yaml:"reopen_after" json:"reopen_after"`
}

// Limits for validation.
const (
	MaxWidth     = 4096
	MaxHeight    = 2160
	MaxFramerate = 120
	MinPeriod    = 10 * time.Millisecond
)

// DefaultConfig returns the standard 640x480 YUYV @30fps push configuration.
func DefaultConfig() Config {
	return Config{
		Backend:        capture.BackendAuto,
		Device:         "/dev/video0",
		BufferCount:    4,
		CaptureTimeout: 2 * time.Second,

		Width:       640,
		Height:      480,
		Framerate:   30,
		PixelFormat: string(capture.PixelFormatYUYV),

		Quality:    85,
		Conversion: yuyv.Saturate.String(),

		Mode:        ModePush,
		Period:      100 * time.Millisecond,
		ReopenAfter: 5,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	// Device
	switch c.Backend {
	case capture.BackendAuto, capture.BackendV4L2, capture.BackendMock:
	default:
		errors = append(errors, "backend must be auto, v4l2, or mock")
	}
	if c.Device == "" && c.Backend != capture.BackendMock {
		errors = append(errors, "device is required")
	}
	if c.BufferCount < 0 || c.BufferCount > 32 {
		errors = append(errors, "buffer_count must be between 0 and 32")
	}
	if c.CaptureTimeout <= 0 {
		errors = append(errors, "capture_timeout must be positive")
	}

	// Resolution
	if c.Width < 2 || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 2 and %d", MaxWidth))
	}
	if c.Height < 1 || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 1 and %d", MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, fmt.Sprintf("framerate must be between 1 and %d", MaxFramerate))
	}
	if c.PixelFormat != string(capture.PixelFormatYUYV) {
		errors = append(errors, "pixel_format must be YUYV")
	}

	// Encoding
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}
	if c.Conversion != "saturate" && c.Conversion != "wrap" {
		errors = append(errors, "conversion must be saturate or wrap")
	}

	// Producer
	switch c.Mode {
	case ModePush:
		if c.Period < MinPeriod {
			errors = append(errors, fmt.Sprintf("period must be at least %v", MinPeriod))
		}
	case ModePull:
	default:
		errors = append(errors, "mode must be push or pull")
	}
	if c.ReopenAfter < 0 {
		errors = append(errors, "reopen_after must not be negative")
	}

	return errors
}

// CaptureConfig returns the device settings for capture.Open.
func (c *Config) CaptureConfig() capture.Config {
	return capture.Config{
		Backend:        c.Backend,
		Device:         c.Device,
		CaptureTimeout: c.CaptureTimeout,
		BufferCount:    c.BufferCount,
	}
}

// Format returns the stream format for Source.Configure.
func (c *Config) Format() capture.Format {
	return capture.Format{
		Width:       c.Width,
		Height:      c.Height,
		FrameRate:   c.Framerate,
		PixelFormat: capture.PixelFormat(c.PixelFormat),
	}
}

// Overflow returns the conversion policy.
func (c *Config) Overflow() yuyv.Overflow {
	return yuyv.ParseOverflow(c.Conversion)
}

// Capabilities describes what this build supports.
func Capabilities() map[string]interface{} {
	return map[string]interface{}{
		"backends":      capture.AvailableBackends(),
		"pixel_formats": []string{string(capture.PixelFormatYUYV)},
		"modes":         []Mode{ModePush, ModePull},
		"conversions":   []string{"saturate", "wrap"},
		"max_width":     MaxWidth,
		"max_height":    MaxHeight,
		"max_framerate": MaxFramerate,
		"presets":       PresetNames(),
	}
}
