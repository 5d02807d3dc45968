// Package camserve wires the capture pipeline to the HTTP server.
package camserve

import (
	"strings"

	"github.com/teslashibe/go-webcam/internal/config"
	"github.com/teslashibe/go-webcam/pkg/camera"
)

// Config holds all configuration for the camserve application.
// Flag parsing is done in cmd/camserve/main.go; this struct is data only.
type Config struct {
	// Debug enables debug logging.
	Debug bool

	// LogLevel is used when Debug is off.
	LogLevel string

	// Addr is the HTTP listen address.
	Addr string

	// MJPEGAddr enables the multipart stream on its own listener.
	// Empty disables it. Push mode only.
	MJPEGAddr string

	// Preset is the camera preset the config started from.
	Preset string

	// Camera holds device, format and producer settings.
	Camera camera.Config

	// Motion enables /api/motion.
	Motion bool

	// InlineFrames embeds JPEG data in /ws/events frame messages.
	InlineFrames bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Addr:     ":" + config.DefaultPort,
		Preset:   camera.PresetDefault,
		Camera:   camera.DefaultConfig(),
		Motion:   true,
	}
}

// LoadEnvConfig applies environment overrides.
// Call this before applying explicit flags so flags win.
func (c *Config) LoadEnvConfig() {
	c.Camera.Device = config.CameraDevice(c.Camera.Device)
	if port := config.Port(""); port != "" {
		c.Addr = ":" + port
	}
	c.Camera.Mode = camera.Mode(config.Mode(string(c.Camera.Mode)))
	c.LogLevel = config.String("LOG_LEVEL", c.LogLevel)
	c.MJPEGAddr = config.String("CAMSERVE_MJPEG_ADDR", c.MJPEGAddr)
	c.Motion = config.Bool("CAMSERVE_MOTION", c.Motion)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return &ConfigError{Field: "Addr", Message: "listen address is required"}
	}
	if errs := c.Camera.Validate(); len(errs) > 0 {
		return &ConfigError{Field: "Camera", Message: "invalid camera config: " + strings.Join(errs, "; ")}
	}
	if c.MJPEGAddr != "" && c.Camera.Mode != camera.ModePush {
		return &ConfigError{Field: "MJPEGAddr", Message: "mjpeg stream requires push mode"}
	}
	if c.MJPEGAddr != "" && c.MJPEGAddr == c.Addr {
		return &ConfigError{Field: "MJPEGAddr", Message: "mjpeg stream needs its own address"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
