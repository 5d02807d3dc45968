package camera

import (
	"time"

	"github.com/teslashibe/go-webcam/pkg/capture"
)

// Preset names for common configurations
const (
	PresetDefault  = "default"
	PresetQVGA     = "qvga"
	Preset720p     = "720p"
	PresetOnDemand = "ondemand"
	PresetMock     = "mock"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault:  DefaultConfig(),
		PresetQVGA:     QVGAConfig(),
		Preset720p:     HD720Config(),
		PresetOnDemand: OnDemandConfig(),
		PresetMock:     MockConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetQVGA,
		Preset720p,
		PresetOnDemand,
		PresetMock,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	presets := Presets()
	if cfg, ok := presets[name]; ok {
		return &cfg
	}
	return nil
}

// QVGAConfig returns 320x240 for slow links and old webcams.
func QVGAConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 320
	cfg.Height = 240
	return cfg
}

// HD720Config returns 720p. Most UVC cameras only deliver
// uncompressed YUYV at this size at around 10 fps.
func HD720Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	cfg.Framerate = 10
	cfg.Period = 200 * time.Millisecond
	return cfg
}

// OnDemandConfig captures only when /capture is requested.
func OnDemandConfig() Config {
	cfg := DefaultConfig()
	cfg.Mode = ModePull
	return cfg
}

// MockConfig uses the synthetic colour-bar source.
func MockConfig() Config {
	cfg := DefaultConfig()
	cfg.Backend = capture.BackendMock
	cfg.Device = "mock0"
	return cfg
}
