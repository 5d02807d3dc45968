package capture

import (
	"fmt"
	"log/slog"
	"runtime"
)

// Open opens the device described by cfg. The returned Source still needs
// Configure before it can capture. Failures are reported as ErrOpenFailed.
func Open(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, openError(cfg.Device, fmt.Errorf("invalid config: %w", err))
	}

	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = detectBestBackend()
	}

	logger.Info("opening capture device",
		"backend", backend,
		"device", cfg.Device,
		"timeout_ms", cfg.CaptureTimeout.Milliseconds(),
	)

	switch backend {
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	case BackendV4L2:
		return newV4L2Source(cfg, logger)
	default:
		return nil, openError(cfg.Device, fmt.Errorf("unsupported backend: %s", backend))
	}
}

// OpenConfigured opens the device and configures it in one step, closing the
// device again if Configure fails.
func OpenConfigured(cfg Config, f Format, logger *slog.Logger) (Source, error) {
	src, err := Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := src.Configure(f); err != nil {
		src.Close()
		return nil, err
	}
	return src, nil
}

// detectBestBackend returns the best available backend for the current platform.
func detectBestBackend() Backend {
	if runtime.GOOS == "linux" {
		return BackendV4L2
	}
	return BackendMock
}

// AvailableBackends returns the list of backends available on this platform.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMock}
	if runtime.GOOS == "linux" {
		backends = append(backends, BackendV4L2)
	}
	return backends
}
