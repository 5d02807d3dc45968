//go:build !linux

package capture

import "log/slog"

func newV4L2Source(cfg Config, logger *slog.Logger) (Source, error) {
	return nil, openError(cfg.Device, ErrUnsupportedPlatform)
}
