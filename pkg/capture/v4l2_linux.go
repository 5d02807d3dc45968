//go:build linux

package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/blackjack/webcam"

	"github.com/teslashibe/go-webcam/pkg/yuyv"
)

// V4L2Source captures from a Video4Linux2 device.
type V4L2Source struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	cam       *webcam.Webcam
	format    Format
	streaming bool
	closed    bool

	// Stats
	framesCaptured atomic.Int64
	failures       atomic.Int64
}

func newV4L2Source(cfg Config, logger *slog.Logger) (Source, error) {
	cam, err := webcam.Open(cfg.Device)
	if err != nil {
		return nil, openError(cfg.Device, err)
	}

	return &V4L2Source{
		cfg:    cfg,
		logger: logger.With("backend", BackendV4L2, "device", cfg.Device),
		cam:    cam,
	}, nil
}

// Configure implements Source.
func (s *V4L2Source) Configure(f Format) error {
	if err := f.Validate(); err != nil {
		return startError(s.cfg.Device, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return startError(s.cfg.Device, ErrClosed)
	}
	if s.streaming {
		if f == s.format {
			return nil
		}
		return startError(s.cfg.Device, fmt.Errorf("already streaming %s", s.format))
	}

	code, _ := f.PixelFormat.FourCC()
	if _, ok := s.cam.GetSupportedFormats()[webcam.PixelFormat(code)]; !ok {
		return startError(s.cfg.Device, fmt.Errorf("%s: %w", f.PixelFormat, ErrUnsupportedFormat))
	}

	got, w, h, err := s.cam.SetImageFormat(webcam.PixelFormat(code), uint32(f.Width), uint32(f.Height))
	if err != nil {
		return startError(s.cfg.Device, err)
	}
	if uint32(got) != code || int(w) != f.Width || int(h) != f.Height {
		return startError(s.cfg.Device, fmt.Errorf("device negotiated %dx%d (fourcc %#x): %w",
			w, h, uint32(got), yuyv.ErrDimensionMismatch))
	}

	if err := s.cam.SetFramerate(float32(f.FrameRate)); err != nil {
		// Plenty of UVC devices only support their default rate.
		s.logger.Warn("could not set frame rate", "fps", f.FrameRate, "error", err)
	}

	if s.cfg.BufferCount > 0 {
		if err := s.cam.SetBufferCount(uint32(s.cfg.BufferCount)); err != nil {
			return startError(s.cfg.Device, err)
		}
	}

	if err := s.cam.StartStreaming(); err != nil {
		return startError(s.cfg.Device, err)
	}

	s.format = f
	s.streaming = true
	s.logger.Info("capture device streaming", "format", f.String())
	return nil
}

// CaptureOne implements Source.
func (s *V4L2Source) CaptureOne(ctx context.Context) (yuyv.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame, err := s.captureLocked(ctx)
	if err != nil {
		s.failures.Add(1)
		return yuyv.Frame{}, captureError(s.cfg.Device, err)
	}
	s.framesCaptured.Add(1)
	return frame, nil
}

func (s *V4L2Source) captureLocked(ctx context.Context) (yuyv.Frame, error) {
	if s.closed {
		return yuyv.Frame{}, ErrClosed
	}
	if !s.streaming {
		return yuyv.Frame{}, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return yuyv.Frame{}, err
	}

	if err := s.cam.WaitForFrame(timeoutSeconds(s.cfg)); err != nil {
		var timeout *webcam.Timeout
		if errors.As(err, &timeout) {
			return yuyv.Frame{}, ErrTimeout
		}
		return yuyv.Frame{}, err
	}

	buf, err := s.cam.ReadFrame()
	if err != nil {
		return yuyv.Frame{}, err
	}
	if len(buf) == 0 {
		return yuyv.Frame{}, fmt.Errorf("empty frame")
	}

	data := make([]byte, len(buf))
	copy(data, buf)
	return yuyv.Frame{Width: s.format.Width, Height: s.format.Height, Data: data}, nil
}

// Format implements Source.
func (s *V4L2Source) Format() Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// Name implements Source.
func (s *V4L2Source) Name() string {
	return string(BackendV4L2)
}

// Stats implements SourceWithStats.
func (s *V4L2Source) Stats() SourceStats {
	s.mu.Lock()
	streaming := s.streaming
	s.mu.Unlock()

	return SourceStats{
		FramesCaptured: s.framesCaptured.Load(),
		Failures:       s.failures.Load(),
		Streaming:      streaming,
		Backend:        s.Name(),
		Device:         s.cfg.Device,
	}
}

// Close implements Source.
func (s *V4L2Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.streaming {
		s.streaming = false
		if err := s.cam.StopStreaming(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.cam.Close(); err != nil {
		errs = append(errs, err)
	}

	s.logger.Info("capture device closed")
	return errors.Join(errs...)
}

// timeoutSeconds rounds the capture timeout up to whole seconds.
func timeoutSeconds(cfg Config) uint32 {
	secs := math.Ceil(cfg.CaptureTimeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	return uint32(secs)
}
