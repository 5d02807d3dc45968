// Package pipeline runs capture, conversion and encoding into a frame cache.
//
// A deployment uses exactly one producer: Loop refreshes the cache in the
// background (push), OnDemand captures when asked (pull).
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-webcam/pkg/capture"
	"github.com/teslashibe/go-webcam/pkg/encoder"
	"github.com/teslashibe/go-webcam/pkg/framecache"
	"github.com/teslashibe/go-webcam/pkg/yuyv"
)

// Cache is the frame cache shared by producers and readers.
type Cache = framecache.Cache[*encoder.Image]

// NewCache returns an empty image cache.
func NewCache() *Cache {
	return framecache.New[*encoder.Image]()
}

// Stage names used in StageError.
const (
	StageOpen    = "open"
	StageCapture = "capture"
	StageConvert = "convert"
	StageEncode  = "encode"
)

// StageError records which step of the pipeline failed.
type StageError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// Opener opens and configures a capture source.
type Opener func() (capture.Source, error)

// DeviceOpener opens cfg's device and starts streaming in format f.
func DeviceOpener(cfg capture.Config, f capture.Format, logger *slog.Logger) Opener {
	return func() (capture.Source, error) {
		return capture.OpenConfigured(cfg, f, logger)
	}
}

// Stage turns one captured frame into a cached JPEG.
type Stage struct {
	cache    *Cache
	encoder  encoder.Encoder
	format   capture.Format
	overflow yuyv.Overflow
	now      func() time.Time
}

// NewStage creates a stage that expects frames in format f.
func NewStage(cache *Cache, enc encoder.Encoder, f capture.Format, overflow yuyv.Overflow) *Stage {
	return &Stage{
		cache:    cache,
		encoder:  enc,
		format:   f,
		overflow: overflow,
		now:      time.Now,
	}
}

// Cache returns the cache the stage writes to.
func (s *Stage) Cache() *Cache {
	return s.cache
}

// Format returns the expected frame format.
func (s *Stage) Format() capture.Format {
	return s.format
}

// Process captures one frame from src, converts and encodes it, and
// offers the result to the cache. The image is returned even if the cache
// already holds a newer one.
func (s *Stage) Process(ctx context.Context, src capture.Source) (*encoder.Image, error) {
	frame, err := src.CaptureOne(ctx)
	if err != nil {
		return nil, &StageError{Stage: StageCapture, Err: err}
	}
	capturedAt := s.now()

	if err := frame.CheckSize(s.format.Width, s.format.Height); err != nil {
		return nil, &StageError{Stage: StageConvert, Err: err}
	}
	raster, err := yuyv.Convert(frame, yuyv.WithOverflow(s.overflow))
	if err != nil {
		return nil, &StageError{Stage: StageConvert, Err: err}
	}

	img, err := s.encoder.Encode(raster, capturedAt)
	if err != nil {
		return nil, &StageError{Stage: StageEncode, Err: err}
	}

	s.cache.Write(img, capturedAt)
	return img, nil
}
