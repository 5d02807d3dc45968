package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/go-webcam/pkg/yuyv"
)

func TestMockSource_ConfigureCapture(t *testing.T) {
	src := NewMockSource(DefaultConfig(), nil)
	defer src.Close()

	ctx := context.Background()

	// Capturing before Configure fails
	_, err := src.CaptureOne(ctx)
	if !errors.Is(err, ErrCaptureFailed) || !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected not-configured capture failure, got %v", err)
	}

	f := DefaultFormat()
	if err := src.Configure(f); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if src.Format() != f {
		t.Errorf("expected format %v, got %v", f, src.Format())
	}

	frame, err := src.CaptureOne(ctx)
	if err != nil {
		t.Fatalf("CaptureOne failed: %v", err)
	}
	if frame.Width != 640 || frame.Height != 480 {
		t.Errorf("expected 640x480, got %dx%d", frame.Width, frame.Height)
	}
	if err := frame.Validate(); err != nil {
		t.Errorf("mock produced invalid frame: %v", err)
	}

	stats := src.Stats()
	if stats.FramesCaptured != 1 || stats.Failures != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if !stats.Streaming || stats.Backend != "mock" {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestMockSource_ColourBarsConvert(t *testing.T) {
	src := NewMockSource(DefaultConfig(), nil)
	if err := src.Configure(Format{Width: 16, Height: 2, FrameRate: 30, PixelFormat: PixelFormatYUYV}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	frame, err := src.CaptureOne(context.Background())
	if err != nil {
		t.Fatalf("CaptureOne failed: %v", err)
	}

	r, err := yuyv.Convert(frame)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	// First frame is offset by one bar: leftmost bar is yellow (high R+G, low B).
	red, green, blue := r.RGB(0, 0)
	if red < 150 || green < 150 || blue > 60 {
		t.Errorf("expected yellow, got (%d,%d,%d)", red, green, blue)
	}
}

func TestMockSource_FailNext(t *testing.T) {
	src := NewMockSource(DefaultConfig(), nil)
	src.Configure(DefaultFormat())

	boom := errors.New("usb reset")
	src.FailNext(2, boom)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := src.CaptureOne(ctx)
		if !errors.Is(err, ErrCaptureFailed) {
			t.Errorf("call %d: expected ErrCaptureFailed, got %v", i, err)
		}
		if !errors.Is(err, boom) {
			t.Errorf("call %d: expected device message to be kept, got %v", i, err)
		}
	}

	if _, err := src.CaptureOne(ctx); err != nil {
		t.Errorf("expected recovery, got %v", err)
	}
}

func TestMockSource_ConfigureError(t *testing.T) {
	src := NewMockSource(DefaultConfig(), nil, WithConfigureError(errors.New("EBUSY")))

	err := src.Configure(DefaultFormat())
	if !errors.Is(err, ErrStartFailed) {
		t.Errorf("expected ErrStartFailed, got %v", err)
	}
}

func TestMockSource_FrameDelayHonoursContext(t *testing.T) {
	src := NewMockSource(DefaultConfig(), nil, WithFrameDelay(time.Second))
	src.Configure(DefaultFormat())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := src.CaptureOne(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if !errors.Is(err, ErrCaptureFailed) {
		t.Errorf("expected ErrCaptureFailed, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("CaptureOne ignored context cancellation")
	}
}

func TestMockSource_Close(t *testing.T) {
	src := NewMockSource(DefaultConfig(), nil)
	src.Configure(DefaultFormat())

	if err := src.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !src.Closed() {
		t.Error("expected closed")
	}

	if _, err := src.CaptureOne(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := src.Configure(DefaultFormat()); !errors.Is(err, ErrStartFailed) {
		t.Errorf("expected ErrStartFailed after close, got %v", err)
	}
}
