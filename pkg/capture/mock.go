package capture

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-webcam/pkg/yuyv"
)

// colourBars are the eight 75% SMPTE bars as (Y, U, V).
var colourBars = [8][3]byte{
	{180, 128, 128}, // white
	{162, 44, 142},  // yellow
	{131, 156, 44},  // cyan
	{112, 72, 58},   // green
	{84, 184, 198},  // magenta
	{65, 100, 212},  // red
	{35, 212, 114},  // blue
	{16, 128, 128},  // black
}

// MockSource is a capture source for testing.
// It generates YUYV colour bars that scroll by one bar per frame.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	format    Format
	streaming bool
	closed    bool
	seq       int

	// Fault injection
	configureErr error
	captureErr   error
	failNext     int
	frameDelay   time.Duration
	frameFunc    func(seq int, f Format) []byte

	// Stats
	framesCaptured atomic.Int64
	failures       atomic.Int64
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithFrameDelay makes CaptureOne block for d, like a real device waiting
// for the next frame.
func WithFrameDelay(d time.Duration) MockSourceOption {
	return func(m *MockSource) {
		m.frameDelay = d
	}
}

// WithFrameFunc replaces the colour-bar generator.
func WithFrameFunc(fn func(seq int, f Format) []byte) MockSourceOption {
	return func(m *MockSource) {
		m.frameFunc = fn
	}
}

// WithConfigureError makes Configure fail with err.
func WithConfigureError(err error) MockSourceOption {
	return func(m *MockSource) {
		m.configureErr = err
	}
}

// NewMockSource creates a new mock capture source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FailNext makes the next n CaptureOne calls fail with err.
func (m *MockSource) FailNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
	m.captureErr = err
}

// Configure implements Source.
func (m *MockSource) Configure(f Format) error {
	if err := f.Validate(); err != nil {
		return startError(m.cfg.Device, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return startError(m.cfg.Device, ErrClosed)
	}
	if m.configureErr != nil {
		return startError(m.cfg.Device, m.configureErr)
	}

	m.format = f
	m.streaming = true
	m.logger.Info("mock capture source started", "format", f.String())
	return nil
}

// CaptureOne implements Source.
func (m *MockSource) CaptureOne(ctx context.Context) (yuyv.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	frame, err := m.captureLocked(ctx)
	if err != nil {
		m.failures.Add(1)
		return yuyv.Frame{}, captureError(m.cfg.Device, err)
	}
	m.framesCaptured.Add(1)
	return frame, nil
}

func (m *MockSource) captureLocked(ctx context.Context) (yuyv.Frame, error) {
	if m.closed {
		return yuyv.Frame{}, ErrClosed
	}
	if !m.streaming {
		return yuyv.Frame{}, ErrNotConfigured
	}
	if m.failNext > 0 {
		m.failNext--
		return yuyv.Frame{}, m.captureErr
	}

	if m.frameDelay > 0 {
		timer := time.NewTimer(m.frameDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return yuyv.Frame{}, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return yuyv.Frame{}, err
	}

	m.seq++
	var data []byte
	if m.frameFunc != nil {
		data = m.frameFunc(m.seq, m.format)
	} else {
		data = ColourBars(m.format.Width, m.format.Height, m.seq)
	}

	return yuyv.Frame{Width: m.format.Width, Height: m.format.Height, Data: data}, nil
}

// Format implements Source.
func (m *MockSource) Format() Format {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.format
}

// Name implements Source.
func (m *MockSource) Name() string {
	return string(BackendMock)
}

// Stats implements SourceWithStats.
func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	streaming := m.streaming
	m.mu.Unlock()

	return SourceStats{
		FramesCaptured: m.framesCaptured.Load(),
		Failures:       m.failures.Load(),
		Streaming:      streaming,
		Backend:        m.Name(),
		Device:         m.cfg.Device,
	}
}

// Closed reports whether Close was called.
func (m *MockSource) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close implements Source.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.streaming = false
	return nil
}

// ColourBars renders a YUYV frame of vertical bars shifted by offset bars.
func ColourBars(width, height, offset int) []byte {
	data := make([]byte, yuyv.ExpectedLen(width, height))
	groupsPerRow := (width + 1) / 2
	for i := 0; i+3 < len(data); i += 4 {
		x := ((i / 4) % groupsPerRow) * 2
		bar := colourBars[(x*8/width+offset)%8]
		data[i] = bar[0]
		data[i+1] = bar[1]
		data[i+2] = bar[0]
		data[i+3] = bar[2]
	}
	return data
}
