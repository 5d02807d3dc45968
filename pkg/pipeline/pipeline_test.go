package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-webcam/pkg/capture"
	"github.com/teslashibe/go-webcam/pkg/encoder"
	"github.com/teslashibe/go-webcam/pkg/yuyv"
)

var testFormat = capture.Format{
	Width:       16,
	Height:      8,
	FrameRate:   30,
	PixelFormat: capture.PixelFormatYUYV,
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMock(t *testing.T, opts ...capture.MockSourceOption) *capture.MockSource {
	t.Helper()
	cfg := capture.Config{Backend: capture.BackendMock, Device: "mock0", CaptureTimeout: time.Second}
	m := capture.NewMockSource(cfg, quietLogger(), opts...)
	if err := m.Configure(testFormat); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	return m
}

func newStage(f capture.Format) *Stage {
	return NewStage(NewCache(), encoder.NewJPEGEncoder(80), f, yuyv.Saturate)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestStage_Process(t *testing.T) {
	stage := newStage(testFormat)
	src := newMock(t)

	if _, ok := stage.Cache().Read(); ok {
		t.Fatal("cache should start empty")
	}

	img, err := stage.Process(context.Background(), src)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if img.Width != 16 || img.Height != 8 {
		t.Errorf("image = %dx%d, want 16x8", img.Width, img.Height)
	}
	data := img.Bytes()
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("image is not a JPEG")
	}

	cached, ok := stage.Cache().Read()
	if !ok || cached != img {
		t.Error("processed image not cached")
	}
}

func TestStage_Errors(t *testing.T) {
	tests := []struct {
		name      string
		format    capture.Format
		opts      []capture.MockSourceOption
		failNext  bool
		wantStage string
		wantErr   error
	}{
		{
			name:      "capture failure",
			format:    testFormat,
			failNext:  true,
			wantStage: StageCapture,
			wantErr:   capture.ErrCaptureFailed,
		},
		{
			name:      "dimension mismatch",
			format:    capture.Format{Width: 32, Height: 16, FrameRate: 30, PixelFormat: capture.PixelFormatYUYV},
			wantStage: StageConvert,
			wantErr:   yuyv.ErrDimensionMismatch,
		},
		{
			name:   "short frame",
			format: testFormat,
			opts: []capture.MockSourceOption{capture.WithFrameFunc(func(int, capture.Format) []byte {
				return make([]byte, 12)
			})},
			wantStage: StageConvert,
			wantErr:   yuyv.ErrMalformedFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := newStage(tt.format)
			src := newMock(t, tt.opts...)
			if tt.failNext {
				src.FailNext(1, errors.New("EIO"))
			}

			_, err := stage.Process(context.Background(), src)
			var se *StageError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v, want *StageError", err)
			}
			if se.Stage != tt.wantStage {
				t.Errorf("Stage = %q, want %q", se.Stage, tt.wantStage)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.wantErr)
			}
			if _, ok := stage.Cache().Read(); ok {
				t.Error("failed stage must not write the cache")
			}
		})
	}
}

func TestLoop_RetriesAfterOpenFailure(t *testing.T) {
	var opens atomic.Int32
	src := newMock(t)
	opener := func() (capture.Source, error) {
		if opens.Add(1) <= 3 {
			return nil, &capture.DeviceError{Op: capture.OpOpen, Device: "/dev/video0", Err: errors.New("no such device")}
		}
		return src, nil
	}

	var (
		mu     sync.Mutex
		failed []error
	)
	loop := NewLoop(newStage(testFormat), opener,
		WithPeriod(5*time.Millisecond), WithLogger(quietLogger()),
		WithErrorHandler(func(err error) {
			mu.Lock()
			failed = append(failed, err)
			mu.Unlock()
		}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool {
		_, ok := loop.Latest()
		return ok
	})

	mu.Lock()
	if len(failed) < 3 {
		t.Errorf("reported %d failures, want >= 3", len(failed))
	}
	for _, err := range failed {
		if !errors.Is(err, capture.ErrOpenFailed) {
			t.Errorf("reported %v, want ErrOpenFailed", err)
		}
		var se *StageError
		if !errors.As(err, &se) || se.Stage != StageOpen {
			t.Errorf("reported %v, want open StageError", err)
		}
	}
	mu.Unlock()

	st := loop.Status()
	if st.Mode != ModePush || !st.Running || !st.DeviceOpen {
		t.Errorf("status = %+v", st)
	}
	if st.Errors < 3 {
		t.Errorf("Errors = %d, want >= 3", st.Errors)
	}
	if opens.Load() < 4 {
		t.Errorf("opens = %d, want >= 4", opens.Load())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if !src.Closed() {
		t.Error("device not closed on shutdown")
	}
	st = loop.Status()
	if st.Running || st.DeviceOpen {
		t.Errorf("status after stop = %+v", st)
	}
}

func TestLoop_MissingDeviceKeepsRunning(t *testing.T) {
	cfg := capture.DefaultConfig()
	cfg.Backend = capture.BackendV4L2
	cfg.Device = "/dev/video-does-not-exist"

	var (
		mu       sync.Mutex
		reported []error
	)
	loop := NewLoop(newStage(testFormat), DeviceOpener(cfg, testFormat, quietLogger()),
		WithPeriod(5*time.Millisecond), WithLogger(quietLogger()),
		WithErrorHandler(func(err error) {
			mu.Lock()
			reported = append(reported, err)
			mu.Unlock()
		}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool {
		return loop.Status().Errors >= 3
	})

	st := loop.Status()
	if !st.Running || st.DeviceOpen {
		t.Errorf("status = %+v", st)
	}
	if _, ok := loop.Latest(); ok {
		t.Error("no frame should be cached without a device")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(reported) < 3 {
		t.Fatalf("reported %d failures, want >= 3", len(reported))
	}
	for _, err := range reported {
		if !errors.Is(err, capture.ErrOpenFailed) {
			t.Errorf("reported %v, want ErrOpenFailed", err)
		}
	}
}

func TestLoop_ReopensAfterRepeatedFailures(t *testing.T) {
	bad := newMock(t)
	bad.FailNext(1000, errors.New("EIO"))
	good := newMock(t)

	var opens atomic.Int32
	opener := func() (capture.Source, error) {
		if opens.Add(1) == 1 {
			return bad, nil
		}
		return good, nil
	}

	var handled atomic.Int32
	loop := NewLoop(newStage(testFormat), opener,
		WithPeriod(5*time.Millisecond),
		WithReopenAfter(2),
		WithLogger(quietLogger()),
		WithErrorHandler(func(error) { handled.Add(1) }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	waitFor(t, 2*time.Second, func() bool {
		_, ok := loop.Latest()
		return ok
	})

	if !bad.Closed() {
		t.Error("failing device was not dropped")
	}
	if opens.Load() != 2 {
		t.Errorf("opens = %d, want 2", opens.Load())
	}
	if handled.Load() < 2 {
		t.Errorf("error handler called %d times, want >= 2", handled.Load())
	}
	if st := loop.Status(); st.ConsecutiveFailures != 0 || st.Frames == 0 {
		t.Errorf("status = %+v", st)
	}
}

func TestLoop_KeepsCacheFresh(t *testing.T) {
	src := newMock(t)
	loop := NewLoop(newStage(testFormat), func() (capture.Source, error) { return src, nil },
		WithPeriod(5*time.Millisecond), WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	waitFor(t, 2*time.Second, func() bool { return loop.Status().Seq >= 3 })

	e, ok := loop.Cache().Entry()
	if !ok {
		t.Fatal("cache empty")
	}
	if e.Value.CapturedAt != e.CapturedAt {
		t.Error("entry time does not match image capture time")
	}
}

func TestLoop_Period(t *testing.T) {
	loop := NewLoop(newStage(testFormat), nil)
	if loop.Period() != DefaultPeriod {
		t.Errorf("Period() = %v, want %v", loop.Period(), DefaultPeriod)
	}
	loop = NewLoop(newStage(testFormat), nil, WithPeriod(-1))
	if loop.Period() != DefaultPeriod {
		t.Errorf("negative period accepted: %v", loop.Period())
	}
}

func TestOnDemand_Trigger(t *testing.T) {
	var opens atomic.Int32
	src := newMock(t)
	p := NewOnDemand(newStage(testFormat), func() (capture.Source, error) {
		opens.Add(1)
		return src, nil
	}, WithLogger(quietLogger()))

	if _, ok := p.Latest(); ok {
		t.Fatal("Latest() before any trigger should be empty")
	}

	first, err := p.Trigger(context.Background())
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	second, err := p.Trigger(context.Background())
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if first.ID == second.ID {
		t.Error("triggers returned the same image")
	}

	latest, ok := p.Latest()
	if !ok || latest != second {
		t.Error("Latest() is not the last triggered image")
	}
	if opens.Load() != 1 {
		t.Errorf("opens = %d, want 1", opens.Load())
	}

	st := p.Status()
	if st.Mode != ModePull || st.Frames != 2 || !st.DeviceOpen {
		t.Errorf("status = %+v", st)
	}

	p.Close()
	if !src.Closed() {
		t.Error("Close did not release the device")
	}
}

func TestOnDemand_FailureReopens(t *testing.T) {
	bad := newMock(t)
	bad.FailNext(1, errors.New("EIO"))
	good := newMock(t)

	var opens atomic.Int32
	p := NewOnDemand(newStage(testFormat), func() (capture.Source, error) {
		if opens.Add(1) == 1 {
			return bad, nil
		}
		return good, nil
	}, WithLogger(quietLogger()))

	_, err := p.Trigger(context.Background())
	if !errors.Is(err, capture.ErrCaptureFailed) {
		t.Fatalf("Trigger() error = %v, want ErrCaptureFailed", err)
	}
	if !bad.Closed() {
		t.Error("device not closed after failure")
	}
	if p.Status().DeviceOpen {
		t.Error("status reports open device after failure")
	}

	if _, err := p.Trigger(context.Background()); err != nil {
		t.Fatalf("second Trigger() error = %v", err)
	}
	if opens.Load() != 2 {
		t.Errorf("opens = %d, want 2", opens.Load())
	}
}

func TestOnDemand_OpenFailure(t *testing.T) {
	openErr := errors.New("permission denied")
	p := NewOnDemand(newStage(testFormat), func() (capture.Source, error) {
		return nil, openErr
	}, WithLogger(quietLogger()))

	_, err := p.Trigger(context.Background())
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageOpen {
		t.Fatalf("error = %v, want open StageError", err)
	}
	if !errors.Is(err, openErr) {
		t.Error("open error not wrapped")
	}
	if _, ok := p.Latest(); ok {
		t.Error("cache written after failed trigger")
	}
	if st := p.Status(); st.Errors != 1 || st.LastError == "" {
		t.Errorf("status = %+v", st)
	}
}

func TestOnDemand_ConcurrentTriggers(t *testing.T) {
	src := newMock(t, capture.WithFrameDelay(time.Millisecond))
	p := NewOnDemand(newStage(testFormat), func() (capture.Source, error) { return src, nil },
		WithLogger(quietLogger()))

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Trigger(context.Background()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Trigger() error = %v", err)
	}
	if got := src.Stats().FramesCaptured; got != n {
		t.Errorf("FramesCaptured = %d, want %d", got, n)
	}
	if st := p.Status(); st.Frames != n || st.Seq != n {
		t.Errorf("status = %+v", st)
	}
}

func TestStageError(t *testing.T) {
	err := &StageError{Stage: StageEncode, Err: encoder.ErrEmptyRaster}
	if err.Error() != "pipeline: encode: encoder: empty or short raster" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, encoder.ErrEmptyRaster) {
		t.Error("Unwrap does not expose the cause")
	}
}

func TestProducerInterface(t *testing.T) {
	var _ Producer = (*Loop)(nil)
	var _ Producer = (*OnDemand)(nil)
}
