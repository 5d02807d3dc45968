package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-webcam/pkg/capture"
	"github.com/teslashibe/go-webcam/pkg/encoder"
)

// Loop is the push producer. It captures once per period until its
// context is cancelled. Device, format and encode errors are logged and
// counted; they never stop the loop.
type Loop struct {
	stage *Stage
	open  Opener
	opts  options

	mu  sync.Mutex
	src capture.Source

	tracker tracker
}

// NewLoop creates a push producer. The device is opened on the first tick.
func NewLoop(stage *Stage, open Opener, opts ...Option) *Loop {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	l := &Loop{
		stage: stage,
		open:  open,
		opts:  o,
	}
	l.tracker.status.Mode = ModePush
	return l
}

// Run captures immediately and then on every tick. It returns nil when
// ctx is cancelled, after closing the device.
func (l *Loop) Run(ctx context.Context) error {
	l.tracker.setRunning(true)
	defer l.tracker.setRunning(false)
	defer l.dropSource()

	l.opts.logger.Info("capture loop started", "period", l.opts.period, "format", l.stage.Format().String())

	ticker := time.NewTicker(l.opts.period)
	defer ticker.Stop()

	l.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			l.opts.logger.Info("capture loop stopped")
			return nil
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	src, err := l.source()
	if err != nil {
		l.fail(ctx, &StageError{Stage: StageOpen, Err: err})
		return
	}

	img, err := l.stage.Process(ctx, src)
	if err != nil {
		n := l.fail(ctx, err)
		if l.opts.reopenAfter > 0 && n >= l.opts.reopenAfter && n%l.opts.reopenAfter == 0 {
			l.opts.logger.Warn("dropping capture device after repeated failures", "failures", n)
			l.dropSource()
		}
		return
	}

	l.tracker.frame(img)
	l.opts.logger.Debug("frame cached", "id", img.ID, "bytes", img.Len())
}

func (l *Loop) source() (capture.Source, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.src != nil {
		return l.src, nil
	}
	src, err := l.open()
	if err != nil {
		return nil, err
	}
	l.src = src
	l.tracker.setOpen(true)
	l.opts.logger.Info("capture device opened", "backend", src.Name(), "format", src.Format().String())
	return src, nil
}

func (l *Loop) dropSource() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.src == nil {
		return
	}
	if err := l.src.Close(); err != nil {
		l.opts.logger.Warn("close capture device", "error", err)
	}
	l.src = nil
	l.tracker.setOpen(false)
}

// fail records err unless ctx was cancelled, and returns the consecutive
// failure count.
func (l *Loop) fail(ctx context.Context, err error) int {
	if ctx.Err() != nil {
		return 0
	}
	n := l.tracker.failure(err)

	// Log the first failure of a run loudly, then once per 50 ticks.
	if n == 1 || n%50 == 0 {
		l.opts.logger.Warn("capture failed", "error", err, "consecutive", n)
	} else {
		l.opts.logger.Debug("capture failed", "error", err, "consecutive", n)
	}
	if l.opts.onError != nil {
		l.opts.onError(err)
	}
	return n
}

// Latest returns the most recent cached image.
func (l *Loop) Latest() (*encoder.Image, bool) {
	return l.stage.Cache().Read()
}

// Cache returns the cache the loop writes to.
func (l *Loop) Cache() *Cache {
	return l.stage.Cache()
}

// Status returns a snapshot of loop health.
func (l *Loop) Status() Status {
	return l.tracker.snapshot(l.stage.Cache().Seq())
}

// Period returns the capture interval.
func (l *Loop) Period() time.Duration {
	return l.opts.period
}
