package pipeline

import (
	"context"
	"sync"

	"github.com/teslashibe/go-webcam/pkg/capture"
	"github.com/teslashibe/go-webcam/pkg/encoder"
)

// OnDemand is the pull producer. Each Trigger captures one frame
// synchronously. Concurrent triggers are serialised.
type OnDemand struct {
	stage *Stage
	open  Opener
	opts  options

	// mu serialises Trigger and guards src.
	mu  sync.Mutex
	src capture.Source

	tracker tracker
}

// NewOnDemand creates a pull producer. The device is opened on the first
// Trigger and kept open until a failure or Close.
func NewOnDemand(stage *Stage, open Opener, opts ...Option) *OnDemand {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	p := &OnDemand{
		stage: stage,
		open:  open,
		opts:  o,
	}
	p.tracker.status.Mode = ModePull
	p.tracker.status.Running = true
	return p
}

// Trigger captures, encodes and caches one frame and returns it.
// On failure the device is closed so the next Trigger reopens it.
func (p *OnDemand) Trigger(ctx context.Context) (*encoder.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.src == nil {
		src, err := p.open()
		if err != nil {
			return nil, p.fail(&StageError{Stage: StageOpen, Err: err})
		}
		p.src = src
		p.tracker.setOpen(true)
		p.opts.logger.Info("capture device opened", "backend", src.Name(), "format", src.Format().String())
	}

	img, err := p.stage.Process(ctx, p.src)
	if err != nil {
		p.closeLocked()
		return nil, p.fail(err)
	}

	p.tracker.frame(img)
	return img, nil
}

func (p *OnDemand) fail(err error) error {
	n := p.tracker.failure(err)
	p.opts.logger.Warn("capture failed", "error", err, "consecutive", n)
	if p.opts.onError != nil {
		p.opts.onError(err)
	}
	return err
}

func (p *OnDemand) closeLocked() {
	if p.src == nil {
		return
	}
	if err := p.src.Close(); err != nil {
		p.opts.logger.Warn("close capture device", "error", err)
	}
	p.src = nil
	p.tracker.setOpen(false)
}

// Close releases the device.
func (p *OnDemand) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	p.tracker.setRunning(false)
	return nil
}

// Latest returns the image from the most recent successful Trigger.
func (p *OnDemand) Latest() (*encoder.Image, bool) {
	return p.stage.Cache().Read()
}

// Cache returns the cache OnDemand writes to.
func (p *OnDemand) Cache() *Cache {
	return p.stage.Cache()
}

// Status returns a snapshot of producer health.
func (p *OnDemand) Status() Status {
	return p.tracker.snapshot(p.stage.Cache().Seq())
}
