package pipeline

import (
	"sync"
	"time"

	"github.com/teslashibe/go-webcam/pkg/encoder"
)

// Producer modes.
const (
	ModePush = "push"
	ModePull = "pull"
)

// Status is a snapshot of producer health.
type Status struct {
	Mode                string    `json:"mode"`
	Running             bool      `json:"running"`
	DeviceOpen          bool      `json:"device_open"`
	Frames              uint64    `json:"frames"`
	Errors              uint64    `json:"errors"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
	LastErrorAt         time.Time `json:"last_error_at,omitempty"`
	LastCapture         time.Time `json:"last_capture,omitempty"`
	Seq                 uint64    `json:"seq"`
}

// Producer is implemented by Loop and OnDemand.
type Producer interface {
	Latest() (*encoder.Image, bool)
	Status() Status
	Cache() *Cache
}

type tracker struct {
	mu     sync.Mutex
	status Status
}

func (t *tracker) frame(img *encoder.Image) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Frames++
	t.status.ConsecutiveFailures = 0
	t.status.LastCapture = img.CapturedAt
}

// failure records err and returns the consecutive failure count.
func (t *tracker) failure(err error) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Errors++
	t.status.ConsecutiveFailures++
	t.status.LastError = err.Error()
	t.status.LastErrorAt = time.Now()
	return t.status.ConsecutiveFailures
}

func (t *tracker) setOpen(open bool) {
	t.mu.Lock()
	t.status.DeviceOpen = open
	t.mu.Unlock()
}

func (t *tracker) setRunning(running bool) {
	t.mu.Lock()
	t.status.Running = running
	t.mu.Unlock()
}

func (t *tracker) snapshot(seq uint64) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.status
	s.Seq = seq
	return s
}
