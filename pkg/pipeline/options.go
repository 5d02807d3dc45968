package pipeline

import (
	"log/slog"
	"time"
)

// DefaultPeriod is the push loop interval.
const DefaultPeriod = 100 * time.Millisecond

type options struct {
	period      time.Duration
	reopenAfter int
	logger      *slog.Logger
	onError     func(error)
}

func defaultOptions() options {
	return options{
		period:      DefaultPeriod,
		reopenAfter: 5,
		logger:      slog.Default(),
	}
}

// Option configures a producer.
type Option func(*options)

// WithPeriod sets the push loop interval. Ignored by OnDemand.
func WithPeriod(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.period = d
		}
	}
}

// WithReopenAfter drops the device after n consecutive capture failures so
// the next tick reopens it. 0 keeps the device open. Ignored by OnDemand,
// which always drops the device after a failure.
func WithReopenAfter(n int) Option {
	return func(o *options) {
		o.reopenAfter = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithErrorHandler registers fn to be called with every pipeline error.
// fn runs on the producer goroutine and must not block.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}
