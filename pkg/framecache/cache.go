// Package framecache holds the single most recent frame shared between one
// producer and any number of concurrent readers.
package framecache

import (
	"sync"
	"time"
)

// Entry is one cached value with its write metadata.
type Entry[T any] struct {
	Value      T
	Seq        uint64
	CapturedAt time.Time
}

// Cache is a single-slot store. Writes replace the slot wholesale; reads
// see either the previous or the next entry in full.
type Cache[T any] struct {
	mu    sync.RWMutex
	entry *Entry[T]
	seq   uint64
	clone func(T) T

	// Rejected writes (older than the cached entry)
	stale uint64

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}
}

// Option configures a Cache.
type Option[T any] func(*Cache[T])

// WithClone makes Read return clone(v) instead of the stored value.
// Use it when T has mutable internals.
func WithClone[T any](clone func(T) T) Option[T] {
	return func(c *Cache[T]) {
		c.clone = clone
	}
}

// New creates an empty cache.
func New[T any](opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{
		subs: make(map[chan struct{}]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Write stores v if it is not older than the cached entry and returns
// whether it was accepted.
func (c *Cache[T]) Write(v T, capturedAt time.Time) bool {
	c.mu.Lock()
	if c.entry != nil && capturedAt.Before(c.entry.CapturedAt) {
		c.stale++
		c.mu.Unlock()
		return false
	}
	c.seq++
	c.entry = &Entry[T]{Value: v, Seq: c.seq, CapturedAt: capturedAt}
	c.mu.Unlock()

	c.notify()
	return true
}

// Read returns the cached value, or false if nothing was ever written.
func (c *Cache[T]) Read() (T, bool) {
	e, ok := c.Entry()
	return e.Value, ok
}

// Entry returns the cached value with its sequence number and capture time.
func (c *Cache[T]) Entry() (Entry[T], bool) {
	c.mu.RLock()
	e := c.entry
	c.mu.RUnlock()

	if e == nil {
		return Entry[T]{}, false
	}
	out := *e
	if c.clone != nil {
		out.Value = c.clone(out.Value)
	}
	return out, true
}

// Seq returns the sequence number of the latest accepted write (0 if none).
func (c *Cache[T]) Seq() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seq
}

// Stale returns how many writes were rejected as older than the cache.
func (c *Cache[T]) Stale() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stale
}

// Subscribe returns a channel that receives a signal after each accepted
// write. Signals coalesce: a slow subscriber sees at most one pending signal.
// Call the returned func to unsubscribe.
func (c *Cache[T]) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	c.subMu.Lock()
	c.subs[ch] = struct{}{}
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, ch)
			c.subMu.Unlock()
		})
	}
}

func (c *Cache[T]) notify() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
