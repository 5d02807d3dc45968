package hub

import (
	"context"

	"github.com/teslashibe/go-webcam/pkg/encoder"
	"github.com/teslashibe/go-webcam/pkg/framecache"
)

// StreamFrames broadcasts every image written to cache as a binary
// message until ctx is cancelled. Frames written while nobody is
// connected are skipped.
func (h *Hub) StreamFrames(ctx context.Context, cache *framecache.Cache[*encoder.Image]) error {
	updates, cancel := cache.Subscribe()
	defer cancel()

	var lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-updates:
			if h.ClientCount() == 0 {
				continue
			}
			e, ok := cache.Entry()
			if !ok || e.Seq == lastSeq {
				continue
			}
			lastSeq = e.Seq
			h.BroadcastBinary(e.Value.Bytes())
		}
	}
}
