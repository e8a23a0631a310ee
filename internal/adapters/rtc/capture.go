package rtc

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// Capture is the caller-owned local media handle. The coordinator and
// every peer session hold it by reference, never a copy.
type Capture struct {
	mu     sync.RWMutex
	tracks []webrtc.TrackLocal
}

func NewCapture(tracks ...webrtc.TrackLocal) *Capture {
	return &Capture{tracks: tracks}
}

func (c *Capture) Tracks() []webrtc.TrackLocal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]webrtc.TrackLocal, len(c.tracks))
	copy(out, c.tracks)
	return out
}

func (c *Capture) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tracks) > 0
}
