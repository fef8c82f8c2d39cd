package engine

import (
	"sync"

	"gazemouse/pkg/feature"
)

// mailbox is a single-slot latest-value handoff between the frame producer
// and the control loop. Offering never blocks: an unconsumed frame is simply
// overwritten, because stale gaze data is worse than no data.
type mailbox struct {
	mu    sync.Mutex
	value feature.Vector
	fresh bool
}

// offer stores the newest frame, replacing any undelivered one.
func (m *mailbox) offer(f feature.Vector) {
	m.mu.Lock()
	m.value = f
	m.fresh = true
	m.mu.Unlock()
}

// take removes and returns the pending frame, if one arrived since the last
// take.
func (m *mailbox) take() (feature.Vector, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.fresh {
		return feature.Vector{}, false
	}
	m.fresh = false
	return m.value, true
}
