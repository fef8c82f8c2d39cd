package trigger

import (
	"sync"
	"time"

	"gazemouse/pkg/feature"
)

// Registry fans each frame out to all registered detectors and applies the
// shared gating rules: confidence threshold and per-kind refractory period.
// A gesture below the confidence threshold is dropped silently, not reported
// as an error.
type Registry struct {
	mu        sync.RWMutex
	detectors map[Kind]Detector
	lastFired map[Kind]time.Time

	// MinConfidence drops events below this confidence.
	MinConfidence float64

	// Refractory suppresses further events of a kind after one fires, so a
	// single physical gesture cannot trigger twice.
	Refractory time.Duration
}

// NewRegistry creates an empty registry with the given gating parameters.
func NewRegistry(minConfidence float64, refractory time.Duration) *Registry {
	return &Registry{
		detectors:     make(map[Kind]Detector),
		lastFired:     make(map[Kind]time.Time),
		MinConfidence: minConfidence,
		Refractory:    refractory,
	}
}

// Register adds a detector. A later registration for the same kind replaces
// the earlier one.
func (r *Registry) Register(d Detector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detectors[d.Kind()] = d
}

// Kinds returns the registered gesture kinds.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.detectors))
	for k := range r.detectors {
		kinds = append(kinds, k)
	}
	return kinds
}

// Process feeds one frame to every detector and returns the best qualifying
// event, if any. At most one event is emitted per frame.
func (r *Registry) Process(f feature.Vector) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best Event
	found := false

	for kind, d := range r.detectors {
		ev, ok := d.Detect(f)
		if !ok {
			continue
		}
		if ev.Confidence < r.MinConfidence {
			continue
		}
		if last, fired := r.lastFired[kind]; fired && ev.Timestamp.Sub(last) < r.Refractory {
			continue
		}
		if !found || ev.Confidence > best.Confidence {
			best = ev
			found = true
		}
	}

	if found {
		r.lastFired[best.Kind] = best.Timestamp
	}
	return best, found
}

// Reset clears detector histories and refractory state.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.detectors {
		d.Reset()
	}
	r.lastFired = make(map[Kind]time.Time)
}
