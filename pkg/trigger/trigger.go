// Package trigger detects discrete confirmation gestures (blink, nod) from
// the feature stream. Detectors are registered on a Registry so new gesture
// kinds can be added without touching the state machine's handling, which is
// closed over the Event contract.
package trigger

import (
	"time"

	"gazemouse/pkg/feature"
)

// Kind identifies a trigger gesture.
type Kind string

const (
	// Blink is a deliberate eye closure and reopen.
	Blink Kind = "blink"
	// Nod is a single down-and-up head pitch excursion.
	Nod Kind = "nod"
)

// Event is a detected trigger gesture.
type Event struct {
	Kind       Kind      `json:"kind"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence"`
}

// Detector recognizes one gesture kind from the per-frame feature stream.
// Detect is edge-triggered: it returns an event exactly once per qualifying
// physical gesture.
type Detector interface {
	// Kind returns the gesture kind this detector produces.
	Kind() Kind

	// Detect consumes one frame and reports whether a gesture completed on
	// this frame.
	Detect(f feature.Vector) (Event, bool)

	// Reset clears any rolling history, e.g. when a session restarts.
	Reset()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
