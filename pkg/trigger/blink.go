package trigger

import (
	"time"

	"gazemouse/pkg/feature"
)

// BlinkConfig holds the tunable blink detection parameters. Openness values
// are eye aspect ratios, as produced by the landmark extractor.
type BlinkConfig struct {
	// ClosedThreshold: openness below this counts as eyes closed.
	ClosedThreshold float64

	// OpenThreshold: openness above this counts as eyes open again. Kept
	// above ClosedThreshold for hysteresis so a value hovering at the
	// boundary cannot oscillate the state.
	OpenThreshold float64

	// MinDuration rejects closures shorter than this (sensor glitches).
	MinDuration time.Duration

	// MaxDuration rejects closures longer than this. A slow, gradual eye
	// closure is fatigue, not a deliberate blink.
	MaxDuration time.Duration

	// MaxCrossingsPerSecond suppresses flutter: a deliberate blink produces
	// exactly two threshold crossings in its surrounding second, so a
	// higher rate marks the burst as noise.
	MaxCrossingsPerSecond int
}

// DefaultBlinkConfig returns the recommended blink parameters.
func DefaultBlinkConfig() BlinkConfig {
	return BlinkConfig{
		ClosedThreshold:       0.15,
		OpenThreshold:         0.22,
		MinDuration:           50 * time.Millisecond,
		MaxDuration:           500 * time.Millisecond,
		MaxCrossingsPerSecond: 2,
	}
}

// BlinkDetector recognizes deliberate blinks: the openness channel dips
// below the closed threshold and recovers within a bounded duration.
type BlinkDetector struct {
	config BlinkConfig

	closed    bool
	closedAt  time.Time
	minSeen   float64
	crossings []time.Time
}

// NewBlinkDetector creates a blink detector.
func NewBlinkDetector(config BlinkConfig) *BlinkDetector {
	return &BlinkDetector{config: config}
}

// Kind returns Blink.
func (d *BlinkDetector) Kind() Kind { return Blink }

// Reset clears the closure state and crossing history.
func (d *BlinkDetector) Reset() {
	d.closed = false
	d.crossings = nil
}

// Detect consumes one frame. It fires exactly once, on the reopening edge of
// a qualifying closure.
func (d *BlinkDetector) Detect(f feature.Vector) (Event, bool) {
	if f.FaceLost() {
		// Dropout mid-closure: abandon the gesture, don't fire on recovery.
		d.closed = false
		return Event{}, false
	}

	now := f.Timestamp
	d.pruneCrossings(now)

	if !d.closed {
		if f.EyeOpenness < d.config.ClosedThreshold {
			d.closed = true
			d.closedAt = now
			d.minSeen = f.EyeOpenness
			d.crossings = append(d.crossings, now)
		}
		return Event{}, false
	}

	if f.EyeOpenness < d.minSeen {
		d.minSeen = f.EyeOpenness
	}

	if f.EyeOpenness <= d.config.OpenThreshold {
		// Still closed. A closure that outlives MaxDuration can never
		// qualify, so drop it now and wait for reopening quietly.
		if now.Sub(d.closedAt) > d.config.MaxDuration {
			d.closed = false
		}
		return Event{}, false
	}

	// Reopening edge.
	d.closed = false
	d.crossings = append(d.crossings, now)

	dur := now.Sub(d.closedAt)
	if dur < d.config.MinDuration || dur > d.config.MaxDuration {
		return Event{}, false
	}
	if len(d.crossings) > d.config.MaxCrossingsPerSecond {
		return Event{}, false
	}

	return Event{
		Kind:       Blink,
		Timestamp:  now,
		Confidence: d.confidence(dur),
	}, true
}

// confidence scores how cleanly the closure matched a deliberate blink:
// depth margin under the closed threshold, and duration distance from the
// window edges.
func (d *BlinkDetector) confidence(dur time.Duration) float64 {
	depth := clamp((d.config.ClosedThreshold-d.minSeen)/d.config.ClosedThreshold, 0, 1)

	span := d.config.MaxDuration - d.config.MinDuration
	mid := d.config.MinDuration + span/2
	var off float64
	if span > 0 {
		off = float64(dur-mid) / float64(span/2)
		if off < 0 {
			off = -off
		}
	}
	timing := clamp(1-off, 0, 1)

	return clamp(0.5+0.3*depth+0.2*timing, 0, 1)
}

func (d *BlinkDetector) pruneCrossings(now time.Time) {
	cutoff := now.Add(-time.Second)
	kept := d.crossings[:0]
	for _, t := range d.crossings {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	d.crossings = kept
}
