package trigger

import (
	"time"

	"gazemouse/pkg/feature"
)

// NodConfig holds the tunable nod detection parameters. Pitch is in radians;
// positive pitch is the head tilting down.
type NodConfig struct {
	// DeltaThreshold is the minimum pitch excursion from baseline for a
	// peak to count as a nod.
	DeltaThreshold float64

	// EnterFraction of DeltaThreshold starts gesture tracking. Below the
	// full threshold the head is still allowed to be warming into the nod.
	EnterFraction float64

	// ReturnBand: the gesture completes when pitch comes back within this
	// distance of baseline.
	ReturnBand float64

	// MaxDuration bounds the whole down-and-up excursion.
	MaxDuration time.Duration

	// MinMonotonicity is the minimum fraction of frame-to-frame steps that
	// move in the expected direction for each phase. A jittery vertical
	// wobble fails this even when its amplitude is large enough.
	MinMonotonicity float64

	// BaselineAlpha is the smoothing factor for the resting pitch estimate,
	// updated only while no gesture is in progress.
	BaselineAlpha float64
}

// DefaultNodConfig returns the recommended nod parameters.
func DefaultNodConfig() NodConfig {
	return NodConfig{
		DeltaThreshold:  0.15, // ~8.5 degrees
		EnterFraction:   0.4,
		ReturnBand:      0.05,
		MaxDuration:     900 * time.Millisecond,
		MinMonotonicity: 0.7,
		BaselineAlpha:   0.05,
	}
}

type nodPhase int

const (
	nodIdle nodPhase = iota
	nodDescending
	nodReturning
	// nodAborted waits for the pitch to come back to baseline after a
	// disqualified excursion, so its tail cannot re-trigger tracking.
	nodAborted
)

// NodDetector recognizes a single-peak head pitch excursion: monotonic down,
// monotonic up, back to baseline within a bounded duration.
type NodDetector struct {
	config NodConfig

	baseline    float64
	hasBaseline bool

	phase      nodPhase
	startedAt  time.Time
	lastPitch  float64
	peakDelta  float64
	goodSteps  int
	totalSteps int
}

// NewNodDetector creates a nod detector.
func NewNodDetector(config NodConfig) *NodDetector {
	return &NodDetector{config: config}
}

// Kind returns Nod.
func (d *NodDetector) Kind() Kind { return Nod }

// Reset clears the gesture state and baseline.
func (d *NodDetector) Reset() {
	d.phase = nodIdle
	d.hasBaseline = false
}

// Detect consumes one frame. It fires once, on the frame where the pitch
// returns to baseline after a qualifying peak.
func (d *NodDetector) Detect(f feature.Vector) (Event, bool) {
	if f.FaceLost() {
		d.phase = nodIdle
		return Event{}, false
	}

	pitch := f.HeadPitch
	now := f.Timestamp

	if !d.hasBaseline {
		d.baseline = pitch
		d.hasBaseline = true
		d.lastPitch = pitch
		return Event{}, false
	}

	delta := pitch - d.baseline
	step := pitch - d.lastPitch
	d.lastPitch = pitch

	switch d.phase {
	case nodIdle:
		// Track the resting pitch slowly so posture drift doesn't
		// accumulate into a false excursion.
		a := d.config.BaselineAlpha
		d.baseline = a*pitch + (1-a)*d.baseline

		if delta > d.config.DeltaThreshold*d.config.EnterFraction {
			d.phase = nodDescending
			d.startedAt = now
			d.peakDelta = delta
			d.goodSteps = 0
			d.totalSteps = 0
		}

	case nodDescending:
		d.totalSteps++
		if step >= 0 {
			d.goodSteps++
		}
		if delta > d.peakDelta {
			d.peakDelta = delta
		}
		if now.Sub(d.startedAt) > d.config.MaxDuration {
			d.phase = nodAborted
			break
		}
		// Turnaround: pitch started coming back up.
		if step < 0 && d.peakDelta >= d.config.DeltaThreshold {
			d.phase = nodReturning
		}

	case nodReturning:
		d.totalSteps++
		if step <= 0 {
			d.goodSteps++
		}
		if now.Sub(d.startedAt) > d.config.MaxDuration {
			d.phase = nodAborted
			break
		}
		if delta <= d.config.ReturnBand {
			d.phase = nodIdle
			mono := 1.0
			if d.totalSteps > 0 {
				mono = float64(d.goodSteps) / float64(d.totalSteps)
			}
			if mono < d.config.MinMonotonicity {
				break
			}
			return Event{
				Kind:       Nod,
				Timestamp:  now,
				Confidence: d.confidence(mono),
			}, true
		}

	case nodAborted:
		if delta <= d.config.ReturnBand {
			d.phase = nodIdle
		}
	}

	return Event{}, false
}

// confidence scores peak amplitude margin over the threshold and the shape's
// monotonicity.
func (d *NodDetector) confidence(mono float64) float64 {
	margin := clamp((d.peakDelta-d.config.DeltaThreshold)/d.config.DeltaThreshold, 0, 1)
	return clamp(0.4+0.3*mono+0.3*margin, 0, 1)
}
