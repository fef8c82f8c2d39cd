// Package gesture classifies short gaze trajectories. The engine uses it to
// tell a deliberate straight-line glance away from rest apart from the jitter
// and wander the eye produces on its own.
package gesture

import (
	"math"

	"gazemouse/pkg/feature"
)

// Verdict is the classifier's judgement of a trajectory window.
type Verdict int

const (
	// Insufficient means the window is too short to judge. Keep feeding it.
	Insufficient Verdict = iota
	// Linear means the window is an intentional straight-line movement.
	Linear
	// NonLinear means the window is jitter, zig-zag or circling.
	NonLinear
)

// String returns the verdict name for logging.
func (v Verdict) String() string {
	switch v {
	case Linear:
		return "linear"
	case NonLinear:
		return "nonlinear"
	default:
		return "insufficient"
	}
}

// Config holds the tunable parameters for linearity classification.
type Config struct {
	// MinSamples is the window size below which the verdict is Insufficient.
	MinSamples int

	// MinDisplacement is the origin→latest distance (normalized screen
	// units) below which motion is too small to classify as deliberate.
	MinDisplacement float64

	// MaxDeviationFrac caps each intermediate point's perpendicular
	// deviation from the origin→latest line, as a fraction of the segment
	// length.
	MaxDeviationFrac float64

	// MaxPathRatio caps path length over straight-line distance. Circling
	// trajectories blow past this even when they end near the line.
	MaxPathRatio float64

	// MaxReversals is how many direction sign changes along the dominant
	// axis are tolerated. More than this is a zig-zag.
	MaxReversals int
}

// DefaultConfig returns the recommended classification parameters.
func DefaultConfig() Config {
	return Config{
		MinSamples:       5,
		MinDisplacement:  0.04, // 4% of screen
		MaxDeviationFrac: 0.15,
		MaxPathRatio:     1.4,
		MaxReversals:     1,
	}
}

// Classifier judges gaze trajectory windows.
type Classifier struct {
	config Config
}

// New creates a classifier.
func New(config Config) *Classifier {
	return &Classifier{config: config}
}

// Classify judges the trajectory from origin through points (oldest first,
// latest last). The window is anchored at the moment the gaze left rest, so
// origin is passed separately from the buffered points.
func (c *Classifier) Classify(points []feature.GazePoint, origin feature.GazePoint) Verdict {
	if len(points) < c.config.MinSamples {
		return Insufficient
	}

	latest := points[len(points)-1]
	dx := latest.X - origin.X
	dy := latest.Y - origin.Y
	segLen := math.Sqrt(dx*dx + dy*dy)

	if segLen < c.config.MinDisplacement {
		return Insufficient
	}

	// Perpendicular deviation of every intermediate point from the
	// origin→latest line.
	maxDev := c.config.MaxDeviationFrac * segLen
	for _, p := range points[:len(points)-1] {
		dev := math.Abs((p.X-origin.X)*dy-(p.Y-origin.Y)*dx) / segLen
		if dev > maxDev {
			return NonLinear
		}
	}

	// Path straightness: circling comes back near the line but travels far.
	pathLen := origin.Dist(points[0])
	for i := 1; i < len(points); i++ {
		pathLen += points[i-1].Dist(points[i])
	}
	if pathLen > c.config.MaxPathRatio*segLen {
		return NonLinear
	}

	// Zig-zag: count sign reversals of the per-step delta projected onto
	// the dominant movement axis.
	if c.countReversals(points, origin, dx, dy) > c.config.MaxReversals {
		return NonLinear
	}

	return Linear
}

// countReversals counts direction sign changes along the movement axis.
func (c *Classifier) countReversals(points []feature.GazePoint, origin feature.GazePoint, dx, dy float64) int {
	reversals := 0
	lastSign := 0
	prev := origin
	for _, p := range points {
		// Step delta projected onto the displacement direction.
		proj := (p.X-prev.X)*dx + (p.Y-prev.Y)*dy
		prev = p

		sign := 0
		if proj > 1e-9 {
			sign = 1
		} else if proj < -1e-9 {
			sign = -1
		}
		if sign == 0 {
			continue
		}
		if lastSign != 0 && sign != lastSign {
			reversals++
		}
		lastSign = sign
	}
	return reversals
}
