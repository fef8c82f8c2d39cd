package feature

import (
	"math"
	"time"
)

// GazePoint is an estimated on-screen coordinate for one frame, in
// normalized screen space ([0,1] on both axes, extrapolation may exceed it).
type GazePoint struct {
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// Dist returns the Euclidean distance to other in normalized screen units.
func (g GazePoint) Dist(other GazePoint) float64 {
	dx := other.X - g.X
	dy := other.Y - g.Y
	return math.Sqrt(dx*dx + dy*dy)
}
