// Package calibration fits and applies the mapping from gaze/head features
// to normalized screen coordinates. Fitting consumes one averaged sample per
// grid point of a calibration session; the fitted model is an immutable
// value that the engine swaps in wholesale.
package calibration

import (
	"gazemouse/pkg/feature"
)

// Sample pairs a feature vector with the grid point the user was looking at,
// both in normalized screen coordinates.
type Sample struct {
	Feature feature.Vector `json:"feature"`
	Target  feature.Vec2   `json:"target"`
}

// Config holds the tunable fitting parameters.
type Config struct {
	// GridRows and GridCols define the calibration grid. The fit requires
	// at least GridRows*GridCols samples.
	GridRows int
	GridCols int

	// Margin is the fraction of the screen kept clear of grid points on
	// each edge.
	Margin float64

	// OutlierFactor: samples whose residual exceeds this multiple of the
	// median residual are excluded before the final fit. One mis-fixated
	// grid point must not poison the whole mapping.
	OutlierFactor float64

	// MaxResidual is the RMS residual (normalized screen units) above
	// which the best-effort fit is rejected as degenerate.
	MaxResidual float64

	// ConfidenceFalloff controls how fast gaze confidence decays per unit
	// of feature-space distance outside the calibrated range.
	ConfidenceFalloff float64
}

// DefaultConfig returns the recommended calibration parameters for a 3×3
// grid.
func DefaultConfig() Config {
	return Config{
		GridRows:          3,
		GridCols:          3,
		Margin:            0.1,
		OutlierFactor:     3.0,
		MaxResidual:       0.08,
		ConfidenceFalloff: 4.0,
	}
}

// GridPoints returns the target points of the calibration grid, row-major,
// in normalized screen coordinates.
func (c Config) GridPoints() []feature.Vec2 {
	points := make([]feature.Vec2, 0, c.GridRows*c.GridCols)
	for row := 0; row < c.GridRows; row++ {
		for col := 0; col < c.GridCols; col++ {
			points = append(points, feature.Vec2{
				X: c.Margin + (1-2*c.Margin)*float64(col)/float64(c.GridCols-1),
				Y: c.Margin + (1-2*c.Margin)*float64(row)/float64(c.GridRows-1),
			})
		}
	}
	return points
}

// MinSamples returns the sample count required for a fit.
func (c Config) MinSamples() int {
	return c.GridRows * c.GridCols
}
