package calibration

import (
	"math"
	"time"

	"gazemouse/pkg/feature"
)

// Bounds is the axis-aligned range of each feature channel seen during
// calibration. Apply extrapolates outside it but reduces confidence.
type Bounds struct {
	GazeXMin float64 `json:"gaze_x_min"`
	GazeXMax float64 `json:"gaze_x_max"`
	GazeYMin float64 `json:"gaze_y_min"`
	GazeYMax float64 `json:"gaze_y_max"`
	YawMin   float64 `json:"yaw_min"`
	YawMax   float64 `json:"yaw_max"`
	PitchMin float64 `json:"pitch_min"`
	PitchMax float64 `json:"pitch_max"`
}

// Model is a fitted feature→screen mapping. It is immutable: the engine
// replaces its model as a whole, never field by field, so a concurrent
// reader can never observe a half-updated transform.
type Model struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`

	CoeffsX [basisSize]float64 `json:"coeffs_x"`
	CoeffsY [basisSize]float64 `json:"coeffs_y"`
	Bounds  Bounds             `json:"bounds"`

	// Residual is the RMS residual of the accepted fit, in normalized
	// screen units. PointResiduals and ExcludedSamples are quality
	// metrics for the calibration report.
	Residual        float64   `json:"residual"`
	PointResiduals  []float64 `json:"point_residuals,omitempty"`
	ExcludedSamples int       `json:"excluded_samples,omitempty"`

	ConfidenceFalloff float64 `json:"confidence_falloff"`
}

// Apply maps a feature vector to a gaze point. It is a pure function:
// extrapolation outside the calibrated range never fails, but confidence
// decays with the distance the input falls outside it.
func (m *Model) Apply(f feature.Vector) feature.GazePoint {
	x := dot(m.CoeffsX, basisX(f))
	y := dot(m.CoeffsY, basisY(f))

	conf := f.Confidence * math.Exp(-m.ConfidenceFalloff*m.Bounds.exceedance(f))

	return feature.GazePoint{
		X:          x,
		Y:          y,
		Confidence: conf,
		Timestamp:  f.Timestamp,
	}
}

// exceedance measures how far the feature falls outside the calibrated
// range, summed over channels and normalized by each channel's span.
func (b Bounds) exceedance(f feature.Vector) float64 {
	g := f.Gaze()
	return outside(g.X, b.GazeXMin, b.GazeXMax) +
		outside(g.Y, b.GazeYMin, b.GazeYMax) +
		outside(f.HeadYaw, b.YawMin, b.YawMax) +
		outside(f.HeadPitch, b.PitchMin, b.PitchMax)
}

func outside(v, lo, hi float64) float64 {
	span := hi - lo
	if span <= 1e-12 {
		return 0
	}
	if v < lo {
		return (lo - v) / span
	}
	if v > hi {
		return (v - hi) / span
	}
	return 0
}

func boundsOf(samples []Sample) Bounds {
	b := Bounds{
		GazeXMin: math.Inf(1), GazeXMax: math.Inf(-1),
		GazeYMin: math.Inf(1), GazeYMax: math.Inf(-1),
		YawMin: math.Inf(1), YawMax: math.Inf(-1),
		PitchMin: math.Inf(1), PitchMax: math.Inf(-1),
	}
	for _, s := range samples {
		g := s.Feature.Gaze()
		b.GazeXMin = math.Min(b.GazeXMin, g.X)
		b.GazeXMax = math.Max(b.GazeXMax, g.X)
		b.GazeYMin = math.Min(b.GazeYMin, g.Y)
		b.GazeYMax = math.Max(b.GazeYMax, g.Y)
		b.YawMin = math.Min(b.YawMin, s.Feature.HeadYaw)
		b.YawMax = math.Max(b.YawMax, s.Feature.HeadYaw)
		b.PitchMin = math.Min(b.PitchMin, s.Feature.HeadPitch)
		b.PitchMax = math.Max(b.PitchMax, s.Feature.HeadPitch)
	}
	return b
}
