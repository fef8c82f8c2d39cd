package calibration

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"gazemouse/pkg/feature"
)

// basisSize is the number of regressors per screen axis.
const basisSize = 4

// basisX builds the horizontal-axis regressors: intercept, combined pupil x,
// head yaw, and a quadratic pupil term. The axes are fitted independently so
// the horizontal and vertical response curves are free to differ.
func basisX(f feature.Vector) [basisSize]float64 {
	g := f.Gaze()
	return [basisSize]float64{1, g.X, f.HeadYaw, g.X * g.X}
}

// basisY builds the vertical-axis regressors.
func basisY(f feature.Vector) [basisSize]float64 {
	g := f.Gaze()
	return [basisSize]float64{1, g.Y, f.HeadPitch, g.Y * g.Y}
}

// Fit produces a calibration model from the collected samples by weighted
// least squares, fitted independently per screen axis. Samples whose
// residual exceeds OutlierFactor times the median residual of a first pass
// are excluded from the final fit.
func Fit(samples []Sample, cfg Config) (*Model, error) {
	if len(samples) < cfg.MinSamples() {
		return nil, fmt.Errorf("%w: have %d, need %d",
			ErrInsufficientSamples, len(samples), cfg.MinSamples())
	}

	weights := make([]float64, len(samples))
	for i := range weights {
		weights[i] = 1
	}

	coeffsX, coeffsY, ok := solveBothAxes(samples, weights)
	if !ok {
		return nil, fmt.Errorf("%w: normal equations are ill-conditioned", ErrDegenerateGeometry)
	}

	// First-pass residuals drive outlier rejection.
	residuals := pointResiduals(samples, coeffsX, coeffsY)
	median := medianOf(residuals)

	excluded := 0
	if median > 1e-12 {
		for i, r := range residuals {
			if r > cfg.OutlierFactor*median {
				weights[i] = 0
				excluded++
			}
		}
	}

	// Refit without outliers, but only if enough samples survive to keep
	// the problem overdetermined.
	if excluded > 0 && len(samples)-excluded >= basisSize+1 {
		if cx, cy, ok := solveBothAxes(samples, weights); ok {
			coeffsX, coeffsY = cx, cy
			residuals = pointResiduals(samples, coeffsX, coeffsY)
		}
	}

	rms := weightedRMS(residuals, weights)
	if rms > cfg.MaxResidual {
		return nil, fmt.Errorf("%w: residual %.4f exceeds %.4f",
			ErrDegenerateGeometry, rms, cfg.MaxResidual)
	}

	return &Model{
		Version:           uuid.NewString(),
		CreatedAt:         time.Now().UTC(),
		CoeffsX:           coeffsX,
		CoeffsY:           coeffsY,
		Bounds:            boundsOf(samples),
		Residual:          rms,
		PointResiduals:    residuals,
		ExcludedSamples:   excluded,
		ConfidenceFalloff: cfg.ConfidenceFalloff,
	}, nil
}

func solveBothAxes(samples []Sample, weights []float64) ([basisSize]float64, [basisSize]float64, bool) {
	cx, okX := solveAxis(samples, weights, basisX, func(s Sample) float64 { return s.Target.X })
	cy, okY := solveAxis(samples, weights, basisY, func(s Sample) float64 { return s.Target.Y })
	return cx, cy, okX && okY
}

// solveAxis solves the weighted normal equations for one screen axis.
func solveAxis(samples []Sample, weights []float64,
	basis func(feature.Vector) [basisSize]float64,
	target func(Sample) float64) ([basisSize]float64, bool) {

	var ata [basisSize][basisSize]float64
	var atb [basisSize]float64

	for i, s := range samples {
		w := weights[i]
		if w == 0 {
			continue
		}
		r := basis(s.Feature)
		t := target(s)
		for j := 0; j < basisSize; j++ {
			atb[j] += w * r[j] * t
			for k := 0; k < basisSize; k++ {
				ata[j][k] += w * r[j] * r[k]
			}
		}
	}

	return solveLinear(ata, atb)
}

// solveLinear solves a small dense system by Gaussian elimination with
// partial pivoting. Returns ok=false when a pivot collapses, which is how
// collinear sample geometry shows up.
func solveLinear(a [basisSize][basisSize]float64, b [basisSize]float64) ([basisSize]float64, bool) {
	const pivotEps = 1e-10

	for col := 0; col < basisSize; col++ {
		pivot := col
		for row := col + 1; row < basisSize; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < pivotEps {
			return [basisSize]float64{}, false
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for row := col + 1; row < basisSize; row++ {
			f := a[row][col] / a[col][col]
			for k := col; k < basisSize; k++ {
				a[row][k] -= f * a[col][k]
			}
			b[row] -= f * b[col]
		}
	}

	var x [basisSize]float64
	for row := basisSize - 1; row >= 0; row-- {
		sum := b[row]
		for k := row + 1; k < basisSize; k++ {
			sum -= a[row][k] * x[k]
		}
		x[row] = sum / a[row][row]
	}
	return x, true
}

func pointResiduals(samples []Sample, cx, cy [basisSize]float64) []float64 {
	residuals := make([]float64, len(samples))
	for i, s := range samples {
		px := dot(cx, basisX(s.Feature))
		py := dot(cy, basisY(s.Feature))
		dx := px - s.Target.X
		dy := py - s.Target.Y
		residuals[i] = math.Sqrt(dx*dx + dy*dy)
	}
	return residuals
}

func dot(c, r [basisSize]float64) float64 {
	sum := 0.0
	for i := 0; i < basisSize; i++ {
		sum += c[i] * r[i]
	}
	return sum
}

func medianOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func weightedRMS(residuals, weights []float64) float64 {
	sum, n := 0.0, 0.0
	for i, r := range residuals {
		if weights[i] == 0 {
			continue
		}
		sum += r * r
		n++
	}
	if n == 0 {
		return math.Inf(1)
	}
	return math.Sqrt(sum / n)
}
