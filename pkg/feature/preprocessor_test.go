package feature

import (
	"math"
	"testing"
	"time"
)

func vec(gx, gy float64) Vector {
	return Vector{
		PupilLeft:   Vec2{X: gx, Y: gy},
		PupilRight:  Vec2{X: gx, Y: gy},
		EyeOpenness: 0.3,
		Confidence:  1.0,
		Timestamp:   time.Now(),
	}
}

func TestPreprocessor_SeedsWithFirstSample(t *testing.T) {
	p := NewPreprocessor(0.3)

	in := vec(0.2, -0.1)
	out := p.Smooth(in)

	if out.PupilLeft != in.PupilLeft || out.HeadPitch != in.HeadPitch {
		t.Errorf("first sample should pass through unchanged, got %+v", out)
	}
}

func TestPreprocessor_ConvergesToConstantInput(t *testing.T) {
	p := NewPreprocessor(0.5)

	p.Smooth(vec(0, 0))
	var out Vector
	for i := 0; i < 30; i++ {
		out = p.Smooth(vec(0.4, 0.4))
	}

	if math.Abs(out.PupilLeft.X-0.4) > 1e-6 {
		t.Errorf("expected convergence to 0.4, got %v", out.PupilLeft.X)
	}
}

func TestPreprocessor_SuppressesJitter(t *testing.T) {
	p := NewPreprocessor(0.2)

	p.Smooth(vec(0.5, 0.5))
	var out Vector
	for i := 0; i < 20; i++ {
		// Alternate around 0.5 with +-0.05 jitter
		j := 0.05
		if i%2 == 1 {
			j = -0.05
		}
		out = p.Smooth(vec(0.5+j, 0.5))
	}

	if math.Abs(out.PupilLeft.X-0.5) > 0.02 {
		t.Errorf("jitter not suppressed, got %v", out.PupilLeft.X)
	}
}

func TestPreprocessor_FaceLostPassesThrough(t *testing.T) {
	p := NewPreprocessor(0.5)

	p.Smooth(vec(0.4, 0.4))
	lost := Vector{Confidence: 0, Timestamp: time.Now()}
	out := p.Smooth(lost)

	if !out.FaceLost() {
		t.Error("face-lost frame should stay face-lost after smoothing")
	}

	// Accumulator must be unaffected by the dropout
	next := p.Smooth(vec(0.4, 0.4))
	if math.Abs(next.PupilLeft.X-0.4) > 1e-9 {
		t.Errorf("dropout polluted accumulator, got %v", next.PupilLeft.X)
	}
}

func TestPreprocessor_OpennessUnsmoothed(t *testing.T) {
	p := NewPreprocessor(0.1)

	open := vec(0, 0)
	open.EyeOpenness = 0.3
	p.Smooth(open)

	closed := vec(0, 0)
	closed.EyeOpenness = 0.05
	out := p.Smooth(closed)

	if out.EyeOpenness != 0.05 {
		t.Errorf("openness should not be smoothed, got %v", out.EyeOpenness)
	}
}

func TestVector_Valid(t *testing.T) {
	v := vec(0.1, 0.1)
	if !v.Valid() {
		t.Error("expected valid vector")
	}

	v.HeadPitch = math.NaN()
	if v.Valid() {
		t.Error("NaN channel should be invalid")
	}
}
