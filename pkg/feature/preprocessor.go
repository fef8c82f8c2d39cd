package feature

// Preprocessor smooths the raw feature stream with an exponentially weighted
// moving average per scalar channel. It is causal and O(1) per frame: one
// rolling accumulator, no window re-scan.
type Preprocessor struct {
	// Alpha is the smoothing factor in (0,1]; higher = more weight on the
	// new reading. 1.0 disables smoothing.
	Alpha float64

	acc    Vector
	seeded bool
}

// NewPreprocessor creates a preprocessor with the given smoothing factor.
func NewPreprocessor(alpha float64) *Preprocessor {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.6
	}
	return &Preprocessor{Alpha: alpha}
}

// Smooth returns the smoothed version of raw. The very first sample seeds the
// accumulator and passes through unchanged. Face-lost frames pass through
// without touching the accumulator so a dropout does not drag the average
// toward zero.
func (p *Preprocessor) Smooth(raw Vector) Vector {
	if raw.FaceLost() {
		return raw
	}

	if !p.seeded {
		p.acc = raw
		p.seeded = true
		return raw
	}

	a := p.Alpha
	out := raw
	out.PupilLeft.X = a*raw.PupilLeft.X + (1-a)*p.acc.PupilLeft.X
	out.PupilLeft.Y = a*raw.PupilLeft.Y + (1-a)*p.acc.PupilLeft.Y
	out.PupilRight.X = a*raw.PupilRight.X + (1-a)*p.acc.PupilRight.X
	out.PupilRight.Y = a*raw.PupilRight.Y + (1-a)*p.acc.PupilRight.Y
	out.HeadPitch = a*raw.HeadPitch + (1-a)*p.acc.HeadPitch
	out.HeadYaw = a*raw.HeadYaw + (1-a)*p.acc.HeadYaw

	// Eyelid openness is deliberately left unsmoothed: a blink is a
	// high-frequency event and the trigger detector needs the raw edge.

	p.acc = out
	return out
}

// Reset clears the accumulator; the next sample seeds it again.
func (p *Preprocessor) Reset() {
	p.seeded = false
}
