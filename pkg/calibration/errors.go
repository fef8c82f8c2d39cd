package calibration

import "errors"

var (
	// ErrInsufficientSamples is returned when fewer samples than grid
	// points were collected.
	ErrInsufficientSamples = errors.New("insufficient calibration samples")

	// ErrDegenerateGeometry is returned when the samples cannot produce a
	// well-conditioned mapping (collinear gaze positions, or a best-effort
	// fit whose residual exceeds the acceptance threshold).
	ErrDegenerateGeometry = errors.New("degenerate calibration geometry")

	// ErrSessionNotActive is returned when samples are added outside an
	// active calibration session.
	ErrSessionNotActive = errors.New("no active calibration session")
)
