// Package feature defines the per-frame signal produced by the external
// landmark extractor and the preprocessor that stabilizes it.
//
// The engine makes no assumption about how features are extracted: anything
// that can fill in a Vector per frame (mediapipe, dlib, a replay file) can
// drive it.
package feature

import (
	"math"
	"time"
)

// Vec2 is a 2D point or offset in normalized coordinates.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns the component-wise sum.
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Scale returns the vector scaled by f.
func (v Vec2) Scale(f float64) Vec2 {
	return Vec2{X: v.X * f, Y: v.Y * f}
}

// Dist returns the Euclidean distance to other.
func (v Vec2) Dist(other Vec2) float64 {
	dx := other.X - v.X
	dy := other.Y - v.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Vector is one frame of extracted facial signal. It is immutable once
// produced; the preprocessor returns new values rather than mutating inputs.
type Vector struct {
	// Pupil offsets relative to the eye corners, normalized.
	PupilLeft  Vec2 `json:"pupil_left"`
	PupilRight Vec2 `json:"pupil_right"`

	// Head orientation estimate in radians.
	HeadPitch float64 `json:"head_pitch"`
	HeadYaw   float64 `json:"head_yaw"`

	// EyeOpenness is the eye aspect ratio averaged over both eyes.
	EyeOpenness float64 `json:"eye_openness"`

	// Confidence is the extractor's tracking confidence in [0,1].
	// Zero means the face was lost this frame.
	Confidence float64 `json:"confidence"`

	Timestamp time.Time `json:"timestamp"`
}

// FaceLost reports whether the extractor lost the face on this frame.
func (v Vector) FaceLost() bool {
	return v.Confidence <= 0
}

// Valid reports whether all channels carry finite values. A malformed frame
// is skipped by the engine rather than propagated.
func (v Vector) Valid() bool {
	for _, f := range []float64{
		v.PupilLeft.X, v.PupilLeft.Y,
		v.PupilRight.X, v.PupilRight.Y,
		v.HeadPitch, v.HeadYaw,
		v.EyeOpenness, v.Confidence,
	} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Gaze returns the combined gaze signal: average pupil offset of both eyes.
func (v Vector) Gaze() Vec2 {
	return Vec2{
		X: (v.PupilLeft.X + v.PupilRight.X) / 2,
		Y: (v.PupilLeft.Y + v.PupilRight.Y) / 2,
	}
}
