package calibration

import (
	"fmt"
	"sync"

	"gazemouse/pkg/feature"
)

// Session collects samples for one calibration run. The UI driving the user
// through the grid is external; it calls Add once per captured frame and
// Finish when the grid is complete. Repeated samples for the same grid point
// are averaged, the way the original collection gathers a burst of frames
// per dot.
type Session struct {
	mu     sync.Mutex
	config Config
	cells  map[feature.Vec2]*cellAccumulator
	active bool
}

type cellAccumulator struct {
	sum   feature.Vector
	count int
}

// NewSession creates a calibration session with the given parameters.
func NewSession(config Config) *Session {
	return &Session{
		config: config,
		cells:  make(map[feature.Vec2]*cellAccumulator),
		active: true,
	}
}

// Config returns the session's calibration parameters.
func (s *Session) Config() Config {
	return s.config
}

// Add records one frame captured while the user fixated the given grid
// target. Face-lost or malformed frames are skipped.
func (s *Session) Add(sample Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return ErrSessionNotActive
	}
	if sample.Feature.FaceLost() || !sample.Feature.Valid() {
		return nil
	}

	acc, ok := s.cells[sample.Target]
	if !ok {
		acc = &cellAccumulator{}
		s.cells[sample.Target] = acc
	}
	acc.add(sample.Feature)
	return nil
}

// Samples returns one averaged sample per grid cell collected so far.
func (s *Session) Samples() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samplesLocked()
}

func (s *Session) samplesLocked() []Sample {
	samples := make([]Sample, 0, len(s.cells))
	for target, acc := range s.cells {
		samples = append(samples, Sample{
			Feature: acc.mean(),
			Target:  target,
		})
	}
	return samples
}

// Finish closes the session and fits the model over the averaged samples.
// On a fit error the session stays closed; the caller starts a fresh one to
// retry.
func (s *Session) Finish() (*Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil, ErrSessionNotActive
	}
	s.active = false

	samples := s.samplesLocked()
	model, err := Fit(samples, s.config)
	if err != nil {
		return nil, fmt.Errorf("calibration fit: %w", err)
	}
	return model, nil
}

func (a *cellAccumulator) add(f feature.Vector) {
	a.sum.PupilLeft = a.sum.PupilLeft.Add(f.PupilLeft)
	a.sum.PupilRight = a.sum.PupilRight.Add(f.PupilRight)
	a.sum.HeadPitch += f.HeadPitch
	a.sum.HeadYaw += f.HeadYaw
	a.sum.EyeOpenness += f.EyeOpenness
	a.sum.Confidence += f.Confidence
	a.sum.Timestamp = f.Timestamp
	a.count++
}

func (a *cellAccumulator) mean() feature.Vector {
	n := float64(a.count)
	return feature.Vector{
		PupilLeft:   a.sum.PupilLeft.Scale(1 / n),
		PupilRight:  a.sum.PupilRight.Scale(1 / n),
		HeadPitch:   a.sum.HeadPitch / n,
		HeadYaw:     a.sum.HeadYaw / n,
		EyeOpenness: a.sum.EyeOpenness / n,
		Confidence:  a.sum.Confidence / n,
		Timestamp:   a.sum.Timestamp,
	}
}
