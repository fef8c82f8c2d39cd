package engine

import (
	"time"

	"gazemouse/pkg/feature"
)

// Snapshot is a read-only view of the engine for the dashboard and status
// endpoints.
type Snapshot struct {
	SessionID    string            `json:"session_id,omitempty"`
	State        string            `json:"state"`
	Calibrated   bool              `json:"calibrated"`
	ModelVersion string            `json:"model_version,omitempty"`
	Gaze         feature.GazePoint `json:"gaze"`
	Target       feature.GazePoint `json:"target"`
	Rest         feature.GazePoint `json:"rest"`
	StartedAt    time.Time         `json:"started_at,omitempty"`
}

// Snapshot captures the current engine state.
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{State: Idle.String()}

	if m := e.model.Load(); m != nil {
		snap.Calibrated = true
		snap.ModelVersion = m.Version
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return snap
	}
	s := e.sess
	snap.SessionID = s.id
	snap.State = s.state.String()
	snap.Target = s.target
	snap.Rest = s.rest
	snap.StartedAt = s.startedAt
	if latest, ok := s.ring.latest(); ok {
		snap.Gaze = latest
	}
	return snap
}
