package engine

import (
	"time"

	"gazemouse/pkg/feature"
)

// State is the control state machine's current mode.
type State int

const (
	// Idle: engine not running; no session exists.
	Idle State = iota
	// Rest: cursor parked at the rest position, enlarged, awaiting a
	// deliberate movement.
	Rest
	// Moving: a linear gesture was accepted; cursor tracks gaze.
	Moving
	// Fixating: gaze has settled near the target; the settle timer runs.
	Fixating
	// FineAdjust: brief window allowing small corrective repositioning.
	FineAdjust
	// Locked: target frozen, awaiting a trigger gesture.
	Locked
	// Acting: a trigger fired and the action is being dispatched.
	Acting
	// Terminated: the session ended (auto-stop or explicit stop).
	Terminated
)

// String returns the state name for logging and the dashboard.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Rest:
		return "rest"
	case Moving:
		return "moving"
	case Fixating:
		return "fixating"
	case FineAdjust:
		return "fine_adjust"
	case Locked:
		return "locked"
	case Acting:
		return "acting"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// session is the mutable per-run record. Exactly one exists per running
// session; it is owned exclusively by the engine's processing step, which is
// the single serialization point for all of its fields.
type session struct {
	id    string
	state State

	rest   feature.GazePoint
	target feature.GazePoint
	ring   *gazeRing

	// Timer anchors. Reset explicitly by transition rules, never
	// implicitly on a tick.
	settleStart  time.Time
	fineStart    time.Time
	lockStart    time.Time
	lastGaze     time.Time
	lastActivity time.Time
	startedAt    time.Time
}
