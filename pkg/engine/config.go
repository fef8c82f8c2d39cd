package engine

import (
	"time"

	"gazemouse/pkg/feature"
	"gazemouse/pkg/trigger"
)

// Config holds all tunable parameters for the cursor control loop.
type Config struct {
	// FrameInterval is the control loop tick. 33ms ≈ 30Hz.
	FrameInterval time.Duration

	// RestPosition is where the cursor parks between movements.
	RestPosition feature.Vec2

	// StabilityRadius: gaze staying within this distance of the current
	// target counts as settled.
	StabilityRadius float64

	// FixationDuration is how long gaze must hold inside the stability
	// radius before fine adjustment begins.
	FixationDuration time.Duration

	// FineAdjustDuration is the corrective window after fixation.
	FineAdjustDuration time.Duration

	// FineAdjustRadius caps how far a correction may pull the target
	// during fine adjustment.
	FineAdjustRadius float64

	// RestInactivity: with no gaze update for this long while at rest, the
	// tentative cursor snaps back to the rest position.
	RestInactivity time.Duration

	// HoldTimeout: a locked position with no trigger for this long is
	// treated as abandoned.
	HoldTimeout time.Duration

	// InactivityTimeout: no accepted motion and no trigger for this long
	// ends the session.
	InactivityTimeout time.Duration

	// WindowSize is the gaze ring buffer capacity, which bounds the
	// classifier window.
	WindowSize int

	// Actions maps trigger kinds to the action dispatched from Locked.
	Actions map[trigger.Kind]ActionKind
}

// DefaultConfig returns the recommended control parameters.
func DefaultConfig() Config {
	return Config{
		FrameInterval:      33 * time.Millisecond,
		RestPosition:       feature.Vec2{X: 0.5, Y: 0.5},
		StabilityRadius:    0.03,
		FixationDuration:   time.Second,
		FineAdjustDuration: 500 * time.Millisecond,
		FineAdjustRadius:   0.08,
		RestInactivity:     time.Second,
		HoldTimeout:        3 * time.Second,
		InactivityTimeout:  7 * time.Second,
		WindowSize:         16,
		Actions: map[trigger.Kind]ActionKind{
			trigger.Blink: DoubleClick,
			trigger.Nod:   DoubleClick,
		},
	}
}

// action resolves the action for a trigger kind, falling back to the
// default double-click for kinds registered without a mapping.
func (c Config) action(kind trigger.Kind) ActionKind {
	if a, ok := c.Actions[kind]; ok {
		return a
	}
	return DoubleClick
}
