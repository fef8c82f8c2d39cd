package engine

import "gazemouse/pkg/feature"

// ActionKind is an abstract cursor action. The engine never issues
// OS-specific calls; the cursor driver decides what a kind means on its
// platform.
type ActionKind string

const (
	// DoubleClick is the default confirmation action.
	DoubleClick ActionKind = "double_click"
	// SingleClick is a single primary click.
	SingleClick ActionKind = "single_click"
	// RightClick is a secondary click.
	RightClick ActionKind = "right_click"
	// Scroll is a scroll gesture at the cursor position.
	Scroll ActionKind = "scroll"
)

// CursorDriver is the engine's output boundary: an OS integration, a test
// double, or a logger.
type CursorDriver interface {
	// MoveTo positions the cursor at a normalized screen point.
	MoveTo(p feature.GazePoint)

	// SetEnlarged toggles the enlarged cursor visual. It is tied strictly
	// to the Rest state.
	SetEnlarged(enlarged bool)

	// DispatchAction performs an abstract action at the current cursor
	// position.
	DispatchAction(kind ActionKind)
}
