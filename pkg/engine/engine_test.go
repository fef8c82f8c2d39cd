package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gazemouse/pkg/calibration"
	"gazemouse/pkg/feature"
)

const frameStep = 33 * time.Millisecond

// testClock is a manually advanced clock wired into the engine so timer
// behavior is scripted rather than slept for.
type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// fakeDriver records every command the engine issues.
type fakeDriver struct {
	mu       sync.Mutex
	moves    []feature.GazePoint
	enlarged []bool
	actions  []ActionKind
}

func (d *fakeDriver) MoveTo(p feature.GazePoint) {
	d.mu.Lock()
	d.moves = append(d.moves, p)
	d.mu.Unlock()
}

func (d *fakeDriver) SetEnlarged(on bool) {
	d.mu.Lock()
	d.enlarged = append(d.enlarged, on)
	d.mu.Unlock()
}

func (d *fakeDriver) DispatchAction(kind ActionKind) {
	d.mu.Lock()
	d.actions = append(d.actions, kind)
	d.mu.Unlock()
}

func (d *fakeDriver) lastMove() (feature.GazePoint, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.moves) == 0 {
		return feature.GazePoint{}, false
	}
	return d.moves[len(d.moves)-1], true
}

func (d *fakeDriver) moveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.moves)
}

func (d *fakeDriver) actionList() []ActionKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ActionKind(nil), d.actions...)
}

// identityModel maps combined pupil position straight to screen coordinates,
// with bounds covering the full screen.
func identityModel() *calibration.Model {
	return &calibration.Model{
		Version: "test-identity",
		CoeffsX: [4]float64{0, 1, 0, 0},
		CoeffsY: [4]float64{0, 1, 0, 0},
		Bounds: calibration.Bounds{
			GazeXMin: 0, GazeXMax: 1,
			GazeYMin: 0, GazeYMax: 1,
			YawMin: -1, YawMax: 1,
			PitchMin: -1, PitchMax: 1,
		},
		ConfidenceFalloff: 4,
	}
}

func frameAt(x, y float64, ts time.Time) feature.Vector {
	return feature.Vector{
		PupilLeft:   feature.Vec2{X: x, Y: y},
		PupilRight:  feature.Vec2{X: x, Y: y},
		EyeOpenness: 1,
		Confidence:  1,
		Timestamp:   ts,
	}
}

func newTestEngine(t *testing.T) (*Engine, *fakeDriver, *testClock) {
	t.Helper()
	driver := &fakeDriver{}
	e := New(DefaultConfig(), driver, nil)
	// Disable smoothing so frames map to gaze points verbatim.
	e.SetPreprocessor(feature.NewPreprocessor(1))
	e.SetModel(identityModel())
	clk := &testClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	e.now = clk.now
	return e, driver, clk
}

// tick runs one control step plus the timer sweep, like one loop iteration.
func tick(e *Engine, f feature.Vector) {
	e.mu.Lock()
	e.step(f)
	e.sweep()
	e.mu.Unlock()
}

// sweepOnly runs a tick on which no frame arrived.
func sweepOnly(e *Engine) {
	e.mu.Lock()
	e.sweep()
	e.mu.Unlock()
}

// driveLine feeds frames along a straight line, one frame interval apart.
func driveLine(e *Engine, clk *testClock, x0, y0, x1, y1 float64, steps int) {
	for i := 1; i <= steps; i++ {
		clk.advance(frameStep)
		f := float64(i) / float64(steps)
		tick(e, frameAt(x0+(x1-x0)*f, y0+(y1-y0)*f, clk.t))
	}
}

// hold feeds identical frames at a fixed point.
func hold(e *Engine, clk *testClock, x, y float64, frames int) {
	for i := 0; i < frames; i++ {
		clk.advance(frameStep)
		tick(e, frameAt(x, y, clk.t))
	}
}

// blink feeds an eye closure followed by a reopening edge.
func blink(e *Engine, clk *testClock, x, y float64) {
	for i := 0; i < 3; i++ {
		clk.advance(frameStep)
		f := frameAt(x, y, clk.t)
		f.EyeOpenness = 0.05
		tick(e, f)
	}
	clk.advance(frameStep)
	tick(e, frameAt(x, y, clk.t))
}

// reachLocked drives the engine from Rest to a locked target at (0.7, 0.3).
func reachLocked(t *testing.T, e *Engine, clk *testClock) {
	t.Helper()
	driveLine(e, clk, 0.5, 0.5, 0.7, 0.3, 12)
	hold(e, clk, 0.7, 0.3, 50)
	if got := e.State(); got != Locked {
		t.Fatalf("expected Locked after settling, got %s", got)
	}
}

func TestStartRequiresCalibration(t *testing.T) {
	e := New(DefaultConfig(), &fakeDriver{}, nil)
	if err := e.Start(); !errors.Is(err, ErrUncalibrated) {
		t.Fatalf("expected ErrUncalibrated, got %v", err)
	}
}

func TestStartEntersRestEnlarged(t *testing.T) {
	e, driver, _ := newTestEngine(t)

	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := e.State(); got != Rest {
		t.Fatalf("expected Rest, got %s", got)
	}
	p, ok := driver.lastMove()
	if !ok || p.X != 0.5 || p.Y != 0.5 {
		t.Fatalf("cursor not parked at rest, got %+v", p)
	}
	if len(driver.enlarged) == 0 || !driver.enlarged[len(driver.enlarged)-1] {
		t.Fatal("cursor should be enlarged at rest")
	}

	if err := e.Start(); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive on double start, got %v", err)
	}
}

func TestLinearGestureEntersMoving(t *testing.T) {
	e, driver, clk := newTestEngine(t)
	var seq []State
	e.OnTransition = func(tr Transition) { seq = append(seq, tr.To) }
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	driveLine(e, clk, 0.5, 0.5, 0.7, 0.3, 12)

	sawMoving := false
	for _, s := range seq {
		if s == Moving {
			sawMoving = true
		}
	}
	if !sawMoving {
		t.Fatalf("linear gesture never entered Moving, transitions %v", seq)
	}
	// Moving shrinks the cursor back to normal size.
	if driver.enlarged[len(driver.enlarged)-1] {
		t.Fatal("cursor should not be enlarged once moving")
	}
}

func TestNonLinearMotionStaysAtRest(t *testing.T) {
	e, driver, clk := newTestEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	// A sharp bend: plenty of displacement, far from straight.
	arc := [][2]float64{
		{0.55, 0.50}, {0.60, 0.50}, {0.65, 0.51}, {0.68, 0.54},
		{0.70, 0.58}, {0.70, 0.64}, {0.70, 0.70},
	}
	for _, p := range arc {
		clk.advance(frameStep)
		tick(e, frameAt(p[0], p[1], clk.t))
	}

	if got := e.State(); got != Rest {
		t.Fatalf("curved motion must not leave Rest, got %s", got)
	}
	// The rejection snapped the tentative cursor back at least once after
	// the initial park.
	snaps := 0
	driver.mu.Lock()
	for _, p := range driver.moves {
		if p.X == 0.5 && p.Y == 0.5 {
			snaps++
		}
	}
	driver.mu.Unlock()
	if snaps < 2 {
		t.Fatalf("expected a snap back to rest, moves %v", driver.moves)
	}
}

func TestEndToEndSelection(t *testing.T) {
	e, driver, clk := newTestEngine(t)
	var seq []State
	e.OnTransition = func(tr Transition) { seq = append(seq, tr.To) }
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	reachLocked(t, e, clk)
	blink(e, clk, 0.7, 0.3)

	actions := driver.actionList()
	if len(actions) != 1 || actions[0] != DoubleClick {
		t.Fatalf("expected one double click, got %v", actions)
	}
	if got := e.State(); got != Rest {
		t.Fatalf("expected return to Rest after action, got %s", got)
	}
	if !driver.enlarged[len(driver.enlarged)-1] {
		t.Fatal("cursor should be enlarged again at rest")
	}

	want := []State{Rest, Moving, Fixating, FineAdjust, Locked, Acting, Rest}
	i := 0
	for _, s := range seq {
		if i < len(want) && s == want[i] {
			i++
		}
	}
	if i != len(want) {
		t.Fatalf("transition sequence %v missing expected order %v", seq, want)
	}
}

func TestSettleTimerRestartsOnExcursion(t *testing.T) {
	e, _, clk := newTestEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	driveLine(e, clk, 0.5, 0.5, 0.7, 0.3, 12)
	hold(e, clk, 0.7, 0.3, 27) // ~0.89s, just under the settle duration
	if got := e.State(); got != Fixating {
		t.Fatalf("expected still Fixating before settle completes, got %s", got)
	}

	// Excursion beyond the stability radius restarts the timer from zero.
	clk.advance(frameStep)
	tick(e, frameAt(0.75, 0.3, clk.t))

	hold(e, clk, 0.75, 0.3, 27)
	if got := e.State(); got != Fixating {
		t.Fatalf("settle timer should have restarted, got %s", got)
	}

	hold(e, clk, 0.75, 0.3, 5)
	if got := e.State(); got != FineAdjust {
		t.Fatalf("expected FineAdjust after full settle, got %s", got)
	}
}

func TestFineAdjustBoundsCorrections(t *testing.T) {
	e, _, clk := newTestEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	driveLine(e, clk, 0.5, 0.5, 0.7, 0.3, 12)
	hold(e, clk, 0.7, 0.3, 33) // past settle, into fine adjustment
	if got := e.State(); got != FineAdjust {
		t.Fatalf("expected FineAdjust, got %s", got)
	}

	// A small correction moves the target; a wild glance does not.
	clk.advance(frameStep)
	tick(e, frameAt(0.73, 0.3, clk.t))
	e.mu.Lock()
	target := e.sess.target
	e.mu.Unlock()
	if target.X != 0.73 {
		t.Fatalf("small correction should move target, at (%.2f,%.2f)", target.X, target.Y)
	}

	clk.advance(frameStep)
	tick(e, frameAt(0.2, 0.9, clk.t))
	e.mu.Lock()
	target = e.sess.target
	e.mu.Unlock()
	if target.X != 0.73 || target.Y != 0.3 {
		t.Fatalf("large excursion must not move target, at (%.2f,%.2f)", target.X, target.Y)
	}
}

func TestTriggerIgnoredOutsideLocked(t *testing.T) {
	e, driver, clk := newTestEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	blink(e, clk, 0.5, 0.5)

	if got := e.State(); got != Rest {
		t.Fatalf("blink at rest must not change state, got %s", got)
	}
	if actions := driver.actionList(); len(actions) != 0 {
		t.Fatalf("blink at rest dispatched %v", actions)
	}
}

func TestHoldTimeoutAbandonsLock(t *testing.T) {
	e, driver, clk := newTestEngine(t)
	var seq []State
	e.OnTransition = func(tr Transition) { seq = append(seq, tr.To) }
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	reachLocked(t, e, clk)

	clk.advance(DefaultConfig().HoldTimeout)
	sweepOnly(e)

	if got := e.State(); got != Rest {
		t.Fatalf("expected abandoned lock to return to Rest, got %s", got)
	}
	if actions := driver.actionList(); len(actions) != 0 {
		t.Fatalf("abandonment must not dispatch, got %v", actions)
	}
	if seq[len(seq)-1] != Rest {
		t.Fatalf("last transition should be to Rest, got %v", seq)
	}
}

func TestRestSnapBackAfterInactivity(t *testing.T) {
	e, driver, clk := newTestEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	// A slight tentative drift, then no frames for a second.
	clk.advance(frameStep)
	tick(e, frameAt(0.52, 0.5, clk.t))
	p, _ := driver.lastMove()
	if p.X != 0.52 {
		t.Fatalf("tentative tracking should follow gaze, at (%.2f,%.2f)", p.X, p.Y)
	}

	clk.advance(DefaultConfig().RestInactivity)
	sweepOnly(e)

	p, _ = driver.lastMove()
	if p.X != 0.5 || p.Y != 0.5 {
		t.Fatalf("cursor should have snapped to rest, at (%.2f,%.2f)", p.X, p.Y)
	}
}

func TestInactivityTerminatesSession(t *testing.T) {
	e, _, clk := newTestEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	clk.advance(DefaultConfig().InactivityTimeout)
	sweepOnly(e)

	if got := e.State(); got != Terminated {
		t.Fatalf("expected Terminated after inactivity, got %s", got)
	}

	// A fresh session can start over the terminated one.
	if err := e.Start(); err != nil {
		t.Fatalf("restart after termination: %v", err)
	}
	if got := e.State(); got != Rest {
		t.Fatalf("expected Rest after restart, got %s", got)
	}
}

func TestFaceLostFreezesCursor(t *testing.T) {
	e, driver, clk := newTestEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	driveLine(e, clk, 0.5, 0.5, 0.7, 0.3, 12)

	before := driver.moveCount()
	state := e.State()

	clk.advance(frameStep)
	lost := feature.Vector{Timestamp: clk.t} // zero confidence
	tick(e, lost)

	if driver.moveCount() != before {
		t.Fatal("cursor must not move while the face is lost")
	}
	if got := e.State(); got != state {
		t.Fatalf("face loss changed state %s -> %s", state, got)
	}
}

func TestStopSuppressesPendingDispatch(t *testing.T) {
	e, driver, clk := newTestEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	reachLocked(t, e, clk)

	e.Stop()
	blink(e, clk, 0.7, 0.3)

	if actions := driver.actionList(); len(actions) != 0 {
		t.Fatalf("no action may dispatch after a stop request, got %v", actions)
	}
}

func TestRunStopTerminates(t *testing.T) {
	driver := &fakeDriver{}
	cfg := DefaultConfig()
	cfg.FrameInterval = 2 * time.Millisecond
	e := New(cfg, driver, nil)
	e.SetModel(identityModel())

	if err := e.Run(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession before start, got %v", err)
	}

	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	e.Offer(frameAt(0.5, 0.5, time.Now()))
	e.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after stop")
	}
	if got := e.State(); got != Terminated {
		t.Fatalf("expected Terminated, got %s", got)
	}
}

func TestMailboxKeepsOnlyLatest(t *testing.T) {
	var m mailbox

	if _, ok := m.take(); ok {
		t.Fatal("empty mailbox yielded a frame")
	}

	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m.offer(frameAt(0.1, 0.1, ts))
	m.offer(frameAt(0.9, 0.9, ts.Add(frameStep)))

	f, ok := m.take()
	if !ok {
		t.Fatal("expected a frame")
	}
	if f.PupilLeft.X != 0.9 {
		t.Fatalf("expected the newer frame, got %+v", f)
	}
	if _, ok := m.take(); ok {
		t.Fatal("take must consume the slot")
	}
}

func TestGazeRingEvictsOldest(t *testing.T) {
	r := newGazeRing(3)
	for i := 0; i < 5; i++ {
		r.push(feature.GazePoint{X: float64(i)})
	}
	pts := r.points()
	if len(pts) != 3 {
		t.Fatalf("expected 3 points, got %d", len(pts))
	}
	if pts[0].X != 2 || pts[2].X != 4 {
		t.Fatalf("unexpected ring contents %v", pts)
	}
	latest, ok := r.latest()
	if !ok || latest.X != 4 {
		t.Fatalf("latest = %v, %v", latest, ok)
	}
}

func TestCalibrationSurface(t *testing.T) {
	e, _, _ := newTestEngine(t)

	if err := e.AddCalibrationSample(calibration.Sample{}); !errors.Is(err, ErrNoCalibrationSession) {
		t.Fatalf("expected ErrNoCalibrationSession, got %v", err)
	}

	cfg := calibration.DefaultConfig()
	if err := e.BeginCalibrationSession(cfg); err != nil {
		t.Fatalf("begin: %v", err)
	}

	for _, target := range cfg.GridPoints() {
		yaw := (target.X-0.5)*0.2 + (target.Y-0.5)*0.05
		pitch := (target.Y-0.5)*0.2 + (target.X-0.5)*0.05
		for burst := 0; burst < 3; burst++ {
			err := e.AddCalibrationSample(calibration.Sample{
				Feature: feature.Vector{
					PupilLeft:   target,
					PupilRight:  target,
					HeadYaw:     yaw,
					HeadPitch:   pitch,
					EyeOpenness: 1,
					Confidence:  1,
				},
				Target: target,
			})
			if err != nil {
				t.Fatalf("add sample: %v", err)
			}
		}
	}

	prev := e.Model()
	model, err := e.FinishCalibrationSession()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if model.Residual > 0.01 {
		t.Fatalf("clean synthetic fit has residual %.4f", model.Residual)
	}
	if e.Model() == prev {
		t.Fatal("finish must install the new model")
	}

	if _, err := e.FinishCalibrationSession(); !errors.Is(err, ErrNoCalibrationSession) {
		t.Fatalf("second finish should fail, got %v", err)
	}
}

func TestCalibrationRefusedDuringSession(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.BeginCalibrationSession(calibration.DefaultConfig()); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
}

func TestFailedFitKeepsPreviousModel(t *testing.T) {
	e, _, _ := newTestEngine(t)
	prev := e.Model()

	if err := e.BeginCalibrationSession(calibration.DefaultConfig()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	// Two samples: far below the grid requirement.
	for i := 0; i < 2; i++ {
		_ = e.AddCalibrationSample(calibration.Sample{
			Feature: frameAt(0.5, 0.5, time.Now()),
			Target:  feature.Vec2{X: 0.5, Y: 0.5},
		})
	}
	if _, err := e.FinishCalibrationSession(); !errors.Is(err, calibration.ErrInsufficientSamples) {
		t.Fatalf("expected ErrInsufficientSamples, got %v", err)
	}
	if e.Model() != prev {
		t.Fatal("failed fit must not replace the installed model")
	}
}

func TestSnapshotReflectsSession(t *testing.T) {
	e, _, _ := newTestEngine(t)

	snap := e.Snapshot()
	if snap.State != "idle" || !snap.Calibrated {
		t.Fatalf("unexpected idle snapshot %+v", snap)
	}

	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	snap = e.Snapshot()
	if snap.State != "rest" || snap.SessionID == "" {
		t.Fatalf("unexpected running snapshot %+v", snap)
	}
	if snap.Rest.X != 0.5 || snap.Rest.Y != 0.5 {
		t.Fatalf("snapshot rest position %+v", snap.Rest)
	}
	if snap.ModelVersion != "test-identity" {
		t.Fatalf("snapshot model version %q", snap.ModelVersion)
	}
}
