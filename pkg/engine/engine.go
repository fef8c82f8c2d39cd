// Package engine implements the gaze-driven cursor control loop: it turns
// the preprocessed feature stream into cursor commands and dispatched
// actions through a timing-based state machine.
//
// The engine is a consumer on a single-slot mailbox: the frame producer is
// never blocked and never queued behind stale data. One control session
// exists at a time; all session state is mutated only by the engine's own
// processing step.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"gazemouse/internal/log"
	"gazemouse/pkg/calibration"
	"gazemouse/pkg/debug"
	"gazemouse/pkg/feature"
	"gazemouse/pkg/gesture"
	"gazemouse/pkg/trigger"
)

// Transition reports one state change to the listener.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// Engine orchestrates preprocessing, calibration mapping, movement
// classification, trigger detection and the cursor state machine.
type Engine struct {
	config     Config
	driver     CursorDriver
	pre        *feature.Preprocessor
	classifier *gesture.Classifier
	triggers   *trigger.Registry

	model atomic.Pointer[calibration.Model]

	inbox   mailbox
	stopReq atomic.Bool

	mu       sync.Mutex
	sess     *session
	calibSes *calibration.Session

	// OnTransition, if set, is called from the processing step for every
	// state change. Keep it fast; it runs on the control loop.
	OnTransition func(Transition)

	// now is the clock; replaced in tests.
	now func() time.Time

	frameLog *log.Throttle
}

// New creates an engine with the given configuration, cursor driver, and
// trigger registry. A nil registry gets the default blink and nod detectors.
func New(config Config, driver CursorDriver, triggers *trigger.Registry) *Engine {
	if triggers == nil {
		triggers = trigger.NewRegistry(0.5, time.Second)
		triggers.Register(trigger.NewBlinkDetector(trigger.DefaultBlinkConfig()))
		triggers.Register(trigger.NewNodDetector(trigger.DefaultNodConfig()))
	}
	return &Engine{
		config:     config,
		driver:     driver,
		pre:        feature.NewPreprocessor(0.6),
		classifier: gesture.New(gesture.DefaultConfig()),
		triggers:   triggers,
		now:        time.Now,
		frameLog:   log.NewThrottle(2 * time.Second),
	}
}

// SetPreprocessor replaces the default preprocessor, e.g. with a different
// smoothing factor from config.
func (e *Engine) SetPreprocessor(p *feature.Preprocessor) { e.pre = p }

// SetClassifier replaces the default movement classifier.
func (e *Engine) SetClassifier(c *gesture.Classifier) { e.classifier = c }

// SetModel installs a calibration model. The swap is atomic and wholesale:
// a frame being processed sees either the old or the new complete model.
func (e *Engine) SetModel(m *calibration.Model) {
	e.model.Store(m)
	if m != nil {
		log.Info("calibration model installed", "version", m.Version, "residual", m.Residual)
	}
}

// Model returns the active calibration model, or nil.
func (e *Engine) Model() *calibration.Model {
	return e.model.Load()
}

// Calibrated reports whether a valid model is installed.
func (e *Engine) Calibrated() bool {
	return e.model.Load() != nil
}

// Start creates the control session and enters Rest. It fails with
// ErrUncalibrated when no model is installed and with ErrSessionActive when
// a session is already running.
func (e *Engine) Start() error {
	if !e.Calibrated() {
		return ErrUncalibrated
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess != nil && e.sess.state != Terminated {
		return ErrSessionActive
	}

	now := e.now()
	rest := feature.GazePoint{
		X: e.config.RestPosition.X, Y: e.config.RestPosition.Y,
		Confidence: 1, Timestamp: now,
	}
	e.sess = &session{
		id:           uuid.NewString(),
		state:        Idle,
		rest:         rest,
		target:       rest,
		ring:         newGazeRing(e.config.WindowSize),
		lastGaze:     now,
		lastActivity: now,
		startedAt:    now,
	}
	e.stopReq.Store(false)
	e.pre.Reset()
	e.triggers.Reset()

	e.transition(Rest)
	e.driver.MoveTo(rest)
	e.driver.SetEnlarged(true)
	log.Info("control session started", "session", e.sess.id)
	return nil
}

// Offer hands the newest frame to the engine. It never blocks and may be
// called from any goroutine; an undelivered older frame is dropped.
func (e *Engine) Offer(f feature.Vector) {
	e.inbox.offer(f)
}

// Stop requests termination. It is honored before the next frame is
// processed: no action dispatch happens after a stop request is observed.
func (e *Engine) Stop() {
	e.stopReq.Store(true)
}

// Run drives the control loop until the session terminates or ctx is
// cancelled. Start must have succeeded first.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.sess == nil || e.sess.state == Idle || e.sess.state == Terminated {
		e.mu.Unlock()
		return ErrNoSession
	}
	e.mu.Unlock()

	ticker := time.NewTicker(e.config.FrameInterval)
	defer ticker.Stop()

	log.Info("control loop running", "interval", e.config.FrameInterval)

	for {
		select {
		case <-ctx.Done():
			e.terminate()
			return ctx.Err()
		case <-ticker.C:
			if e.stopReq.Load() {
				e.terminate()
				return nil
			}
			f, ok := e.inbox.take()
			e.mu.Lock()
			if ok {
				e.step(f)
			}
			e.sweep()
			done := e.sess.state == Terminated
			e.mu.Unlock()
			if done {
				return nil
			}
		}
	}
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return Idle
	}
	return e.sess.state
}

// step processes one frame. It never panics out: a malformed frame is a
// no-op, preserving loop continuity.
func (e *Engine) step(raw feature.Vector) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("frame step recovered", "panic", r)
		}
	}()

	s := e.sess
	if s == nil || s.state == Idle || s.state == Terminated {
		return
	}
	if !raw.Valid() {
		debug.FrameLog("skipping malformed frame at %v\n", raw.Timestamp)
		return
	}

	// Trigger detection runs on every frame regardless of state, so a
	// detector's rolling history stays warm. The event only has effect
	// in Locked.
	ev, hasEvent := e.triggers.Process(raw)

	if raw.FaceLost() {
		// Freeze: no cursor motion, no state change except via timers,
		// which keep running in sweep.
		e.frameLog.Debug("face lost, cursor frozen", "state", s.state.String())
		return
	}

	model := e.model.Load()
	if model == nil {
		return
	}

	smoothed := e.pre.Smooth(raw)
	gp := model.Apply(smoothed)
	now := e.now()
	s.ring.push(gp)
	s.lastGaze = now

	debug.FrameLog("gaze (%.3f,%.3f) conf %.2f state %s\n", gp.X, gp.Y, gp.Confidence, s.state)

	switch s.state {
	case Rest:
		e.stepRest(gp)
	case Moving:
		e.stepMoving(gp, now)
	case Fixating:
		e.stepFixating(gp, now)
	case FineAdjust:
		e.stepFineAdjust(gp)
	case Locked:
		if hasEvent {
			e.fireAction(ev)
			hasEvent = false
		}
	}

	if hasEvent {
		// Triggers outside Locked produce no transition.
		debug.FrameLog("dropped %s trigger in state %s\n", ev.Kind, s.state)
	}
}

// stepRest tracks gaze tentatively and watches for an accepted linear
// gesture away from rest.
func (e *Engine) stepRest(gp feature.GazePoint) {
	s := e.sess
	e.driver.MoveTo(gp)

	switch e.classifier.Classify(s.ring.points(), s.rest) {
	case gesture.Linear:
		s.target = gp
		s.lastActivity = e.now()
		e.transition(Moving)
		e.driver.SetEnlarged(false)
	case gesture.NonLinear:
		// Jitter or wander: snap back and start a fresh window.
		e.snapToRest()
	}
}

// stepMoving follows gaze until it settles inside the stability radius.
func (e *Engine) stepMoving(gp feature.GazePoint, now time.Time) {
	s := e.sess
	e.driver.MoveTo(gp)

	if gp.Dist(s.target) <= e.config.StabilityRadius {
		s.settleStart = now
		e.transition(Fixating)
		return
	}
	s.target = gp
	s.lastActivity = now
}

// stepFixating restarts the settle timer from zero on any excursion beyond
// the stability radius. Completion is handled by the timer sweep.
func (e *Engine) stepFixating(gp feature.GazePoint, now time.Time) {
	s := e.sess
	if gp.Dist(s.target) > e.config.StabilityRadius {
		s.target = gp
		s.settleStart = now
		e.driver.MoveTo(gp)
	}
}

// stepFineAdjust lets small corrective offsets move the target directly,
// bypassing the linear-motion filter.
func (e *Engine) stepFineAdjust(gp feature.GazePoint) {
	s := e.sess
	if d := gp.Dist(s.target); d > 0 && d <= e.config.FineAdjustRadius {
		s.target = gp
		e.driver.MoveTo(gp)
	}
}

// fireAction dispatches the action for a trigger and returns to rest.
func (e *Engine) fireAction(ev trigger.Event) {
	if e.stopReq.Load() {
		// A termination request observed before dispatch wins.
		return
	}
	s := e.sess
	s.lastActivity = e.now()

	e.transition(Acting)
	action := e.config.action(ev.Kind)
	e.driver.DispatchAction(action)
	log.Info("action dispatched",
		"action", string(action), "trigger", string(ev.Kind),
		"confidence", ev.Confidence, "x", s.target.X, "y", s.target.Y)

	e.returnToRest()
}

// sweep applies every timer-driven rule. Timers fire even when no frames
// arrive (sensor dropout), which is how a lost face eventually ends the
// session through the normal auto-stop path.
func (e *Engine) sweep() {
	s := e.sess
	if s == nil || s.state == Idle || s.state == Terminated {
		return
	}
	now := e.now()

	switch s.state {
	case Rest:
		if s.ring.len() > 0 && now.Sub(s.lastGaze) >= e.config.RestInactivity {
			e.snapToRest()
		}
	case Fixating:
		if now.Sub(s.settleStart) >= e.config.FixationDuration {
			s.fineStart = now
			e.transition(FineAdjust)
		}
	case FineAdjust:
		if now.Sub(s.fineStart) >= e.config.FineAdjustDuration {
			s.lockStart = now
			e.transition(Locked)
			log.Info("target locked", "x", s.target.X, "y", s.target.Y)
		}
	case Locked:
		if now.Sub(s.lockStart) >= e.config.HoldTimeout {
			log.Info("locked position abandoned, returning to rest")
			e.returnToRest()
		}
	}

	if now.Sub(s.lastActivity) >= e.config.InactivityTimeout {
		log.Info("inactivity timeout, ending session",
			"timeout", e.config.InactivityTimeout)
		e.terminateLocked()
	}
}

// snapToRest re-centers the tentative cursor without leaving Rest.
func (e *Engine) snapToRest() {
	s := e.sess
	s.ring.clear()
	s.target = s.rest
	s.lastGaze = e.now()
	e.driver.MoveTo(s.rest)
}

// returnToRest transitions back to Rest after an action or abandonment.
func (e *Engine) returnToRest() {
	s := e.sess
	s.ring.clear()
	s.target = s.rest
	s.lastGaze = e.now()
	e.pre.Reset()
	e.transition(Rest)
	e.driver.MoveTo(s.rest)
	e.driver.SetEnlarged(true)
}

// terminate ends the session from outside the processing step.
func (e *Engine) terminate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.terminateLocked()
}

func (e *Engine) terminateLocked() {
	s := e.sess
	if s == nil || s.state == Terminated {
		return
	}
	if s.state == Rest {
		e.driver.SetEnlarged(false)
	}
	e.transition(Terminated)
	log.Info("control session ended", "session", s.id, "ran", e.now().Sub(s.startedAt))
}

// transition changes state and notifies the listener. Callers hold e.mu.
func (e *Engine) transition(to State) {
	s := e.sess
	from := s.state
	if from == to {
		return
	}
	s.state = to
	debug.Log("state %s -> %s\n", from, to)
	if e.OnTransition != nil {
		e.OnTransition(Transition{From: from, To: to, At: e.now()})
	}
}
