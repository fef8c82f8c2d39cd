package engine

import (
	"gazemouse/internal/log"
	"gazemouse/pkg/calibration"
)

// BeginCalibrationSession opens a calibration run. It is refused while a
// control session is active; the cursor must not be driven from half-built
// mappings.
func (e *Engine) BeginCalibrationSession(config calibration.Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess != nil && e.sess.state != Terminated {
		return ErrSessionActive
	}
	e.calibSes = calibration.NewSession(config)
	log.Info("calibration session opened",
		"grid", config.GridRows*config.GridCols, "margin", config.Margin)
	return nil
}

// AddCalibrationSample records one frame captured while the user fixated the
// given grid target.
func (e *Engine) AddCalibrationSample(sample calibration.Sample) error {
	e.mu.Lock()
	ses := e.calibSes
	e.mu.Unlock()

	if ses == nil {
		return ErrNoCalibrationSession
	}
	return ses.Add(sample)
}

// FinishCalibrationSession fits the collected samples and, on success,
// installs the resulting model. The previous model stays in place when the
// fit fails.
func (e *Engine) FinishCalibrationSession() (*calibration.Model, error) {
	e.mu.Lock()
	ses := e.calibSes
	e.calibSes = nil
	e.mu.Unlock()

	if ses == nil {
		return nil, ErrNoCalibrationSession
	}
	model, err := ses.Finish()
	if err != nil {
		return nil, err
	}
	e.SetModel(model)
	return model, nil
}
