package engine

import "errors"

var (
	// ErrUncalibrated is returned when the engine is started without a
	// valid calibration model. Recoverable: complete calibration and start
	// again.
	ErrUncalibrated = errors.New("engine is not calibrated")

	// ErrSessionActive is returned when an operation requires the engine
	// to be idle.
	ErrSessionActive = errors.New("control session already active")

	// ErrNoSession is returned when an operation requires an active
	// control session.
	ErrNoSession = errors.New("no active control session")

	// ErrNoCalibrationSession is returned when calibration samples arrive
	// without a calibration session in progress.
	ErrNoCalibrationSession = errors.New("no calibration session in progress")
)
