// Package config is the user-facing configuration surface: a YAML file as
// the primary source, environment variables as overrides on top.
//
// Defaults and validation are centralized here so the rest of the code can
// assume a well-formed config. Durations are expressed in milliseconds in
// the file; the section converters produce the engine-native types.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"gazemouse/pkg/calibration"
	"gazemouse/pkg/engine"
	"gazemouse/pkg/feature"
	"gazemouse/pkg/gesture"
	"gazemouse/pkg/trigger"
)

// Config is the top-level YAML configuration.
type Config struct {
	Engine      EngineConfig      `yaml:"engine" envPrefix:"ENGINE_"`
	Smoothing   SmoothingConfig   `yaml:"smoothing" envPrefix:"SMOOTHING_"`
	Gesture     GestureConfig     `yaml:"gesture" envPrefix:"GESTURE_"`
	Triggers    TriggersConfig    `yaml:"triggers" envPrefix:"TRIGGERS_"`
	Blink       BlinkConfig       `yaml:"blink" envPrefix:"BLINK_"`
	Nod         NodConfig         `yaml:"nod" envPrefix:"NOD_"`
	Calibration CalibrationConfig `yaml:"calibration" envPrefix:"CALIBRATION_"`
	Dashboard   DashboardConfig   `yaml:"dashboard" envPrefix:"DASHBOARD_"`
	Logging     LoggingConfig     `yaml:"logging" envPrefix:"LOG_"`
}

// EngineConfig covers the state machine timings and geometry.
type EngineConfig struct {
	FrameIntervalMS      int     `yaml:"frame_interval_ms" env:"FRAME_INTERVAL_MS"`
	RestX                float64 `yaml:"rest_x" env:"REST_X"`
	RestY                float64 `yaml:"rest_y" env:"REST_Y"`
	StabilityRadius      float64 `yaml:"stability_radius" env:"STABILITY_RADIUS"`
	FixationDurationMS   int     `yaml:"fixation_duration_ms" env:"FIXATION_DURATION_MS"`
	FineAdjustDurationMS int     `yaml:"fine_adjust_duration_ms" env:"FINE_ADJUST_DURATION_MS"`
	FineAdjustRadius     float64 `yaml:"fine_adjust_radius" env:"FINE_ADJUST_RADIUS"`
	RestInactivityMS     int     `yaml:"rest_inactivity_ms" env:"REST_INACTIVITY_MS"`
	HoldTimeoutMS        int     `yaml:"hold_timeout_ms" env:"HOLD_TIMEOUT_MS"`
	InactivityTimeoutMS  int     `yaml:"inactivity_timeout_ms" env:"INACTIVITY_TIMEOUT_MS"`
	WindowSize           int     `yaml:"window_size" env:"WINDOW_SIZE"`
}

// SmoothingConfig covers the signal preprocessor.
type SmoothingConfig struct {
	// Alpha is the EWMA factor in (0,1]; 1 disables smoothing.
	Alpha float64 `yaml:"alpha" env:"ALPHA"`
}

// GestureConfig covers the linear movement classifier.
type GestureConfig struct {
	MinSamples       int     `yaml:"min_samples" env:"MIN_SAMPLES"`
	MinDisplacement  float64 `yaml:"min_displacement" env:"MIN_DISPLACEMENT"`
	MaxDeviationFrac float64 `yaml:"max_deviation_frac" env:"MAX_DEVIATION_FRAC"`
	MaxPathRatio     float64 `yaml:"max_path_ratio" env:"MAX_PATH_RATIO"`
	MaxReversals     int     `yaml:"max_reversals" env:"MAX_REVERSALS"`
}

// TriggersConfig covers the shared trigger gating.
type TriggersConfig struct {
	MinConfidence float64 `yaml:"min_confidence" env:"MIN_CONFIDENCE"`
	RefractoryMS  int     `yaml:"refractory_ms" env:"REFRACTORY_MS"`
	EnableBlink   bool    `yaml:"enable_blink" env:"ENABLE_BLINK"`
	EnableNod     bool    `yaml:"enable_nod" env:"ENABLE_NOD"`
}

// BlinkConfig covers the blink detector.
type BlinkConfig struct {
	ClosedThreshold       float64 `yaml:"closed_threshold" env:"CLOSED_THRESHOLD"`
	OpenThreshold         float64 `yaml:"open_threshold" env:"OPEN_THRESHOLD"`
	MinDurationMS         int     `yaml:"min_duration_ms" env:"MIN_DURATION_MS"`
	MaxDurationMS         int     `yaml:"max_duration_ms" env:"MAX_DURATION_MS"`
	MaxCrossingsPerSecond int     `yaml:"max_crossings_per_second" env:"MAX_CROSSINGS_PER_SECOND"`
}

// NodConfig covers the nod detector.
type NodConfig struct {
	DeltaThreshold  float64 `yaml:"delta_threshold" env:"DELTA_THRESHOLD"`
	EnterFraction   float64 `yaml:"enter_fraction" env:"ENTER_FRACTION"`
	ReturnBand      float64 `yaml:"return_band" env:"RETURN_BAND"`
	MaxDurationMS   int     `yaml:"max_duration_ms" env:"MAX_DURATION_MS"`
	MinMonotonicity float64 `yaml:"min_monotonicity" env:"MIN_MONOTONICITY"`
	BaselineAlpha   float64 `yaml:"baseline_alpha" env:"BASELINE_ALPHA"`
}

// CalibrationConfig covers the grid and fit parameters.
type CalibrationConfig struct {
	GridRows          int     `yaml:"grid_rows" env:"GRID_ROWS"`
	GridCols          int     `yaml:"grid_cols" env:"GRID_COLS"`
	Margin            float64 `yaml:"margin" env:"MARGIN"`
	OutlierFactor     float64 `yaml:"outlier_factor" env:"OUTLIER_FACTOR"`
	MaxResidual       float64 `yaml:"max_residual" env:"MAX_RESIDUAL"`
	ConfidenceFalloff float64 `yaml:"confidence_falloff" env:"CONFIDENCE_FALLOFF"`
	ModelPath         string  `yaml:"model_path" env:"MODEL_PATH"`
}

// DashboardConfig covers the web dashboard.
type DashboardConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Port    string `yaml:"port" env:"PORT"`
}

// LoggingConfig covers log output.
type LoggingConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
}

// Default returns a fully-populated Config. Keep it aligned with the
// package-level defaults the sections convert to.
func Default() Config {
	eng := engine.DefaultConfig()
	ges := gesture.DefaultConfig()
	bl := trigger.DefaultBlinkConfig()
	nod := trigger.DefaultNodConfig()
	cal := calibration.DefaultConfig()

	return Config{
		Engine: EngineConfig{
			FrameIntervalMS:      int(eng.FrameInterval / time.Millisecond),
			RestX:                eng.RestPosition.X,
			RestY:                eng.RestPosition.Y,
			StabilityRadius:      eng.StabilityRadius,
			FixationDurationMS:   int(eng.FixationDuration / time.Millisecond),
			FineAdjustDurationMS: int(eng.FineAdjustDuration / time.Millisecond),
			FineAdjustRadius:     eng.FineAdjustRadius,
			RestInactivityMS:     int(eng.RestInactivity / time.Millisecond),
			HoldTimeoutMS:        int(eng.HoldTimeout / time.Millisecond),
			InactivityTimeoutMS:  int(eng.InactivityTimeout / time.Millisecond),
			WindowSize:           eng.WindowSize,
		},
		Smoothing: SmoothingConfig{Alpha: 0.6},
		Gesture: GestureConfig{
			MinSamples:       ges.MinSamples,
			MinDisplacement:  ges.MinDisplacement,
			MaxDeviationFrac: ges.MaxDeviationFrac,
			MaxPathRatio:     ges.MaxPathRatio,
			MaxReversals:     ges.MaxReversals,
		},
		Triggers: TriggersConfig{
			MinConfidence: 0.5,
			RefractoryMS:  1000,
			EnableBlink:   true,
			EnableNod:     true,
		},
		Blink: BlinkConfig{
			ClosedThreshold:       bl.ClosedThreshold,
			OpenThreshold:         bl.OpenThreshold,
			MinDurationMS:         int(bl.MinDuration / time.Millisecond),
			MaxDurationMS:         int(bl.MaxDuration / time.Millisecond),
			MaxCrossingsPerSecond: bl.MaxCrossingsPerSecond,
		},
		Nod: NodConfig{
			DeltaThreshold:  nod.DeltaThreshold,
			EnterFraction:   nod.EnterFraction,
			ReturnBand:      nod.ReturnBand,
			MaxDurationMS:   int(nod.MaxDuration / time.Millisecond),
			MinMonotonicity: nod.MinMonotonicity,
			BaselineAlpha:   nod.BaselineAlpha,
		},
		Calibration: CalibrationConfig{
			GridRows:          cal.GridRows,
			GridCols:          cal.GridCols,
			Margin:            cal.Margin,
			OutlierFactor:     cal.OutlierFactor,
			MaxResidual:       cal.MaxResidual,
			ConfidenceFalloff: cal.ConfidenceFalloff,
			ModelPath:         "calibration.json",
		},
		Dashboard: DashboardConfig{
			Enabled: true,
			Port:    "3000",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// GAZEMOUSE_* environment overrides. An empty path skips the file and uses
// defaults plus environment.
//
// Unknown YAML fields are rejected, which catches typos early.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}

		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode config yaml: %w", err)
		}
		if err := dec.Decode(&struct{}{}); err == nil {
			return Config{}, errors.New("decode config yaml: unexpected trailing document")
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "GAZEMOUSE_"}); err != nil {
		return Config{}, fmt.Errorf("parse env overrides: %w", err)
	}

	return cfg, nil
}

// Validate returns every problem found, not just the first, so a user can
// fix the whole file in one pass.
func (c Config) Validate() []string {
	var issues []string

	bad := func(format string, args ...any) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	if c.Engine.FrameIntervalMS <= 0 {
		bad("engine.frame_interval_ms must be positive, got %d", c.Engine.FrameIntervalMS)
	}
	if c.Engine.RestX < 0 || c.Engine.RestX > 1 || c.Engine.RestY < 0 || c.Engine.RestY > 1 {
		bad("engine rest position (%.2f, %.2f) must lie in [0,1]", c.Engine.RestX, c.Engine.RestY)
	}
	if c.Engine.StabilityRadius <= 0 {
		bad("engine.stability_radius must be positive, got %g", c.Engine.StabilityRadius)
	}
	if c.Engine.FineAdjustRadius < c.Engine.StabilityRadius {
		bad("engine.fine_adjust_radius %g must not be smaller than stability_radius %g",
			c.Engine.FineAdjustRadius, c.Engine.StabilityRadius)
	}
	if c.Engine.FixationDurationMS <= 0 || c.Engine.FineAdjustDurationMS <= 0 {
		bad("engine fixation and fine-adjust durations must be positive")
	}
	if c.Engine.HoldTimeoutMS <= 0 || c.Engine.InactivityTimeoutMS <= 0 {
		bad("engine hold and inactivity timeouts must be positive")
	}
	if c.Engine.WindowSize < 2 {
		bad("engine.window_size must be at least 2, got %d", c.Engine.WindowSize)
	}

	if c.Smoothing.Alpha <= 0 || c.Smoothing.Alpha > 1 {
		bad("smoothing.alpha must be in (0,1], got %g", c.Smoothing.Alpha)
	}

	if c.Gesture.MinSamples < 2 {
		bad("gesture.min_samples must be at least 2, got %d", c.Gesture.MinSamples)
	}
	if c.Gesture.MinDisplacement <= 0 {
		bad("gesture.min_displacement must be positive, got %g", c.Gesture.MinDisplacement)
	}
	if c.Gesture.MaxPathRatio < 1 {
		bad("gesture.max_path_ratio must be at least 1, got %g", c.Gesture.MaxPathRatio)
	}

	if c.Triggers.MinConfidence < 0 || c.Triggers.MinConfidence > 1 {
		bad("triggers.min_confidence must be in [0,1], got %g", c.Triggers.MinConfidence)
	}
	if !c.Triggers.EnableBlink && !c.Triggers.EnableNod {
		bad("at least one trigger gesture must be enabled")
	}

	if c.Blink.OpenThreshold <= c.Blink.ClosedThreshold {
		bad("blink.open_threshold %g must exceed closed_threshold %g for hysteresis",
			c.Blink.OpenThreshold, c.Blink.ClosedThreshold)
	}
	if c.Blink.MinDurationMS >= c.Blink.MaxDurationMS {
		bad("blink.min_duration_ms %d must be below max_duration_ms %d",
			c.Blink.MinDurationMS, c.Blink.MaxDurationMS)
	}

	if c.Nod.DeltaThreshold <= 0 {
		bad("nod.delta_threshold must be positive, got %g", c.Nod.DeltaThreshold)
	}
	if c.Nod.MinMonotonicity < 0 || c.Nod.MinMonotonicity > 1 {
		bad("nod.min_monotonicity must be in [0,1], got %g", c.Nod.MinMonotonicity)
	}

	if c.Calibration.GridRows < 2 || c.Calibration.GridCols < 2 {
		bad("calibration grid must be at least 2x2, got %dx%d",
			c.Calibration.GridRows, c.Calibration.GridCols)
	}
	if c.Calibration.Margin < 0 || c.Calibration.Margin >= 0.5 {
		bad("calibration.margin must be in [0,0.5), got %g", c.Calibration.Margin)
	}
	if c.Calibration.OutlierFactor <= 1 {
		bad("calibration.outlier_factor must exceed 1, got %g", c.Calibration.OutlierFactor)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		bad("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}

	return issues
}

// EngineConfig converts the engine section to the engine's native form.
func (c Config) EngineConfig() engine.Config {
	out := engine.DefaultConfig()
	out.FrameInterval = time.Duration(c.Engine.FrameIntervalMS) * time.Millisecond
	out.RestPosition = feature.Vec2{X: c.Engine.RestX, Y: c.Engine.RestY}
	out.StabilityRadius = c.Engine.StabilityRadius
	out.FixationDuration = time.Duration(c.Engine.FixationDurationMS) * time.Millisecond
	out.FineAdjustDuration = time.Duration(c.Engine.FineAdjustDurationMS) * time.Millisecond
	out.FineAdjustRadius = c.Engine.FineAdjustRadius
	out.RestInactivity = time.Duration(c.Engine.RestInactivityMS) * time.Millisecond
	out.HoldTimeout = time.Duration(c.Engine.HoldTimeoutMS) * time.Millisecond
	out.InactivityTimeout = time.Duration(c.Engine.InactivityTimeoutMS) * time.Millisecond
	out.WindowSize = c.Engine.WindowSize
	return out
}

// GestureConfig converts the gesture section.
func (c Config) GestureConfig() gesture.Config {
	return gesture.Config{
		MinSamples:       c.Gesture.MinSamples,
		MinDisplacement:  c.Gesture.MinDisplacement,
		MaxDeviationFrac: c.Gesture.MaxDeviationFrac,
		MaxPathRatio:     c.Gesture.MaxPathRatio,
		MaxReversals:     c.Gesture.MaxReversals,
	}
}

// TriggerRegistry builds the trigger registry with the enabled detectors.
func (c Config) TriggerRegistry() *trigger.Registry {
	reg := trigger.NewRegistry(
		c.Triggers.MinConfidence,
		time.Duration(c.Triggers.RefractoryMS)*time.Millisecond,
	)
	if c.Triggers.EnableBlink {
		reg.Register(trigger.NewBlinkDetector(trigger.BlinkConfig{
			ClosedThreshold:       c.Blink.ClosedThreshold,
			OpenThreshold:         c.Blink.OpenThreshold,
			MinDuration:           time.Duration(c.Blink.MinDurationMS) * time.Millisecond,
			MaxDuration:           time.Duration(c.Blink.MaxDurationMS) * time.Millisecond,
			MaxCrossingsPerSecond: c.Blink.MaxCrossingsPerSecond,
		}))
	}
	if c.Triggers.EnableNod {
		reg.Register(trigger.NewNodDetector(trigger.NodConfig{
			DeltaThreshold:  c.Nod.DeltaThreshold,
			EnterFraction:   c.Nod.EnterFraction,
			ReturnBand:      c.Nod.ReturnBand,
			MaxDuration:     time.Duration(c.Nod.MaxDurationMS) * time.Millisecond,
			MinMonotonicity: c.Nod.MinMonotonicity,
			BaselineAlpha:   c.Nod.BaselineAlpha,
		}))
	}
	return reg
}

// CalibrationConfig converts the calibration section.
func (c Config) CalibrationConfig() calibration.Config {
	return calibration.Config{
		GridRows:          c.Calibration.GridRows,
		GridCols:          c.Calibration.GridCols,
		Margin:            c.Calibration.Margin,
		OutlierFactor:     c.Calibration.OutlierFactor,
		MaxResidual:       c.Calibration.MaxResidual,
		ConfidenceFalloff: c.Calibration.ConfidenceFalloff,
	}
}

// Preprocessor builds the configured signal preprocessor.
func (c Config) Preprocessor() *feature.Preprocessor {
	return feature.NewPreprocessor(c.Smoothing.Alpha)
}
