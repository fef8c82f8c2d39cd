package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultsValidate(t *testing.T) {
	if issues := Default().Validate(); len(issues) != 0 {
		t.Fatalf("default config must validate, got %v", issues)
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.FrameIntervalMS != 33 {
		t.Fatalf("expected default frame interval, got %d", cfg.Engine.FrameIntervalMS)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
engine:
  hold_timeout_ms: 5000
  stability_radius: 0.05
logging:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.HoldTimeoutMS != 5000 {
		t.Fatalf("file override not applied, got %d", cfg.Engine.HoldTimeoutMS)
	}
	if cfg.Engine.StabilityRadius != 0.05 {
		t.Fatalf("stability radius not applied, got %g", cfg.Engine.StabilityRadius)
	}
	// Untouched sections keep their defaults.
	if cfg.Engine.FixationDurationMS != 1000 {
		t.Fatalf("unrelated default clobbered, got %d", cfg.Engine.FixationDurationMS)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("logging level not applied, got %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := writeConfig(t, `
engine:
  hold_timeout_msec: 5000
`)
	if _, err := Load(path); err == nil {
		t.Fatal("misspelled field must be rejected")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
engine:
  hold_timeout_ms: 5000
`)
	t.Setenv("GAZEMOUSE_ENGINE_HOLD_TIMEOUT_MS", "8000")
	t.Setenv("GAZEMOUSE_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.HoldTimeoutMS != 8000 {
		t.Fatalf("env override should win over file, got %d", cfg.Engine.HoldTimeoutMS)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("env log level not applied, got %q", cfg.Logging.Level)
	}
}

func TestValidateCollectsAllIssues(t *testing.T) {
	cfg := Default()
	cfg.Engine.FrameIntervalMS = 0
	cfg.Blink.ClosedThreshold = 0.3 // above open threshold: no hysteresis
	cfg.Smoothing.Alpha = 2

	issues := cfg.Validate()
	if len(issues) < 3 {
		t.Fatalf("expected all three problems reported, got %v", issues)
	}
	joined := strings.Join(issues, "\n")
	for _, want := range []string{"frame_interval_ms", "hysteresis", "alpha"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("issues %v missing %q", issues, want)
		}
	}
}

func TestValidateRequiresATrigger(t *testing.T) {
	cfg := Default()
	cfg.Triggers.EnableBlink = false
	cfg.Triggers.EnableNod = false

	issues := cfg.Validate()
	found := false
	for _, issue := range issues {
		if strings.Contains(issue, "trigger") {
			found = true
		}
	}
	if !found {
		t.Fatalf("disabling every trigger must be reported, got %v", issues)
	}
}

func TestEngineConfigConversion(t *testing.T) {
	cfg := Default()
	cfg.Engine.HoldTimeoutMS = 2500

	out := cfg.EngineConfig()
	if out.HoldTimeout != 2500*time.Millisecond {
		t.Fatalf("hold timeout = %v", out.HoldTimeout)
	}
	if out.FrameInterval != 33*time.Millisecond {
		t.Fatalf("frame interval = %v", out.FrameInterval)
	}
	if out.RestPosition.X != 0.5 || out.RestPosition.Y != 0.5 {
		t.Fatalf("rest position = %+v", out.RestPosition)
	}
}

func TestTriggerRegistryHonorsEnableFlags(t *testing.T) {
	cfg := Default()
	cfg.Triggers.EnableNod = false

	kinds := cfg.TriggerRegistry().Kinds()
	if len(kinds) != 1 || kinds[0] != "blink" {
		t.Fatalf("expected only blink registered, got %v", kinds)
	}
}
