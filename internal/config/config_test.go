package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: "9090"
game:
  max_questions: 3
  max_value: 20
effects:
  durations:
    Shield: 30s
    Magnet: nope
team:
  lives:
    normal: 4
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Game.MaxQuestions != 3 || cfg.Game.MaxValue != 20 {
		t.Fatalf("overrides not applied: %+v", cfg.Game)
	}
	if cfg.Game.DecoyCount != 3 || cfg.Team.BasePoints != 100 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if cfg.Team.Lives["normal"] != 4 {
		t.Fatalf("expected normal lives 4, got %v", cfg.Team.Lives)
	}
	durations := cfg.PowerUpDurations()
	if durations["Shield"] != 30*time.Second {
		t.Fatalf("expected shield 30s, got %v", durations)
	}
	if _, ok := durations["Magnet"]; ok {
		t.Fatalf("invalid duration should be skipped")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
game:
  min_value: 10
  max_value: 5
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := TTLDuration("250ms", time.Minute); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", got)
	}
	if got := TTLDuration("soon", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for invalid value, got %v", got)
	}
}
