package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	QuestionSets struct {
		TTL string `yaml:"ttl"`
	} `yaml:"question_sets"`
	Game struct {
		MinValue         int      `yaml:"min_value" validate:"gte=0"`
		MaxValue         int      `yaml:"max_value" validate:"gtfield=MinValue"`
		DecoyCount       int      `yaml:"decoy_count" validate:"gte=1,lte=8"`
		DecoyRadius      int      `yaml:"decoy_radius" validate:"gte=1"`
		Operators        []string `yaml:"operators" validate:"dive,oneof=+ - * /"`
		MaxQuestions     int      `yaml:"max_questions" validate:"gte=1"`
		PointsPerCorrect int      `yaml:"points_per_correct" validate:"gte=1"`
		ResolveDelay     string   `yaml:"resolve_delay"`
	} `yaml:"game"`
	Effects struct {
		SweepInterval string            `yaml:"sweep_interval"`
		Durations     map[string]string `yaml:"durations"`
	} `yaml:"effects"`
	Team struct {
		Names             []string       `yaml:"names" validate:"min=2,unique,dive,required"`
		Lives             map[string]int `yaml:"lives" validate:"required,dive,keys,oneof=easy normal hard,endkeys,gte=1"`
		BasePoints        int            `yaml:"base_points" validate:"gte=1"`
		ComboStep         int            `yaml:"combo_step" validate:"gte=0"`
		ComboCap          int            `yaml:"combo_cap" validate:"gte=0"`
		TimeBonusMax      int            `yaml:"time_bonus_max" validate:"gte=0"`
		TimeBonusWindow   string         `yaml:"time_bonus_window"`
		ScoreAttackTarget int            `yaml:"score_attack_target" validate:"gte=1"`
		QuestionCount     int            `yaml:"question_count" validate:"gte=1"`
		TimeLimit         string         `yaml:"time_limit"`
		GraceDelay        string         `yaml:"grace_delay"`
	} `yaml:"team"`
}

// Default returns a configuration that runs a single in-memory node.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Redis.TTL = "10m"
	cfg.QuestionSets.TTL = "10m"

	cfg.Game.MinValue = 0
	cfg.Game.MaxValue = 15
	cfg.Game.DecoyCount = 3
	cfg.Game.DecoyRadius = 4
	cfg.Game.Operators = []string{"+", "-", "*", "/"}
	cfg.Game.MaxQuestions = 10
	cfg.Game.PointsPerCorrect = 1
	cfg.Game.ResolveDelay = "1500ms"

	cfg.Effects.SweepInterval = "100ms"

	cfg.Team.Names = []string{"red", "blue"}
	cfg.Team.Lives = map[string]int{"easy": 7, "normal": 5, "hard": 3}
	cfg.Team.BasePoints = 100
	cfg.Team.ComboStep = 10
	cfg.Team.ComboCap = 50
	cfg.Team.TimeBonusMax = 50
	cfg.Team.TimeBonusWindow = "5s"
	cfg.Team.ScoreAttackTarget = 2000
	cfg.Team.QuestionCount = 10
	cfg.Team.TimeLimit = "3m"
	cfg.Team.GraceDelay = "10s"
	return cfg
}

// Load reads YAML config from path on top of Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks value ranges with the struct tags.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// PowerUpDurations parses the configured per-power-up durations. Invalid entries are skipped.
func (c Config) PowerUpDurations() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.Effects.Durations))
	for name, raw := range c.Effects.Durations {
		if d := TTLDuration(raw, 0); d > 0 {
			out[name] = d
		}
	}
	return out
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
