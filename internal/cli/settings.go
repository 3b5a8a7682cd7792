package cli

import (
	"errors"
	"io/fs"
	"math/rand"
	"time"

	"freefall-server/internal/app"
	"freefall-server/internal/config"
	"freefall-server/internal/domain"
	"freefall-server/internal/problem"
)

// loadConfig reads path, falling back to defaults when the file does not exist.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func gameSettings(cfg config.Config) app.Settings {
	def := app.DefaultSettings()
	s := app.Settings{
		MaxQuestions:     cfg.Game.MaxQuestions,
		PointsPerCorrect: cfg.Game.PointsPerCorrect,
		ResolveDelay:     config.TTLDuration(cfg.Game.ResolveDelay, def.ResolveDelay),
		MaxRegenerate:    def.MaxRegenerate,
		Team: app.TeamSettings{
			Names:             cfg.Team.Names,
			Lives:             make(map[domain.Difficulty]int, len(cfg.Team.Lives)),
			BasePoints:        cfg.Team.BasePoints,
			ComboStep:         cfg.Team.ComboStep,
			ComboCap:          cfg.Team.ComboCap,
			TimeBonusMax:      cfg.Team.TimeBonusMax,
			TimeBonusWindow:   config.TTLDuration(cfg.Team.TimeBonusWindow, def.Team.TimeBonusWindow),
			ScoreAttackTarget: cfg.Team.ScoreAttackTarget,
			QuestionCount:     cfg.Team.QuestionCount,
			TimeLimit:         config.TTLDuration(cfg.Team.TimeLimit, def.Team.TimeLimit),
			GraceDelay:        config.TTLDuration(cfg.Team.GraceDelay, def.Team.GraceDelay),
		},
	}
	for name, lives := range cfg.Team.Lives {
		s.Team.Lives[domain.Difficulty(name)] = lives
	}
	return s
}

func newGenerator(cfg config.Config) (*problem.Generator, error) {
	pc := problem.DefaultConfig()
	pc.Min = cfg.Game.MinValue
	pc.Max = cfg.Game.MaxValue
	pc.DecoyCount = cfg.Game.DecoyCount
	pc.DecoyRadius = cfg.Game.DecoyRadius
	if len(cfg.Game.Operators) > 0 {
		pc.Operators = make([]domain.Operator, 0, len(cfg.Game.Operators))
		for _, op := range cfg.Game.Operators {
			pc.Operators = append(pc.Operators, domain.Operator(op))
		}
	}
	return problem.NewGenerator(pc, rand.New(rand.NewSource(time.Now().UnixNano())))
}
