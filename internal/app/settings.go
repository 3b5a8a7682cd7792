package app

import (
	"time"

	"freefall-server/internal/domain"
)

// Settings tunes the solo and team state machines.
type Settings struct {
	MaxQuestions     int
	PointsPerCorrect int
	ResolveDelay     time.Duration
	MaxRegenerate    int
	Team             TeamSettings
}

// TeamSettings tunes team challenges.
type TeamSettings struct {
	Names             []string
	Lives             map[domain.Difficulty]int
	BasePoints        int
	ComboStep         int
	ComboCap          int
	TimeBonusMax      int
	TimeBonusWindow   time.Duration
	ScoreAttackTarget int
	QuestionCount     int
	TimeLimit         time.Duration
	GraceDelay        time.Duration
}

// DefaultSettings returns the production defaults.
func DefaultSettings() Settings {
	return Settings{
		MaxQuestions:     10,
		PointsPerCorrect: 1,
		ResolveDelay:     1500 * time.Millisecond,
		MaxRegenerate:    5,
		Team: TeamSettings{
			Names: []string{"red", "blue"},
			Lives: map[domain.Difficulty]int{
				domain.DifficultyEasy:   7,
				domain.DifficultyNormal: 5,
				domain.DifficultyHard:   3,
			},
			BasePoints:        100,
			ComboStep:         10,
			ComboCap:          50,
			TimeBonusMax:      50,
			TimeBonusWindow:   5 * time.Second,
			ScoreAttackTarget: 2000,
			QuestionCount:     10,
			TimeLimit:         3 * time.Minute,
			GraceDelay:        10 * time.Second,
		},
	}
}

// comboBonus is zero for the first correct answer of a streak and grows by ComboStep per
// additional answer, capped at ComboCap.
func (t TeamSettings) comboBonus(combo int) int {
	if combo <= 1 {
		return 0
	}
	return min((combo-1)*t.ComboStep, t.ComboCap)
}

// timeBonus rewards answers faster than TimeBonusWindow linearly up to TimeBonusMax.
func (t TeamSettings) timeBonus(responseTimeMs int64) int {
	window := t.TimeBonusWindow.Milliseconds()
	if window <= 0 || responseTimeMs < 0 || responseTimeMs >= window {
		return 0
	}
	return int(int64(t.TimeBonusMax) * (window - responseTimeMs) / window)
}
