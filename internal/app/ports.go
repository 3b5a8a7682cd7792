package app

import (
	"context"
	"fmt"
	"time"

	"freefall-server/internal/clock"
	"freefall-server/internal/domain"
	"freefall-server/internal/effects"
	"freefall-server/internal/metrics"
	"freefall-server/internal/powerup"
	"freefall-server/internal/problem"
	"github.com/sirupsen/logrus"
)

// SessionRepository abstracts where player sessions live (in-memory, Redis-backed, etc).
type SessionRepository interface {
	GetOrCreate(playerID string, create func() *SoloSession) (*SoloSession, bool)
	Get(playerID string) (*SoloSession, bool)
	Delete(playerID string)
	SaveSnapshot(ctx context.Context, snapshot domain.PlayerSession)
}

// QuestionSetRepository loads curated challenge content (from cache/backing store).
type QuestionSetRepository interface {
	GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// ProblemSource produces rounds; *problem.Generator is the production implementation.
type ProblemSource interface {
	Generate(op domain.Operator) (domain.Problem, error)
	Decoys(correct int) ([]int, error)
	Shuffle(values []int) []int
	Config() problem.Config
}

// Presenter is the rendering/UI collaborator. Every call is best effort: errors are logged and
// never roll back a state transition.
type Presenter interface {
	SpawnTargets(playerID string, req domain.SpawnRequest) error
	DespawnTargets(playerID string) error
	ShowProblem(playerID string, view domain.ProblemView) error
	RoundResult(playerID string, result domain.RoundResult) error
	SessionEnded(playerID string, summary domain.SessionSummary) error
	FallSpeed(playerID string, scale float64) error
	Magnet(playerID string, enabled bool, lane int) error
	TeamRound(playerID string, result domain.TeamRoundResult) error
	Lobby(playerID string, snapshot domain.ChallengeSnapshot) error
	ChallengeEnded(playerID string, summary domain.ChallengeSummary) error
}

// ResultRecorder persists finished sessions and challenges.
type ResultRecorder interface {
	RecordSession(ctx context.Context, summary domain.SessionSummary) error
	RecordChallenge(ctx context.Context, summary domain.ChallengeSummary) error
}

// NopPresenter discards every payload.
type NopPresenter struct{}

func (NopPresenter) SpawnTargets(string, domain.SpawnRequest) error { return nil }
func (NopPresenter) DespawnTargets(string) error { return nil }
func (NopPresenter) ShowProblem(string, domain.ProblemView) error { return nil }
func (NopPresenter) RoundResult(string, domain.RoundResult) error { return nil }
func (NopPresenter) SessionEnded(string, domain.SessionSummary) error { return nil }
func (NopPresenter) FallSpeed(string, float64) error { return nil }
func (NopPresenter) Magnet(string, bool, int) error { return nil }
func (NopPresenter) TeamRound(string, domain.TeamRoundResult) error { return nil }
func (NopPresenter) Lobby(string, domain.ChallengeSnapshot) error { return nil }
func (NopPresenter) ChallengeEnded(string, domain.ChallengeSummary) error { return nil }

// NopRecorder drops results.
type NopRecorder struct{}

func (NopRecorder) RecordSession(context.Context, domain.SessionSummary) error { return nil }
func (NopRecorder) RecordChallenge(context.Context, domain.ChallengeSummary) error { return nil }

const recordTimeout = 5 * time.Second

// runtime bundles the collaborators shared by every state machine of one service.
type runtime struct {
	settings  Settings
	clock     clock.Clock
	generator ProblemSource
	presenter Presenter
	results   ResultRecorder
	registry  *effects.Registry
	powerups  *powerup.Manager
	metrics   *metrics.Metrics
	log       *logrus.Entry
	snapshots func(domain.PlayerSession)
}

// actions are side effects collected while a state machine holds its lock and run after it
// releases it, so collaborators and callbacks can never re-enter a held lock.
type actions []func()

func (a *actions) add(f func()) { *a = append(*a, f) }

func (rt *runtime) run(list actions) {
	for _, f := range list {
		rt.safely(f)
	}
}

func (rt *runtime) safely(f func()) {
	defer func() {
		if rec := recover(); rec != nil {
			rt.log.WithField("panic", rec).Error("collaborator call panicked")
		}
	}()
	f()
}

// notify wraps a presenter call; failures are logged at warn.
func (rt *runtime) notify(op, playerID string, call func(Presenter) error) func() {
	return func() {
		if err := call(rt.presenter); err != nil {
			rt.log.WithFields(logrus.Fields{"op": op, "player_id": playerID}).WithError(err).Warn("presenter call failed")
		}
	}
}

func (rt *runtime) recordSession(summary domain.SessionSummary) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := rt.results.RecordSession(ctx, summary); err != nil {
			rt.log.WithField("player_id", summary.PlayerID).WithError(err).Warn("record session result failed")
		}
	}
}

func (rt *runtime) recordChallenge(summary domain.ChallengeSummary) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := rt.results.RecordChallenge(ctx, summary); err != nil {
			rt.log.WithField("challenge_id", summary.ChallengeID).WithError(err).Warn("record challenge result failed")
		}
	}
}

// generate builds a complete problem, regenerating on failure so targets always match the answer.
func (rt *runtime) generate() (domain.Problem, error) {
	attempts := rt.settings.MaxRegenerate
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		p, err := rt.generator.Generate("")
		if err == nil {
			return p, nil
		}
		lastErr = err
		rt.log.WithError(err).Debug("problem generation failed, regenerating")
	}
	return domain.Problem{}, fmt.Errorf("generate problem after %d attempts: %w", attempts, lastErr)
}

// layout assigns every choice of p to a random lane.
func (rt *runtime) layout(p domain.Problem) []domain.Target {
	values := rt.generator.Shuffle(p.Choices())
	targets := make([]domain.Target, len(values))
	for i, v := range values {
		targets[i] = domain.Target{Value: v, Lane: i}
	}
	return targets
}

func laneOf(targets []domain.Target, value int) int {
	for _, t := range targets {
		if t.Value == value {
			return t.Lane
		}
	}
	return -1
}

func accuracy(correct, wrong int) float64 {
	if correct+wrong == 0 {
		return 0
	}
	return float64(correct) / float64(correct+wrong)
}
