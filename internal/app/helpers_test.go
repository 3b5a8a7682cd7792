package app_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"freefall-server/internal/app"
	"freefall-server/internal/clock"
	"freefall-server/internal/domain"
	"freefall-server/internal/infra/memory"
	"freefall-server/internal/problem"
)

// scriptedProblems always serves the same problems in order and never shuffles.
type scriptedProblems struct {
	mu   sync.Mutex
	list []domain.Problem
	next int
}

func (s *scriptedProblems) Generate(domain.Operator) (domain.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.list[s.next%len(s.list)]
	s.next++
	return p, nil
}

func (s *scriptedProblems) Decoys(correct int) ([]int, error) {
	return []int{correct + 1, correct + 2, correct + 3}, nil
}

func (s *scriptedProblems) Shuffle(values []int) []int {
	return append([]int(nil), values...)
}

func (s *scriptedProblems) Config() problem.Config { return problem.DefaultConfig() }

func fivePlusThree() domain.Problem {
	return domain.Problem{Operand1: 5, Operand2: 3, Operator: domain.OpAdd, CorrectAnswer: 8, DecoyAnswers: []int{6, 7, 9}}
}

type recordingPresenter struct {
	app.NopPresenter

	mu            sync.Mutex
	spawns        map[string][]domain.SpawnRequest
	results       map[string][]domain.RoundResult
	ends          map[string][]domain.SessionSummary
	teamRounds    map[string][]domain.TeamRoundResult
	challengeEnds map[string][]domain.ChallengeSummary
	fallSpeeds    map[string][]float64
}

func newRecordingPresenter() *recordingPresenter {
	return &recordingPresenter{
		spawns:        make(map[string][]domain.SpawnRequest),
		results:       make(map[string][]domain.RoundResult),
		ends:          make(map[string][]domain.SessionSummary),
		teamRounds:    make(map[string][]domain.TeamRoundResult),
		challengeEnds: make(map[string][]domain.ChallengeSummary),
		fallSpeeds:    make(map[string][]float64),
	}
}

func (p *recordingPresenter) SpawnTargets(playerID string, req domain.SpawnRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spawns[playerID] = append(p.spawns[playerID], req)
	return nil
}

func (p *recordingPresenter) RoundResult(playerID string, result domain.RoundResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[playerID] = append(p.results[playerID], result)
	return nil
}

func (p *recordingPresenter) SessionEnded(playerID string, summary domain.SessionSummary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ends[playerID] = append(p.ends[playerID], summary)
	return nil
}

func (p *recordingPresenter) FallSpeed(playerID string, scale float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallSpeeds[playerID] = append(p.fallSpeeds[playerID], scale)
	return nil
}

func (p *recordingPresenter) TeamRound(playerID string, result domain.TeamRoundResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.teamRounds[playerID] = append(p.teamRounds[playerID], result)
	return nil
}

func (p *recordingPresenter) ChallengeEnded(playerID string, summary domain.ChallengeSummary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.challengeEnds[playerID] = append(p.challengeEnds[playerID], summary)
	return nil
}

func (p *recordingPresenter) spawnCount(playerID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.spawns[playerID])
}

func (p *recordingPresenter) lastSpawn(t *testing.T, playerID string) domain.SpawnRequest {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	list := p.spawns[playerID]
	if len(list) == 0 {
		t.Fatalf("no spawn for %s", playerID)
	}
	return list[len(list)-1]
}

func (p *recordingPresenter) lastResult(t *testing.T, playerID string) domain.RoundResult {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	list := p.results[playerID]
	if len(list) == 0 {
		t.Fatalf("no round result for %s", playerID)
	}
	return list[len(list)-1]
}

func (p *recordingPresenter) endsFor(playerID string) []domain.SessionSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.SessionSummary(nil), p.ends[playerID]...)
}

func (p *recordingPresenter) challengeEndsFor(playerID string) []domain.ChallengeSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.ChallengeSummary(nil), p.challengeEnds[playerID]...)
}

type harness struct {
	service   *app.GameService
	clock     *clock.Fake
	presenter *recordingPresenter
	store     *memory.SessionStore
}

func newHarness(t *testing.T, mutate func(*app.Settings), questions app.QuestionSetRepository) *harness {
	t.Helper()
	settings := app.DefaultSettings()
	if mutate != nil {
		mutate(&settings)
	}
	h := &harness{
		clock:     clock.NewFake(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)),
		presenter: newRecordingPresenter(),
		store:     memory.NewSessionStore(),
	}
	ids := 0
	service, err := app.NewGameService(h.store, app.Options{
		Settings:  settings,
		Clock:     h.clock,
		Generator: &scriptedProblems{list: []domain.Problem{fivePlusThree()}},
		Presenter: h.presenter,
		Questions: questions,
		NewID: func() string {
			ids++
			return fmt.Sprintf("c%d", ids)
		},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	h.service = service
	return h
}
