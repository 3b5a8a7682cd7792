package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"freefall-server/internal/domain"
)

func openTestStore(t *testing.T) *ResultStore {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestResultStoreSessions(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, score := range []int{3, 7} {
		err := store.RecordSession(ctx, domain.SessionSummary{
			PlayerID:          "p1",
			Score:             score,
			QuestionsAnswered: 10,
			CorrectAnswers:    score,
			BestCombo:         2,
			StartedAt:         start,
			EndedAt:           start.Add(time.Duration(i+1) * time.Minute),
		})
		if err != nil {
			t.Fatalf("record session: %v", err)
		}
	}

	results, err := store.SessionResults(ctx, "p1", 10)
	if err != nil {
		t.Fatalf("session results: %v", err)
	}
	if len(results) != 2 || results[0].Score != 7 || results[1].Score != 3 {
		t.Fatalf("unexpected results %+v", results)
	}
	if results[0].Accuracy != 0.7 {
		t.Fatalf("expected accuracy 0.7, got %v", results[0].Accuracy)
	}
	if other, _ := store.SessionResults(ctx, "p2", 10); len(other) != 0 {
		t.Fatalf("expected no results for p2, got %+v", other)
	}
}

func TestResultStoreChallenges(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	end := time.Date(2024, 1, 1, 12, 5, 0, 0, time.UTC)

	summary := domain.ChallengeSummary{
		ChallengeSnapshot: domain.ChallengeSnapshot{
			ChallengeID:   "c1",
			Mode:          domain.ModeSurvival,
			State:         domain.ChallengeEnded,
			WinningTeamID: "blue",
			EndTime:       end,
			Teams: []domain.TeamSnapshot{
				{TeamID: "red", SharedLives: 0, IsEliminated: true},
				{TeamID: "blue", SharedLives: 5, TotalScore: 300},
			},
		},
		MVPTeam:  "blue",
		Duration: 42.5,
	}
	if err := store.RecordChallenge(ctx, summary); err != nil {
		t.Fatalf("record challenge: %v", err)
	}
	if err := store.RecordChallenge(ctx, summary); err != nil {
		t.Fatalf("record challenge twice: %v", err)
	}

	got, err := store.ChallengeResult(ctx, "c1")
	if err != nil {
		t.Fatalf("challenge result: %v", err)
	}
	if got.WinningTeamID != "blue" || len(got.Teams) != 2 || got.Duration != 42.5 {
		t.Fatalf("unexpected summary %+v", got)
	}
	if _, err := store.ChallengeResult(ctx, "missing"); !errors.Is(err, domain.ErrChallengeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
