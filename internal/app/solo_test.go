package app_test

import (
	"context"
	"errors"
	"testing"

	"freefall-server/internal/app"
	"freefall-server/internal/domain"
	"freefall-server/internal/effects"
	"freefall-server/internal/powerup"
)

func TestSoloSessionScoresAndEnds(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(s *app.Settings) { s.MaxQuestions = 3 }, nil)

	snap, err := h.service.StartSession(ctx, "p1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if snap.State != domain.SessionActive || snap.Round != 1 {
		t.Fatalf("expected active round 1, got %+v", snap)
	}

	for i := 0; i < 3; i++ {
		ok, err := h.service.RecordAnswer(ctx, "p1", 8, 900, 0)
		if err != nil || !ok {
			t.Fatalf("answer %d not accepted: ok=%v err=%v", i, ok, err)
		}
		// a second collision in the same round is ignored
		if ok, _ := h.service.RecordAnswer(ctx, "p1", 8, 900, 0); ok {
			t.Fatalf("duplicate answer %d accepted", i)
		}
		if ok, _ := h.service.RecordTimeout(ctx, "p1", 0); ok {
			t.Fatalf("timeout during feedback accepted")
		}
		h.clock.Advance(app.DefaultSettings().ResolveDelay)
	}

	snap, err = h.service.SessionSnapshot("p1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.State != domain.SessionEnded || snap.Score != 3 || snap.QuestionsAnswered != 3 {
		t.Fatalf("expected ended with 3 points, got %+v", snap)
	}
	ends := h.presenter.endsFor("p1")
	if len(ends) != 1 {
		t.Fatalf("expected one session end, got %d", len(ends))
	}
	if ends[0].Score != 3 || ends[0].BestCombo != 3 || ends[0].Accuracy != 1 {
		t.Fatalf("unexpected summary %+v", ends[0])
	}
	if ok, _ := h.service.RecordAnswer(ctx, "p1", 8, 0, 0); ok {
		t.Fatalf("answer after end accepted")
	}
}

func TestSoloSessionWrongAndTimeout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	if _, err := h.service.StartSession(ctx, "p1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if ok, _ := h.service.RecordAnswer(ctx, "p1", 8, 0, 0); !ok {
		t.Fatalf("correct answer rejected")
	}
	h.clock.Advance(app.DefaultSettings().ResolveDelay)

	if ok, _ := h.service.RecordAnswer(ctx, "p1", 7, 0, 0); !ok {
		t.Fatalf("wrong answer rejected")
	}
	res := h.presenter.lastResult(t, "p1")
	if res.Outcome != domain.OutcomeWrong || res.Combo != 0 || res.Score != 1 || res.Selected == nil || *res.Selected != 7 {
		t.Fatalf("unexpected wrong result %+v", res)
	}
	h.clock.Advance(app.DefaultSettings().ResolveDelay)

	if ok, _ := h.service.RecordTimeout(ctx, "p1", 0); !ok {
		t.Fatalf("timeout rejected")
	}
	res = h.presenter.lastResult(t, "p1")
	if res.Outcome != domain.OutcomeTimeout || res.QuestionsAnswered != 3 || res.CorrectAnswer != 8 {
		t.Fatalf("unexpected timeout result %+v", res)
	}
}

func TestSoloSessionIgnoresSignalsForOtherRounds(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	if _, err := h.service.StartSession(ctx, "p1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if ok, _ := h.service.RecordAnswer(ctx, "p1", 8, 0, 2); ok {
		t.Fatalf("answer for future round accepted")
	}
	if ok, _ := h.service.RecordAnswer(ctx, "p1", 8, 0, 1); !ok {
		t.Fatalf("answer for current round rejected")
	}
	h.clock.Advance(app.DefaultSettings().ResolveDelay)

	// a late timeout from round 1 must not resolve round 2
	if ok, _ := h.service.RecordTimeout(ctx, "p1", 1); ok {
		t.Fatalf("late timeout accepted")
	}
	snap, _ := h.service.SessionSnapshot("p1")
	if snap.Round != 2 || snap.QuestionsAnswered != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestSoloSessionUnknownPlayerIsNoop(t *testing.T) {
	h := newHarness(t, nil, nil)
	ok, err := h.service.RecordAnswer(context.Background(), "ghost", 8, 0, 0)
	if ok || err != nil {
		t.Fatalf("expected silent no-op, got ok=%v err=%v", ok, err)
	}
	if _, err := h.service.SessionSnapshot("ghost"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestDoublePointsAppliesUntilExpiry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	if _, err := h.service.StartSession(ctx, "p1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := h.service.ActivatePowerUp(ctx, "p1", powerup.DoublePoints); err != nil {
		t.Fatalf("activate: %v", err)
	}

	h.service.RecordAnswer(ctx, "p1", 8, 0, 0)
	if res := h.presenter.lastResult(t, "p1"); res.Awarded != 2 {
		t.Fatalf("expected doubled award, got %+v", res)
	}
	h.clock.Advance(app.DefaultSettings().ResolveDelay)

	h.clock.Advance(powerup.DefaultDurations()[powerup.DoublePoints])
	if n := h.service.Registry().Sweep(); n != 1 {
		t.Fatalf("expected one expired effect, got %d", n)
	}
	if h.service.IsEffectActive(effects.PlayerKey("p1"), powerup.DoublePoints) {
		t.Fatalf("double points still active")
	}

	h.service.RecordAnswer(ctx, "p1", 8, 0, 0)
	if res := h.presenter.lastResult(t, "p1"); res.Awarded != 1 || res.Score != 3 {
		t.Fatalf("expected single award after expiry, got %+v", res)
	}
}

func TestShieldAbsorbsOneWrongAnswer(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	h.service.StartSession(ctx, "p1")
	h.service.RecordAnswer(ctx, "p1", 8, 0, 0)
	h.clock.Advance(app.DefaultSettings().ResolveDelay)

	if _, err := h.service.ActivatePowerUp(ctx, "p1", powerup.Shield); err != nil {
		t.Fatalf("activate: %v", err)
	}
	h.service.RecordAnswer(ctx, "p1", 6, 0, 0)
	res := h.presenter.lastResult(t, "p1")
	if !res.Shielded || res.Combo != 1 {
		t.Fatalf("expected shielded answer keeping combo, got %+v", res)
	}
	if h.service.IsEffectActive(effects.PlayerKey("p1"), powerup.Shield) {
		t.Fatalf("shield should be consumed")
	}
	h.clock.Advance(app.DefaultSettings().ResolveDelay)

	h.service.RecordAnswer(ctx, "p1", 6, 0, 0)
	if res := h.presenter.lastResult(t, "p1"); res.Shielded || res.Combo != 0 {
		t.Fatalf("expected unshielded wrong answer, got %+v", res)
	}
}

func TestRewindRespawnsRound(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	h.service.StartSession(ctx, "p1")
	if _, err := h.service.ActivatePowerUp(ctx, "p1", powerup.Rewind); err != nil {
		t.Fatalf("activate: %v", err)
	}

	if ok, _ := h.service.RecordTimeout(ctx, "p1", 0); ok {
		t.Fatalf("rewound timeout should not resolve the round")
	}
	snap, _ := h.service.SessionSnapshot("p1")
	if snap.Round != 1 || snap.QuestionsAnswered != 0 || snap.State != domain.SessionActive {
		t.Fatalf("unexpected snapshot after rewind %+v", snap)
	}
	if n := h.presenter.spawnCount("p1"); n != 2 {
		t.Fatalf("expected respawn, got %d spawns", n)
	}
	if ok, _ := h.service.RecordTimeout(ctx, "p1", 0); !ok {
		t.Fatalf("second timeout should resolve the round")
	}
}

func TestSlowFallNotifiesPresenter(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	h.service.StartSession(ctx, "p1")
	h.service.ActivatePowerUp(ctx, "p1", powerup.SlowFall)

	h.clock.Advance(powerup.DefaultDurations()[powerup.SlowFall])
	h.service.Registry().Sweep()

	h.presenter.mu.Lock()
	speeds := append([]float64(nil), h.presenter.fallSpeeds["p1"]...)
	h.presenter.mu.Unlock()
	if len(speeds) != 2 || speeds[0] != 0.5 || speeds[1] != 1 {
		t.Fatalf("expected slow then normal fall speed, got %v", speeds)
	}
}

func TestActivateUnknownPowerUp(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	h.service.StartSession(ctx, "p1")
	if _, err := h.service.ActivatePowerUp(ctx, "p1", "Teleport"); !errors.Is(err, domain.ErrUnknownPowerUp) {
		t.Fatalf("expected unknown power-up, got %v", err)
	}
	if _, err := h.service.ActivatePowerUp(ctx, "ghost", powerup.Shield); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestDisconnectCancelsDeferralsAndEffects(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	h.service.StartSession(ctx, "p1")
	h.service.ActivatePowerUp(ctx, "p1", powerup.DoublePoints)
	h.service.RecordAnswer(ctx, "p1", 8, 0, 0)
	spawns := h.presenter.spawnCount("p1")

	h.service.Disconnect(ctx, "p1")
	if h.service.IsEffectActive(effects.PlayerKey("p1"), powerup.DoublePoints) {
		t.Fatalf("effect survived disconnect")
	}
	h.clock.Advance(app.DefaultSettings().ResolveDelay * 2)
	if n := h.presenter.spawnCount("p1"); n != spawns {
		t.Fatalf("deferred round fired after disconnect: %d spawns", n)
	}
	if _, err := h.service.SessionSnapshot("p1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session dropped, got %v", err)
	}
}
