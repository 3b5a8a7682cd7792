package app

import (
	"sync"
	"time"

	"freefall-server/internal/clock"
	"freefall-server/internal/domain"
	"freefall-server/internal/effects"
	"freefall-server/internal/powerup"
	"github.com/sirupsen/logrus"
)

// SoloSession is one player's round sequence. Every transition happens under mu; collaborator
// calls are collected and run after mu is released.
type SoloSession struct {
	playerID string
	rt       *runtime
	log      *logrus.Entry

	mu        sync.Mutex
	state     domain.SessionState
	closed    bool
	score     int
	answered  int
	correct   int
	combo     int
	bestCombo int
	round     int
	problem   domain.Problem
	targets   []domain.Target
	pending   clock.Timer
	startedAt time.Time
	updatedAt time.Time

	multiplier    int
	shieldCharges int
	rewindCharges int
	fallSpeed     float64
	magnet        bool
}

func newSoloSession(playerID string, rt *runtime) *SoloSession {
	return &SoloSession{
		playerID:   playerID,
		rt:         rt,
		log:        rt.log.WithField("player_id", playerID),
		state:      domain.SessionIdle,
		multiplier: 1,
		fallSpeed:  1,
		updatedAt:  rt.clock.Now(),
	}
}

// PlayerID returns the owner of the session.
func (s *SoloSession) PlayerID() string { return s.playerID }

// Start resets score and progress and spawns the first round. Starting again while a round is
// running restarts the sequence.
func (s *SoloSession) Start() error {
	var acts actions
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	s.stopPendingLocked()
	s.score, s.answered, s.correct, s.combo, s.bestCombo = 0, 0, 0, 0, 0
	s.startedAt = s.rt.clock.Now()
	s.nextRoundLocked(&acts)
	s.snapshotLocked(&acts)
	s.mu.Unlock()

	s.rt.run(acts)
	return nil
}

// Answer resolves the current round from a target collision. It reports whether the signal was
// authoritative; a signal for an already resolved round, or for another round number, is ignored.
// round 0 means the current round.
func (s *SoloSession) Answer(value int, round int) bool {
	var acts actions
	s.mu.Lock()
	if !s.acceptLocked(round, "answer") {
		s.mu.Unlock()
		return false
	}
	outcome := domain.OutcomeWrong
	if value == s.problem.CorrectAnswer {
		outcome = domain.OutcomeCorrect
	}
	s.resolveLocked(outcome, &value, &acts)
	s.mu.Unlock()

	s.rt.run(acts)
	return true
}

// Timeout resolves the current round as wrong because the player fell past every target.
// An armed Rewind re-spawns the same round instead.
func (s *SoloSession) Timeout(round int) bool {
	var acts actions
	s.mu.Lock()
	if !s.acceptLocked(round, "timeout") {
		s.mu.Unlock()
		return false
	}
	if s.rewindCharges > 0 {
		s.rewindCharges--
		s.log.WithField("round", s.round).Debug("rewind absorbed fall timeout")
		s.spawnLocked(&acts)
		if s.rewindCharges == 0 {
			acts.add(func() { s.rt.powerups.Consume(effects.PlayerKey(s.playerID), powerup.Rewind) })
		}
		s.mu.Unlock()
		s.rt.run(acts)
		return false
	}
	s.resolveLocked(domain.OutcomeTimeout, nil, &acts)
	s.mu.Unlock()

	s.rt.run(acts)
	return true
}

// Stop abandons the running sequence without a summary and leaves the session idle.
func (s *SoloSession) Stop() {
	var acts actions
	s.mu.Lock()
	if s.state == domain.SessionActive || s.state == domain.SessionResolving {
		s.stopPendingLocked()
		s.state = domain.SessionIdle
		s.targets = nil
		s.updatedAt = s.rt.clock.Now()
		acts.add(s.rt.notify("despawn", s.playerID, func(p Presenter) error { return p.DespawnTargets(s.playerID) }))
		s.snapshotLocked(&acts)
	}
	s.mu.Unlock()
	s.rt.run(acts)
}

// Close cancels pending deferrals and marks the session inactive for good. Used on disconnect.
func (s *SoloSession) Close() {
	var acts actions
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopPendingLocked()
	if s.state == domain.SessionActive || s.state == domain.SessionResolving {
		s.state = domain.SessionIdle
		acts.add(s.rt.notify("despawn", s.playerID, func(p Presenter) error { return p.DespawnTargets(s.playerID) }))
	}
	s.targets = nil
	s.updatedAt = s.rt.clock.Now()
	s.mu.Unlock()
	s.rt.run(acts)
}

// Snapshot returns the current record.
func (s *SoloSession) Snapshot() domain.PlayerSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *SoloSession) snapshot() domain.PlayerSession {
	return domain.PlayerSession{
		PlayerID:             s.playerID,
		State:                s.state,
		Score:                s.score,
		QuestionsAnswered:    s.answered,
		CorrectAnswers:       s.correct,
		CurrentCorrectAnswer: s.problem.CorrectAnswer,
		Round:                s.round,
		ComboCount:           s.combo,
		IsActive:             !s.closed && (s.state == domain.SessionActive || s.state == domain.SessionResolving),
		UpdatedAt:            s.updatedAt,
	}
}

func (s *SoloSession) snapshotLocked(acts *actions) {
	if s.rt.snapshots == nil {
		return
	}
	snap := s.snapshot()
	acts.add(func() { s.rt.snapshots(snap) })
}

// applyIntent is the only way power-ups change session state.
func (s *SoloSession) applyIntent(in powerup.Intent) {
	var acts actions
	s.mu.Lock()
	switch in.Kind {
	case powerup.IntentScoreMultiplier:
		s.multiplier = max(in.Value, 1)
	case powerup.IntentShieldCharges:
		s.shieldCharges = max(in.Value, 0)
	case powerup.IntentRewindCharges:
		s.rewindCharges = max(in.Value, 0)
	case powerup.IntentFallSpeed:
		s.fallSpeed = in.Scale
		if !s.closed {
			scale := in.Scale
			acts.add(s.rt.notify("fall speed", s.playerID, func(p Presenter) error { return p.FallSpeed(s.playerID, scale) }))
		}
	case powerup.IntentMagnet:
		s.magnet = in.Value > 0
		if !s.closed {
			enabled, lane := s.magnet, laneOf(s.targets, s.problem.CorrectAnswer)
			acts.add(s.rt.notify("magnet", s.playerID, func(p Presenter) error { return p.Magnet(s.playerID, enabled, lane) }))
		}
	}
	s.mu.Unlock()
	s.rt.run(acts)
}

func (s *SoloSession) acceptLocked(round int, signal string) bool {
	if s.closed || s.state != domain.SessionActive || (round != 0 && round != s.round) {
		s.rt.metrics.StaleSignals.WithLabelValues("solo", signal).Inc()
		s.log.WithFields(logrus.Fields{
			"signal":       signal,
			"state":        s.state,
			"round":        s.round,
			"signal_round": round,
		}).Debug("ignoring stale signal")
		return false
	}
	return true
}

func (s *SoloSession) resolveLocked(outcome domain.Outcome, selected *int, acts *actions) {
	result := domain.RoundResult{
		Round:         s.round,
		Outcome:       outcome,
		CorrectAnswer: s.problem.CorrectAnswer,
		Selected:      selected,
	}

	s.answered++
	switch {
	case outcome == domain.OutcomeCorrect:
		result.Awarded = s.rt.settings.PointsPerCorrect * s.multiplier
		s.score += result.Awarded
		s.correct++
		s.combo++
		s.bestCombo = max(s.bestCombo, s.combo)
	case s.shieldCharges > 0:
		s.shieldCharges--
		result.Shielded = true
		if s.shieldCharges == 0 {
			acts.add(func() { s.rt.powerups.Consume(effects.PlayerKey(s.playerID), powerup.Shield) })
		}
	default:
		s.combo = 0
	}
	result.Score = s.score
	result.QuestionsAnswered = s.answered
	result.Combo = s.combo

	s.state = domain.SessionResolving
	s.targets = nil
	s.updatedAt = s.rt.clock.Now()
	s.rt.metrics.RoundsResolved.WithLabelValues("solo", string(outcome)).Inc()

	acts.add(s.rt.notify("despawn", s.playerID, func(p Presenter) error { return p.DespawnTargets(s.playerID) }))
	acts.add(s.rt.notify("round result", s.playerID, func(p Presenter) error { return p.RoundResult(s.playerID, result) }))
	s.snapshotLocked(acts)

	round := s.round
	s.pending = s.rt.clock.AfterFunc(s.rt.settings.ResolveDelay, func() { s.advance(round) })
}

// advance runs after the feedback delay of round.
func (s *SoloSession) advance(round int) {
	var acts actions
	s.mu.Lock()
	if s.closed || s.state != domain.SessionResolving || s.round != round {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	if s.answered >= s.rt.settings.MaxQuestions {
		s.endLocked(&acts)
	} else {
		s.nextRoundLocked(&acts)
	}
	s.snapshotLocked(&acts)
	s.mu.Unlock()
	s.rt.run(acts)
}

func (s *SoloSession) nextRoundLocked(acts *actions) {
	p, err := s.rt.generate()
	if err != nil {
		// No consistent round can be built; end rather than spawn mismatched targets.
		s.log.WithError(err).Error("cannot build next round")
		s.endLocked(acts)
		return
	}
	s.round++
	s.problem = p
	s.targets = s.rt.layout(p)
	s.state = domain.SessionActive
	s.updatedAt = s.rt.clock.Now()
	s.spawnLocked(acts)
}

func (s *SoloSession) spawnLocked(acts *actions) {
	req := domain.SpawnRequest{Round: s.round, Targets: append([]domain.Target(nil), s.targets...)}
	view := domain.ProblemView{
		Round:    s.round,
		Text:     s.problem.Text(),
		Question: s.answered + 1,
		Total:    s.rt.settings.MaxQuestions,
	}
	acts.add(s.rt.notify("spawn", s.playerID, func(p Presenter) error { return p.SpawnTargets(s.playerID, req) }))
	acts.add(s.rt.notify("problem", s.playerID, func(p Presenter) error { return p.ShowProblem(s.playerID, view) }))
	if s.magnet {
		lane := laneOf(s.targets, s.problem.CorrectAnswer)
		acts.add(s.rt.notify("magnet", s.playerID, func(p Presenter) error { return p.Magnet(s.playerID, true, lane) }))
	}
}

func (s *SoloSession) endLocked(acts *actions) {
	now := s.rt.clock.Now()
	s.state = domain.SessionEnded
	s.targets = nil
	s.updatedAt = now
	summary := domain.SessionSummary{
		PlayerID:          s.playerID,
		Score:             s.score,
		QuestionsAnswered: s.answered,
		CorrectAnswers:    s.correct,
		Accuracy:          accuracy(s.correct, s.answered-s.correct),
		BestCombo:         s.bestCombo,
		StartedAt:         s.startedAt,
		EndedAt:           now,
	}
	acts.add(s.rt.notify("despawn", s.playerID, func(p Presenter) error { return p.DespawnTargets(s.playerID) }))
	acts.add(s.rt.notify("session end", s.playerID, func(p Presenter) error { return p.SessionEnded(s.playerID, summary) }))
	acts.add(s.rt.recordSession(summary))
}

func (s *SoloSession) stopPendingLocked() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}
