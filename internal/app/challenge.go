package app

import (
	"fmt"
	"sync"
	"time"

	"freefall-server/internal/clock"
	"freefall-server/internal/domain"
	"freefall-server/internal/effects"
	"freefall-server/internal/powerup"
	"freefall-server/internal/problem"
	"github.com/sirupsen/logrus"
)

// Challenge is one team battle. All of its teams share mu: a team's transition and the
// challenge-wide victory check it may trigger are one atomic step.
type Challenge struct {
	id         string
	hostID     string
	mode       domain.ChallengeMode
	createdAt  time.Time
	rt         *runtime
	index      *MembershipIndex
	log        *logrus.Entry
	onTeardown func(challengeID string)

	mu         sync.Mutex
	state      domain.ChallengeState
	closed     bool
	hostGone   bool
	teams      map[string]*team
	teamOrder  []string
	questions  []domain.Problem
	difficulty domain.Difficulty
	startTime  time.Time
	endTime    time.Time
	winner     string
	timeLimit  clock.Timer
	teardown   clock.Timer
}

type team struct {
	id      string
	members map[string]*member
	order   []string

	lives      int
	score      int
	round      int
	combo      int
	correct    int
	wrong      int
	eliminated bool

	seq       int
	resolving bool
	pending   clock.Timer
	problem   domain.Problem
	targets   []domain.Target

	multiplier    int
	shieldCharges int
}

type member struct {
	playerID     string
	active       bool
	left         bool
	correct      int
	wrong        int
	contribution int
}

func newChallenge(id, hostID string, mode domain.ChallengeMode, rt *runtime, index *MembershipIndex, onTeardown func(string)) *Challenge {
	c := &Challenge{
		id:         id,
		hostID:     hostID,
		mode:       mode,
		createdAt:  rt.clock.Now(),
		rt:         rt,
		index:      index,
		log:        rt.log.WithFields(logrus.Fields{"challenge_id": id, "mode": mode}),
		onTeardown: onTeardown,
		state:      domain.ChallengeForming,
		teams:      make(map[string]*team),
	}
	for _, name := range rt.settings.Team.Names {
		if _, dup := c.teams[name]; dup {
			continue
		}
		c.teams[name] = &team{id: name, members: make(map[string]*member), multiplier: 1}
		c.teamOrder = append(c.teamOrder, name)
	}
	return c
}

// ID returns the challenge identifier.
func (c *Challenge) ID() string { return c.id }

// State returns the lifecycle state.
func (c *Challenge) State() domain.ChallengeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Join puts playerID on teamID while the challenge is forming. Joining another team of the same
// challenge moves the player.
func (c *Challenge) Join(playerID, teamID string) (err error) {
	var acts actions
	c.mu.Lock()
	defer func() {
		c.mu.Unlock()
		c.rt.run(acts)
	}()

	if c.state != domain.ChallengeForming {
		return domain.ErrChallengeNotForming
	}
	t, ok := c.teams[teamID]
	if !ok {
		return domain.ErrTeamNotFound
	}
	if cur, ok := c.index.Lookup(playerID); ok && cur.ChallengeID == c.id && cur.TeamID == teamID {
		return nil
	}
	if err := c.index.Assign(playerID, domain.Membership{ChallengeID: c.id, TeamID: teamID}); err != nil {
		return err
	}
	for _, other := range c.teams {
		other.remove(playerID)
	}
	t.add(playerID)
	c.log.WithFields(logrus.Fields{"player_id": playerID, "team_id": teamID}).Info("player joined team")
	c.lobbyLocked(&acts)
	return nil
}

// Leave removes playerID. While active, a team left without members is eliminated, which may end
// the challenge.
func (c *Challenge) Leave(playerID string) error {
	var acts actions
	c.mu.Lock()
	defer func() {
		c.mu.Unlock()
		c.rt.run(acts)
	}()

	cur, ok := c.index.Lookup(playerID)
	if !ok || cur.ChallengeID != c.id {
		return domain.ErrNotMember
	}
	c.index.Remove(playerID, c.id)
	t := c.teams[cur.TeamID]
	if t == nil {
		return nil
	}

	switch c.state {
	case domain.ChallengeForming:
		t.remove(playerID)
		if c.abandonedLocked(&acts) {
			return nil
		}
		c.lobbyLocked(&acts)
	case domain.ChallengeActive:
		if m := t.members[playerID]; m != nil {
			m.active, m.left = false, true
		}
		acts.add(c.rt.notify("despawn", playerID, func(p Presenter) error { return p.DespawnTargets(playerID) }))
		c.log.WithFields(logrus.Fields{"player_id": playerID, "team_id": t.id}).Info("player left running challenge")
		if !t.eliminated && t.activeCount() == 0 {
			c.eliminateLocked(t, &acts)
			if c.lastTeamStandingLocked(&acts) {
				return nil
			}
		}
		c.lobbyLocked(&acts)
	default:
		if m := t.members[playerID]; m != nil {
			m.active, m.left = false, true
		}
	}
	return nil
}

// HostLeft records that the host disconnected. A forming challenge nobody joined is removed.
func (c *Challenge) HostLeft() {
	var acts actions
	c.mu.Lock()
	defer func() {
		c.mu.Unlock()
		c.rt.run(acts)
	}()
	c.hostGone = true
	c.abandonedLocked(&acts)
}

// abandonedLocked tears down a forming challenge that has no members and no host.
func (c *Challenge) abandonedLocked(acts *actions) bool {
	if c.state != domain.ChallengeForming || !c.hostGone || c.closed {
		return false
	}
	for _, t := range c.teams {
		if len(t.members) > 0 {
			return false
		}
	}
	c.closed = true
	c.state = domain.ChallengeEnded
	c.log.Info("abandoned challenge removed")
	if c.onTeardown != nil {
		acts.add(func() { c.onTeardown(c.id) })
	}
	return true
}

// AutoBalance shuffles every member and deals them round-robin across the teams. The reverse
// index is rewritten in a single step.
func (c *Challenge) AutoBalance() error {
	var acts actions
	c.mu.Lock()
	defer func() {
		c.mu.Unlock()
		c.rt.run(acts)
	}()

	if c.state != domain.ChallengeForming {
		return domain.ErrChallengeNotForming
	}
	var players []string
	for _, id := range c.teamOrder {
		players = append(players, c.teams[id].order...)
	}
	if len(players) == 0 || len(c.teamOrder) == 0 {
		return nil
	}

	idx := make([]int, len(players))
	for i := range idx {
		idx[i] = i
	}
	idx = c.rt.generator.Shuffle(idx)

	assignment := make(map[string]string, len(players))
	for _, id := range c.teamOrder {
		t := c.teams[id]
		t.members = make(map[string]*member)
		t.order = nil
	}
	for i, pi := range idx {
		teamID := c.teamOrder[i%len(c.teamOrder)]
		c.teams[teamID].add(players[pi])
		assignment[players[pi]] = teamID
	}
	c.index.Reassign(c.id, assignment)
	c.log.WithField("players", len(players)).Info("teams auto-balanced")
	c.lobbyLocked(&acts)
	return nil
}

// Start moves the challenge to active. It requires two populated teams and a difficulty from
// the lives table; nothing changes when it fails. It returns the members that now play.
func (c *Challenge) Start(questions []domain.Problem, difficulty domain.Difficulty) ([]string, error) {
	var acts actions
	c.mu.Lock()
	defer func() {
		c.mu.Unlock()
		c.rt.run(acts)
	}()

	if c.state != domain.ChallengeForming {
		return nil, domain.ErrChallengeNotForming
	}
	lives, ok := c.rt.settings.Team.Lives[difficulty]
	if !ok || lives < 1 {
		return nil, domain.ErrInvalidDifficulty
	}
	populated := 0
	for _, t := range c.teams {
		if len(t.members) > 0 {
			populated++
		}
	}
	if populated < 2 {
		return nil, domain.ErrNotEnoughTeams
	}
	prepared, err := c.prepareQuestions(questions)
	if err != nil {
		return nil, err
	}

	c.state = domain.ChallengeActive
	c.questions = prepared
	c.difficulty = difficulty
	c.startTime = c.rt.clock.Now()

	var players []string
	for _, id := range c.teamOrder {
		t := c.teams[id]
		t.lives, t.score, t.round, t.combo, t.correct, t.wrong = lives, 0, 0, 0, 0, 0
		t.eliminated = len(t.members) == 0
		for _, pid := range t.order {
			m := t.members[pid]
			m.active, m.correct, m.wrong, m.contribution = true, 0, 0, 0
			players = append(players, pid)
		}
	}
	for _, id := range c.teamOrder {
		if t := c.teams[id]; !t.eliminated {
			c.issueLocked(t, &acts)
		}
	}
	if c.mode == domain.ModeTimed && c.rt.settings.Team.TimeLimit > 0 {
		c.timeLimit = c.rt.clock.AfterFunc(c.rt.settings.Team.TimeLimit, c.expireTimeLimit)
	}
	c.log.WithFields(logrus.Fields{"difficulty": difficulty, "rounds": len(prepared), "players": len(players)}).Info("challenge started")
	c.lobbyLocked(&acts)
	return players, nil
}

// Answer resolves the round of playerID's team. round 0 means the team's current round.
func (c *Challenge) Answer(playerID string, value int, responseTimeMs int64, round int) bool {
	var acts actions
	c.mu.Lock()
	defer func() {
		c.mu.Unlock()
		c.rt.run(acts)
	}()

	t, m, ok := c.acceptLocked(playerID, round, "answer")
	if !ok {
		return false
	}
	if value == t.problem.CorrectAnswer {
		c.correctLocked(t, m, responseTimeMs, &acts)
	} else {
		c.wrongLocked(t, m, domain.OutcomeWrong, &acts)
	}
	return true
}

// Timeout resolves the round of playerID's team as wrong.
func (c *Challenge) Timeout(playerID string, round int) bool {
	var acts actions
	c.mu.Lock()
	defer func() {
		c.mu.Unlock()
		c.rt.run(acts)
	}()

	t, m, ok := c.acceptLocked(playerID, round, "timeout")
	if !ok {
		return false
	}
	c.wrongLocked(t, m, domain.OutcomeTimeout, &acts)
	return true
}

// Snapshot returns the lobby/scoreboard view.
func (c *Challenge) Snapshot() domain.ChallengeSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close stops every pending deferral. Later timer callbacks are no-ops.
func (c *Challenge) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopTimersLocked()
	if c.teardown != nil {
		c.teardown.Stop()
		c.teardown = nil
	}
}

func (c *Challenge) applyIntent(teamID string, in powerup.Intent) {
	var acts actions
	c.mu.Lock()
	defer func() {
		c.mu.Unlock()
		c.rt.run(acts)
	}()

	t, ok := c.teams[teamID]
	if !ok || c.closed {
		return
	}
	switch in.Kind {
	case powerup.IntentScoreMultiplier:
		t.multiplier = max(in.Value, 1)
	case powerup.IntentShieldCharges:
		t.shieldCharges = max(in.Value, 0)
	case powerup.IntentFallSpeed:
		if c.state != domain.ChallengeActive {
			return
		}
		scale := in.Scale
		for _, pid := range t.activeMembers() {
			pid := pid
			acts.add(c.rt.notify("fall speed", pid, func(p Presenter) error { return p.FallSpeed(pid, scale) }))
		}
	case powerup.IntentMagnet:
		if c.state != domain.ChallengeActive {
			return
		}
		enabled, lane := in.Value > 0, laneOf(t.targets, t.problem.CorrectAnswer)
		for _, pid := range t.activeMembers() {
			pid := pid
			acts.add(c.rt.notify("magnet", pid, func(p Presenter) error { return p.Magnet(pid, enabled, lane) }))
		}
	default:
		c.log.WithFields(logrus.Fields{"team_id": teamID, "intent": in.Kind}).Debug("intent has no team effect")
	}
}

func (c *Challenge) prepareQuestions(questions []domain.Problem) ([]domain.Problem, error) {
	if len(questions) == 0 {
		n := max(c.rt.settings.Team.QuestionCount, 1)
		out := make([]domain.Problem, 0, n)
		for i := 0; i < n; i++ {
			p, err := c.rt.generate()
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	}
	cfg := c.rt.generator.Config()
	out := make([]domain.Problem, len(questions))
	for i, q := range questions {
		if q.CorrectAnswer < cfg.Min || q.CorrectAnswer > cfg.Max {
			return nil, fmt.Errorf("%w: question %d answer %d outside [%d, %d]", domain.ErrInvalidQuestionSet, i+1, q.CorrectAnswer, cfg.Min, cfg.Max)
		}
		if !validDecoys(q, cfg) {
			decoys, err := c.rt.generator.Decoys(q.CorrectAnswer)
			if err != nil {
				return nil, err
			}
			q.DecoyAnswers = decoys
		}
		out[i] = q
	}
	return out, nil
}

// validDecoys reports whether q carries exactly DecoyCount distinct in-range decoys.
func validDecoys(q domain.Problem, cfg problem.Config) bool {
	if len(q.DecoyAnswers) != cfg.DecoyCount {
		return false
	}
	seen := map[int]struct{}{q.CorrectAnswer: {}}
	for _, d := range q.DecoyAnswers {
		if d < cfg.Min || d > cfg.Max {
			return false
		}
		if _, dup := seen[d]; dup {
			return false
		}
		seen[d] = struct{}{}
	}
	return true
}

func (c *Challenge) acceptLocked(playerID string, round int, signal string) (*team, *member, bool) {
	stale := func(reason string) (*team, *member, bool) {
		c.rt.metrics.StaleSignals.WithLabelValues("team", signal).Inc()
		c.log.WithFields(logrus.Fields{"player_id": playerID, "signal": signal, "reason": reason, "signal_round": round}).Debug("ignoring stale signal")
		return nil, nil, false
	}
	if c.state != domain.ChallengeActive {
		return stale("challenge not active")
	}
	cur, ok := c.index.Lookup(playerID)
	if !ok || cur.ChallengeID != c.id {
		return stale("not a member")
	}
	t := c.teams[cur.TeamID]
	if t == nil {
		return stale("unknown team")
	}
	m := t.members[playerID]
	if m == nil || !m.active {
		return stale("member inactive")
	}
	if t.eliminated {
		return stale("team eliminated")
	}
	if t.resolving || (round != 0 && round != t.seq) {
		return stale("round already resolved")
	}
	return t, m, true
}

func (c *Challenge) correctLocked(t *team, m *member, responseTimeMs int64, acts *actions) {
	cfg := c.rt.settings.Team
	t.combo++
	points := (cfg.BasePoints + cfg.comboBonus(t.combo) + cfg.timeBonus(responseTimeMs)) * t.multiplier
	t.score += points
	t.correct++
	t.round++
	m.contribution += points
	m.correct++

	c.broadcastRoundLocked(t, m.playerID, domain.OutcomeCorrect, points, false, acts)
	if c.victoryLocked(t) {
		c.endLocked(t.id, acts)
		return
	}
	c.scheduleLocked(t)
}

func (c *Challenge) wrongLocked(t *team, m *member, outcome domain.Outcome, acts *actions) {
	t.combo = 0
	t.wrong++
	m.wrong++

	shielded := false
	if t.shieldCharges > 0 {
		t.shieldCharges--
		shielded = true
		if t.shieldCharges == 0 {
			owner := effects.TeamKey(c.id, t.id)
			acts.add(func() { c.rt.powerups.Consume(owner, powerup.Shield) })
		}
	} else if t.lives > 0 {
		t.lives--
	}

	if t.lives == 0 && !t.eliminated {
		c.broadcastRoundLocked(t, m.playerID, outcome, 0, shielded, acts)
		c.eliminateLocked(t, acts)
		c.lastTeamStandingLocked(acts)
		return
	}
	c.broadcastRoundLocked(t, m.playerID, outcome, 0, shielded, acts)
	c.scheduleLocked(t)
}

func (c *Challenge) victoryLocked(t *team) bool {
	switch c.mode {
	case domain.ModeSurvival:
		return t.round >= len(c.questions)
	case domain.ModeScoreAttack:
		return t.score >= c.rt.settings.Team.ScoreAttackTarget
	}
	// Timed challenges are decided by the time limit.
	return false
}

func (c *Challenge) eliminateLocked(t *team, acts *actions) {
	t.eliminated = true
	t.resolving = false
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	for _, pid := range t.order {
		m := t.members[pid]
		if m.active {
			pid := pid
			acts.add(c.rt.notify("despawn", pid, func(p Presenter) error { return p.DespawnTargets(pid) }))
		}
		m.active = false
	}
	t.targets = nil
	c.log.WithFields(logrus.Fields{"team_id": t.id, "score": t.score}).Info("team eliminated")
}

// lastTeamStandingLocked ends the challenge when at most one team is still playing.
func (c *Challenge) lastTeamStandingLocked(acts *actions) bool {
	var remaining []string
	for _, id := range c.teamOrder {
		if !c.teams[id].eliminated {
			remaining = append(remaining, id)
		}
	}
	if len(remaining) > 1 {
		return false
	}
	winner := ""
	if len(remaining) == 1 {
		winner = remaining[0]
	}
	c.endLocked(winner, acts)
	return true
}

func (c *Challenge) scheduleLocked(t *team) {
	t.resolving = true
	t.targets = nil
	seq := t.seq
	teamID := t.id
	t.pending = c.rt.clock.AfterFunc(c.rt.settings.ResolveDelay, func() { c.advanceTeam(teamID, seq) })
}

// advanceTeam spawns the team's next round once the feedback delay of round seq elapsed.
func (c *Challenge) advanceTeam(teamID string, seq int) {
	var acts actions
	c.mu.Lock()
	defer func() {
		c.mu.Unlock()
		c.rt.run(acts)
	}()

	t := c.teams[teamID]
	if c.closed || c.state != domain.ChallengeActive || t == nil || t.eliminated || !t.resolving || t.seq != seq {
		return
	}
	t.pending = nil
	c.issueLocked(t, &acts)
}

func (c *Challenge) issueLocked(t *team, acts *actions) {
	t.seq++
	t.resolving = false
	t.problem = c.questions[t.round%len(c.questions)]
	t.targets = c.rt.layout(t.problem)

	req := domain.SpawnRequest{Round: t.seq, Targets: append([]domain.Target(nil), t.targets...)}
	view := domain.ProblemView{Round: t.seq, Text: t.problem.Text(), Question: t.round + 1, Total: len(c.questions)}
	for _, pid := range t.activeMembers() {
		pid := pid
		acts.add(c.rt.notify("spawn", pid, func(p Presenter) error { return p.SpawnTargets(pid, req) }))
		acts.add(c.rt.notify("problem", pid, func(p Presenter) error { return p.ShowProblem(pid, view) }))
	}
}

func (c *Challenge) broadcastRoundLocked(t *team, playerID string, outcome domain.Outcome, awarded int, shielded bool, acts *actions) {
	c.rt.metrics.RoundsResolved.WithLabelValues("team", string(outcome)).Inc()
	result := domain.TeamRoundResult{
		ChallengeID:   c.id,
		TeamID:        t.id,
		PlayerID:      playerID,
		Outcome:       outcome,
		CorrectAnswer: t.problem.CorrectAnswer,
		Awarded:       awarded,
		TotalScore:    t.score,
		SharedLives:   t.lives,
		ComboCount:    t.combo,
		RoundIndex:    t.round,
		Shielded:      shielded,
		Eliminated:    t.lives == 0,
	}
	for _, pid := range t.activeMembers() {
		pid := pid
		acts.add(c.rt.notify("despawn", pid, func(p Presenter) error { return p.DespawnTargets(pid) }))
	}
	for _, pid := range c.recipientsLocked() {
		pid := pid
		acts.add(c.rt.notify("team round", pid, func(p Presenter) error { return p.TeamRound(pid, result) }))
	}
}

// expireTimeLimit decides a timed challenge: the highest score among teams still playing wins,
// a tie has no winner.
func (c *Challenge) expireTimeLimit() {
	var acts actions
	c.mu.Lock()
	defer func() {
		c.mu.Unlock()
		c.rt.run(acts)
	}()

	if c.closed || c.state != domain.ChallengeActive {
		return
	}
	c.timeLimit = nil
	winner, best, tie := "", -1, false
	for _, id := range c.teamOrder {
		t := c.teams[id]
		if t.eliminated {
			continue
		}
		switch {
		case t.score > best:
			winner, best, tie = id, t.score, false
		case t.score == best:
			tie = true
		}
	}
	if tie {
		winner = ""
	}
	c.endLocked(winner, &acts)
}

func (c *Challenge) endLocked(winner string, acts *actions) {
	now := c.rt.clock.Now()
	c.state = domain.ChallengeEnded
	c.endTime = now
	c.winner = winner
	c.stopTimersLocked()

	recipients := c.recipientsLocked()
	for _, id := range c.teamOrder {
		t := c.teams[id]
		for _, m := range t.members {
			m.active = false
		}
		t.targets = nil
	}

	summary := c.summaryLocked()
	for _, pid := range recipients {
		pid := pid
		acts.add(c.rt.notify("despawn", pid, func(p Presenter) error { return p.DespawnTargets(pid) }))
		acts.add(c.rt.notify("challenge end", pid, func(p Presenter) error { return p.ChallengeEnded(pid, summary) }))
	}
	acts.add(c.rt.recordChallenge(summary))
	for _, id := range c.teamOrder {
		owner := effects.TeamKey(c.id, id)
		acts.add(func() { c.rt.registry.DeactivateOwner(owner) })
	}
	c.rt.metrics.ChallengesEnded.WithLabelValues(string(c.mode)).Inc()
	c.log.WithFields(logrus.Fields{"winner": winner, "duration": now.Sub(c.startTime).String()}).Info("challenge ended")

	c.teardown = c.rt.clock.AfterFunc(c.rt.settings.Team.GraceDelay, c.tearDown)
}

func (c *Challenge) tearDown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.teardown = nil
	c.mu.Unlock()

	if c.onTeardown != nil {
		c.onTeardown(c.id)
	}
}

func (c *Challenge) stopTimersLocked() {
	for _, t := range c.teams {
		if t.pending != nil {
			t.pending.Stop()
			t.pending = nil
		}
		t.resolving = false
	}
	if c.timeLimit != nil {
		c.timeLimit.Stop()
		c.timeLimit = nil
	}
}

// recipientsLocked lists every member who has not left, in team order.
func (c *Challenge) recipientsLocked() []string {
	var out []string
	for _, id := range c.teamOrder {
		t := c.teams[id]
		for _, pid := range t.order {
			if !t.members[pid].left {
				out = append(out, pid)
			}
		}
	}
	return out
}

func (c *Challenge) lobbyLocked(acts *actions) {
	snap := c.snapshotLocked()
	for _, pid := range c.recipientsLocked() {
		pid := pid
		acts.add(c.rt.notify("lobby", pid, func(p Presenter) error { return p.Lobby(pid, snap) }))
	}
}

func (c *Challenge) snapshotLocked() domain.ChallengeSnapshot {
	snap := domain.ChallengeSnapshot{
		ChallengeID:   c.id,
		HostID:        c.hostID,
		Mode:          c.mode,
		State:         c.state,
		Difficulty:    c.difficulty,
		TotalRounds:   len(c.questions),
		StartTime:     c.startTime,
		EndTime:       c.endTime,
		WinningTeamID: c.winner,
	}
	for _, id := range c.teamOrder {
		t := c.teams[id]
		ts := domain.TeamSnapshot{
			TeamID:            t.id,
			Members:           make([]domain.MemberStats, 0, len(t.order)),
			SharedLives:       t.lives,
			TotalScore:        t.score,
			CurrentRoundIndex: t.round,
			ComboCount:        t.combo,
			IsEliminated:      t.eliminated,
			Accuracy:          accuracy(t.correct, t.wrong),
		}
		for _, pid := range t.order {
			m := t.members[pid]
			if m.left && c.state == domain.ChallengeForming {
				continue
			}
			ts.Members = append(ts.Members, m.stats())
		}
		snap.Teams = append(snap.Teams, ts)
	}
	return snap
}

func (c *Challenge) summaryLocked() domain.ChallengeSummary {
	summary := domain.ChallengeSummary{ChallengeSnapshot: c.snapshotLocked()}
	if !c.startTime.IsZero() {
		summary.Duration = c.endTime.Sub(c.startTime).Seconds()
	}
	for _, ts := range summary.Teams {
		for i := range ts.Members {
			m := ts.Members[i]
			if summary.MVP == nil || m.Contribution > summary.MVP.Contribution {
				summary.MVP = &m
				summary.MVPTeam = ts.TeamID
			}
		}
	}
	return summary
}

func (t *team) add(playerID string) {
	if _, ok := t.members[playerID]; ok {
		return
	}
	t.members[playerID] = &member{playerID: playerID}
	t.order = append(t.order, playerID)
}

func (t *team) remove(playerID string) {
	if _, ok := t.members[playerID]; !ok {
		return
	}
	delete(t.members, playerID)
	for i, id := range t.order {
		if id == playerID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func (t *team) activeMembers() []string {
	out := make([]string, 0, len(t.order))
	for _, pid := range t.order {
		if t.members[pid].active {
			out = append(out, pid)
		}
	}
	return out
}

func (t *team) activeCount() int {
	return len(t.activeMembers())
}

func (m *member) stats() domain.MemberStats {
	return domain.MemberStats{
		PlayerID:     m.playerID,
		Active:       m.active,
		Correct:      m.correct,
		Wrong:        m.wrong,
		Contribution: m.contribution,
		Accuracy:     accuracy(m.correct, m.wrong),
	}
}
