package app

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"freefall-server/internal/clock"
	"freefall-server/internal/domain"
	"freefall-server/internal/effects"
	"freefall-server/internal/metrics"
	"freefall-server/internal/powerup"
	"freefall-server/internal/problem"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const snapshotTimeout = 2 * time.Second

// Options wires the collaborators of a GameService. Zero values get working defaults.
type Options struct {
	Settings  Settings
	Clock     clock.Clock
	Generator ProblemSource
	Presenter Presenter
	Results   ResultRecorder
	Questions QuestionSetRepository
	Registry  *effects.Registry
	Catalog   []powerup.PowerUp
	Durations map[string]time.Duration
	Metrics   *metrics.Metrics
	Logger    *logrus.Entry
	NewID     func() string
}

// GameService contains the game use cases and routes every signal to the state machine that
// owns it: members of an active challenge go to their team, everybody else to their solo session.
type GameService struct {
	sessions  SessionRepository
	questions QuestionSetRepository
	index     *MembershipIndex
	rt        *runtime
	newID     func() string
	log       *logrus.Entry

	mu         sync.RWMutex
	challenges map[string]*Challenge
}

func NewGameService(sessions SessionRepository, opts Options) (*GameService, error) {
	if opts.Settings.MaxQuestions == 0 {
		opts.Settings = DefaultSettings()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.Generator == nil {
		gen, err := problem.NewGenerator(problem.DefaultConfig(), rand.New(rand.NewSource(opts.Clock.Now().UnixNano())))
		if err != nil {
			return nil, fmt.Errorf("problem generator: %w", err)
		}
		opts.Generator = gen
	}
	if opts.Presenter == nil {
		opts.Presenter = NopPresenter{}
	}
	if opts.Results == nil {
		opts.Results = NopRecorder{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	if opts.Registry == nil {
		opts.Registry = effects.NewRegistry(opts.Clock, 0, opts.Logger)
	}
	if opts.Catalog == nil {
		opts.Catalog = powerup.DefaultCatalog()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	log := opts.Logger.WithField("component", "game")
	s := &GameService{
		sessions:   sessions,
		questions:  opts.Questions,
		index:      NewMembershipIndex(),
		newID:      opts.NewID,
		log:        log,
		challenges: make(map[string]*Challenge),
	}
	s.rt = &runtime{
		settings:  opts.Settings,
		clock:     opts.Clock,
		generator: opts.Generator,
		presenter: opts.Presenter,
		results:   opts.Results,
		registry:  opts.Registry,
		metrics:   opts.Metrics,
		log:       log,
		snapshots: s.saveSnapshot,
	}
	s.rt.powerups = powerup.NewManager(opts.Registry, s, opts.Catalog, opts.Durations, opts.Metrics)
	return s, nil
}

// Registry exposes the timed effect registry so the caller can run its sweep loop.
func (s *GameService) Registry() *effects.Registry { return s.rt.registry }

// PowerUps lists the names accepted by ActivatePowerUp.
func (s *GameService) PowerUps() []string { return s.rt.powerups.Names() }

// StartSession creates the player's solo session if needed and starts a fresh sequence.
func (s *GameService) StartSession(_ context.Context, playerID string) (domain.PlayerSession, error) {
	if _, ok := s.activeChallengeOf(playerID); ok {
		return domain.PlayerSession{}, domain.ErrAlreadyInChallenge
	}
	session, created := s.sessions.GetOrCreate(playerID, func() *SoloSession {
		return newSoloSession(playerID, s.rt)
	})
	if created {
		s.rt.metrics.ActiveSessions.Inc()
	}
	if err := session.Start(); err != nil {
		return domain.PlayerSession{}, err
	}
	return session.Snapshot(), nil
}

// RecordAnswer forwards a target collision. It reports whether the signal resolved a round.
func (s *GameService) RecordAnswer(_ context.Context, playerID string, value int, responseTimeMs int64, round int) (bool, error) {
	if c, ok := s.activeChallengeOf(playerID); ok {
		return c.Answer(playerID, value, responseTimeMs, round), nil
	}
	session, ok := s.sessions.Get(playerID)
	if !ok {
		s.log.WithField("player_id", playerID).Debug("answer for unknown player")
		return false, nil
	}
	return session.Answer(value, round), nil
}

// RecordTimeout forwards a fall past every target.
func (s *GameService) RecordTimeout(_ context.Context, playerID string, round int) (bool, error) {
	if c, ok := s.activeChallengeOf(playerID); ok {
		return c.Timeout(playerID, round), nil
	}
	session, ok := s.sessions.Get(playerID)
	if !ok {
		s.log.WithField("player_id", playerID).Debug("timeout for unknown player")
		return false, nil
	}
	return session.Timeout(round), nil
}

// Disconnect cancels the player's pending deferrals, force-expires their effects, takes them
// off their team and drops the session.
func (s *GameService) Disconnect(_ context.Context, playerID string) {
	session, ok := s.sessions.Get(playerID)
	if ok {
		session.Close()
	}
	expired := s.rt.registry.DeactivateOwner(effects.PlayerKey(playerID))
	if ms, in := s.index.Lookup(playerID); in {
		if c, found := s.challenge(ms.ChallengeID); found {
			if err := c.Leave(playerID); err != nil {
				s.log.WithField("player_id", playerID).WithError(err).Debug("leave on disconnect")
			}
		} else {
			s.index.Remove(playerID, ms.ChallengeID)
		}
	}
	for _, c := range s.hostedBy(playerID) {
		c.HostLeft()
	}
	if ok {
		s.sessions.Delete(playerID)
		s.rt.metrics.ActiveSessions.Dec()
	}
	s.log.WithFields(logrus.Fields{"player_id": playerID, "expired_effects": expired}).Info("player disconnected")
}

// CreateChallenge opens a forming challenge hosted by hostID.
func (s *GameService) CreateChallenge(_ context.Context, hostID string, mode domain.ChallengeMode) (domain.ChallengeSnapshot, error) {
	if !mode.Valid() {
		return domain.ChallengeSnapshot{}, fmt.Errorf("%w: %q", domain.ErrInvalidMode, mode)
	}
	id := s.newID()
	c := newChallenge(id, hostID, mode, s.rt, s.index, s.removeChallenge)

	s.mu.Lock()
	s.challenges[id] = c
	s.mu.Unlock()

	s.rt.metrics.ActiveChallenges.Inc()
	s.log.WithFields(logrus.Fields{"challenge_id": id, "host_id": hostID, "mode": mode}).Info("challenge created")
	return c.Snapshot(), nil
}

// JoinTeam puts playerID on teamID of a forming challenge.
func (s *GameService) JoinTeam(_ context.Context, playerID, challengeID, teamID string) (domain.ChallengeSnapshot, error) {
	c, ok := s.challenge(challengeID)
	if !ok {
		return domain.ChallengeSnapshot{}, domain.ErrChallengeNotFound
	}
	if err := c.Join(playerID, teamID); err != nil {
		return domain.ChallengeSnapshot{}, err
	}
	return c.Snapshot(), nil
}

// LeaveTeam takes playerID out of their challenge.
func (s *GameService) LeaveTeam(_ context.Context, playerID string) error {
	ms, ok := s.index.Lookup(playerID)
	if !ok {
		return domain.ErrNotMember
	}
	c, ok := s.challenge(ms.ChallengeID)
	if !ok {
		s.index.Remove(playerID, ms.ChallengeID)
		return domain.ErrChallengeNotFound
	}
	return c.Leave(playerID)
}

// AutoBalance redistributes the members of a forming challenge.
func (s *GameService) AutoBalance(_ context.Context, challengeID string) (domain.ChallengeSnapshot, error) {
	c, ok := s.challenge(challengeID)
	if !ok {
		return domain.ChallengeSnapshot{}, domain.ErrChallengeNotFound
	}
	if err := c.AutoBalance(); err != nil {
		return domain.ChallengeSnapshot{}, err
	}
	return c.Snapshot(), nil
}

// StartChallenge starts a forming challenge with the curated questionSetID, or with generated
// problems when questionSetID is empty. Solo sequences of the members are stopped.
func (s *GameService) StartChallenge(ctx context.Context, challengeID, questionSetID string, difficulty domain.Difficulty) (domain.ChallengeSnapshot, error) {
	c, ok := s.challenge(challengeID)
	if !ok {
		return domain.ChallengeSnapshot{}, domain.ErrChallengeNotFound
	}
	var questions []domain.Problem
	if questionSetID != "" {
		if s.questions == nil {
			return domain.ChallengeSnapshot{}, domain.ErrQuestionSetNotFound
		}
		set, err := s.questions.GetQuestionSet(ctx, questionSetID)
		if err != nil {
			return domain.ChallengeSnapshot{}, err
		}
		questions = set.Questions
	}
	players, err := c.Start(questions, difficulty)
	if err != nil {
		return domain.ChallengeSnapshot{}, err
	}
	for _, pid := range players {
		if session, ok := s.sessions.Get(pid); ok {
			session.Stop()
		}
	}
	return c.Snapshot(), nil
}

// ActivateTimedEffect arms an arbitrary named effect. onExpire runs exactly once.
func (s *GameService) ActivateTimedEffect(owner effects.OwnerKey, name string, duration time.Duration, onExpire func()) bool {
	return s.rt.registry.Activate(owner, name, duration, onExpire)
}

// IsEffectActive reports whether name is armed for owner.
func (s *GameService) IsEffectActive(owner effects.OwnerKey, name string) bool {
	return s.rt.registry.IsActive(owner, name)
}

// ActivatePowerUp arms a power-up for the player, or for their team while a challenge runs.
// It reports whether an active power-up was extended.
func (s *GameService) ActivatePowerUp(_ context.Context, playerID, name string) (bool, error) {
	if c, ok := s.activeChallengeOf(playerID); ok {
		ms, _ := s.index.Lookup(playerID)
		return s.rt.powerups.Activate(effects.TeamKey(c.ID(), ms.TeamID), name, 0)
	}
	if _, ok := s.sessions.Get(playerID); !ok {
		return false, domain.ErrSessionNotFound
	}
	return s.rt.powerups.Activate(effects.PlayerKey(playerID), name, 0)
}

// SessionSnapshot returns the player's current solo record.
func (s *GameService) SessionSnapshot(playerID string) (domain.PlayerSession, error) {
	session, ok := s.sessions.Get(playerID)
	if !ok {
		return domain.PlayerSession{}, domain.ErrSessionNotFound
	}
	return session.Snapshot(), nil
}

// ChallengeSnapshot returns the lobby/scoreboard view of a challenge.
func (s *GameService) ChallengeSnapshot(challengeID string) (domain.ChallengeSnapshot, error) {
	c, ok := s.challenge(challengeID)
	if !ok {
		return domain.ChallengeSnapshot{}, domain.ErrChallengeNotFound
	}
	return c.Snapshot(), nil
}

// Deliver applies a power-up intent to the state machine that owns it. Intents for owners that
// are gone are dropped.
func (s *GameService) Deliver(in powerup.Intent) {
	kind, rest, _ := strings.Cut(string(in.Owner), ":")
	switch kind {
	case "player":
		if session, ok := s.sessions.Get(rest); ok {
			session.applyIntent(in)
			return
		}
	case "team":
		challengeID, teamID, _ := strings.Cut(rest, ":")
		if c, ok := s.challenge(challengeID); ok {
			c.applyIntent(teamID, in)
			return
		}
	}
	s.log.WithFields(logrus.Fields{"owner": in.Owner, "intent": in.Kind}).Debug("intent for missing owner")
}

// Close stops every challenge timer.
func (s *GameService) Close() {
	s.mu.RLock()
	list := make([]*Challenge, 0, len(s.challenges))
	for _, c := range s.challenges {
		list = append(list, c)
	}
	s.mu.RUnlock()
	for _, c := range list {
		c.Close()
	}
}

func (s *GameService) challenge(id string) (*Challenge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.challenges[id]
	return c, ok
}

func (s *GameService) hostedBy(playerID string) []*Challenge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Challenge
	for _, c := range s.challenges {
		if c.hostID == playerID {
			out = append(out, c)
		}
	}
	return out
}

func (s *GameService) activeChallengeOf(playerID string) (*Challenge, bool) {
	ms, ok := s.index.Lookup(playerID)
	if !ok {
		return nil, false
	}
	c, ok := s.challenge(ms.ChallengeID)
	if !ok || c.State() != domain.ChallengeActive {
		return nil, false
	}
	return c, true
}

// removeChallenge runs once the post-game grace delay of a challenge elapsed.
func (s *GameService) removeChallenge(id string) {
	s.mu.Lock()
	_, ok := s.challenges[id]
	delete(s.challenges, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	members := s.index.RemoveChallenge(id)
	s.rt.metrics.ActiveChallenges.Dec()
	s.log.WithFields(logrus.Fields{"challenge_id": id, "members": len(members)}).Info("challenge torn down")
}

func (s *GameService) saveSnapshot(snap domain.PlayerSession) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	s.sessions.SaveSnapshot(ctx, snap)
}
