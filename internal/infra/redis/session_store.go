package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"freefall-server/internal/app"
	"freefall-server/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Live state machines stay in a local map; timers and locks cannot leave the process.
//   - Redis holds a liveness marker per player plus the latest msgpack-encoded snapshot, so
//     other instances and dashboards can read player records.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Entry

	mu       sync.RWMutex
	sessions map[string]*app.SoloSession
}

func NewSessionStore(client *redis.Client, ttl time.Duration, log *logrus.Entry) *SessionStore {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		log:      log.WithField("component", "redis_sessions"),
		sessions: make(map[string]*app.SoloSession),
	}
}

func (s *SessionStore) GetOrCreate(playerID string, create func() *app.SoloSession) (*app.SoloSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[playerID]; ok {
		return session, false
	}
	session := create()
	s.sessions[playerID] = session
	// best-effort liveness marker
	if err := s.client.Set(context.Background(), s.key(playerID), "1", s.ttl).Err(); err != nil {
		s.log.WithField("player_id", playerID).WithError(err).Warn("set liveness key")
	}
	return session, true
}

func (s *SessionStore) Get(playerID string) (*app.SoloSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[playerID]
	return session, ok
}

func (s *SessionStore) Delete(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[playerID]; !ok {
		return
	}
	delete(s.sessions, playerID)
	if err := s.client.Del(context.Background(), s.key(playerID), s.snapshotKey(playerID)).Err(); err != nil {
		s.log.WithField("player_id", playerID).WithError(err).Warn("delete session keys")
	}
}

// SaveSnapshot writes the record and refreshes the liveness marker. Failures are logged only.
func (s *SessionStore) SaveSnapshot(ctx context.Context, snapshot domain.PlayerSession) {
	s.mu.RLock()
	_, live := s.sessions[snapshot.PlayerID]
	s.mu.RUnlock()
	if !live {
		return
	}

	blob, err := msgpack.Marshal(snapshot)
	if err != nil {
		s.log.WithField("player_id", snapshot.PlayerID).WithError(err).Warn("encode snapshot")
		return
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.snapshotKey(snapshot.PlayerID), blob, s.ttl)
	pipe.Expire(ctx, s.key(snapshot.PlayerID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.WithField("player_id", snapshot.PlayerID).WithError(err).Warn("save snapshot")
	}
}

// LoadSnapshot reads the last saved record of playerID.
func (s *SessionStore) LoadSnapshot(ctx context.Context, playerID string) (domain.PlayerSession, error) {
	blob, err := s.client.Get(ctx, s.snapshotKey(playerID)).Bytes()
	if err == redis.Nil {
		return domain.PlayerSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.PlayerSession{}, fmt.Errorf("load snapshot: %w", err)
	}
	var snap domain.PlayerSession
	if err := msgpack.Unmarshal(blob, &snap); err != nil {
		return domain.PlayerSession{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func (s *SessionStore) key(playerID string) string {
	return "freefall:session:" + playerID
}

func (s *SessionStore) snapshotKey(playerID string) string {
	return "freefall:session:" + playerID + ":snapshot"
}
