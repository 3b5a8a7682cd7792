package memory

import (
	"context"
	"sync"

	"freefall-server/internal/app"
	"freefall-server/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu        sync.RWMutex
	sessions  map[string]*app.SoloSession
	snapshots map[string]domain.PlayerSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions:  make(map[string]*app.SoloSession),
		snapshots: make(map[string]domain.PlayerSession),
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
	delete(s.sessions, playerID)
	delete(s.snapshots, playerID)
}

// SaveSnapshot keeps the latest record per player. Snapshots of dropped players are ignored.
func (s *SessionStore) SaveSnapshot(_ context.Context, snapshot domain.PlayerSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[snapshot.PlayerID]; !ok {
		return
	}
	s.snapshots[snapshot.PlayerID] = snapshot
}

// Snapshot returns the last saved record of playerID.
func (s *SessionStore) Snapshot(playerID string) (domain.PlayerSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[playerID]
	return snap, ok
}

// Len reports the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
