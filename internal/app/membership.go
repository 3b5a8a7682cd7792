package app

import (
	"sort"
	"sync"

	"freefall-server/internal/domain"
)

// MembershipIndex is the reverse index player -> challenge/team. A player belongs to at most one
// challenge; the index is only changed through its methods.
type MembershipIndex struct {
	mu       sync.RWMutex
	byPlayer map[string]domain.Membership
}

func NewMembershipIndex() *MembershipIndex {
	return &MembershipIndex{byPlayer: make(map[string]domain.Membership)}
}

// Lookup returns the player's membership, if any.
func (m *MembershipIndex) Lookup(playerID string) (domain.Membership, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, ok := m.byPlayer[playerID]
	return ms, ok
}

// Assign places the player on a team. Moving between teams of the same challenge is allowed,
// joining a second challenge is not.
func (m *MembershipIndex) Assign(playerID string, ms domain.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.byPlayer[playerID]; ok && cur.ChallengeID != ms.ChallengeID {
		return domain.ErrAlreadyInChallenge
	}
	m.byPlayer[playerID] = ms
	return nil
}

// Remove drops the player if they belong to challengeID.
func (m *MembershipIndex) Remove(playerID, challengeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.byPlayer[playerID]; ok && cur.ChallengeID == challengeID {
		delete(m.byPlayer, playerID)
		return true
	}
	return false
}

// Reassign moves every listed player of challengeID to its new team in one step, so no reader
// ever sees a player unassigned or on two teams.
func (m *MembershipIndex) Reassign(challengeID string, teams map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for playerID, teamID := range teams {
		m.byPlayer[playerID] = domain.Membership{ChallengeID: challengeID, TeamID: teamID}
	}
}

// Members lists the players of challengeID in sorted order.
func (m *MembershipIndex) Members(challengeID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for playerID, ms := range m.byPlayer {
		if ms.ChallengeID == challengeID {
			out = append(out, playerID)
		}
	}
	sort.Strings(out)
	return out
}

// RemoveChallenge drops every member of challengeID and returns them.
func (m *MembershipIndex) RemoveChallenge(challengeID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for playerID, ms := range m.byPlayer {
		if ms.ChallengeID == challengeID {
			out = append(out, playerID)
			delete(m.byPlayer, playerID)
		}
	}
	sort.Strings(out)
	return out
}
