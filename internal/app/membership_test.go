package app

import (
	"errors"
	"testing"

	"freefall-server/internal/domain"
)

func TestMembershipIndex(t *testing.T) {
	idx := NewMembershipIndex()

	if err := idx.Assign("p1", domain.Membership{ChallengeID: "c1", TeamID: "red"}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := idx.Assign("p1", domain.Membership{ChallengeID: "c1", TeamID: "blue"}); err != nil {
		t.Fatalf("move within challenge: %v", err)
	}
	if err := idx.Assign("p1", domain.Membership{ChallengeID: "c2", TeamID: "red"}); !errors.Is(err, domain.ErrAlreadyInChallenge) {
		t.Fatalf("expected already in challenge, got %v", err)
	}
	if ms, _ := idx.Lookup("p1"); ms.TeamID != "blue" {
		t.Fatalf("expected blue, got %+v", ms)
	}

	idx.Reassign("c1", map[string]string{"p1": "red", "p2": "blue"})
	if got := idx.Members("c1"); len(got) != 2 || got[0] != "p1" || got[1] != "p2" {
		t.Fatalf("unexpected members %v", got)
	}

	if idx.Remove("p1", "c2") {
		t.Fatalf("remove with wrong challenge should be a no-op")
	}
	if !idx.Remove("p1", "c1") {
		t.Fatalf("expected p1 removed")
	}
	if removed := idx.RemoveChallenge("c1"); len(removed) != 1 || removed[0] != "p2" {
		t.Fatalf("unexpected removed %v", removed)
	}
	if _, ok := idx.Lookup("p2"); ok {
		t.Fatalf("p2 should be gone")
	}
}
