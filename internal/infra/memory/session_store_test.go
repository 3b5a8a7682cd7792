package memory

import (
	"context"
	"testing"

	"freefall-server/internal/app"
	"freefall-server/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()
	service, err := app.NewGameService(store, app.Options{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := service.StartSession(context.Background(), "p1"); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, ok := store.Get("p1"); !ok {
		t.Fatalf("expected session present")
	}
	snap, ok := store.Snapshot("p1")
	if !ok || snap.State != domain.SessionActive {
		t.Fatalf("expected active snapshot, got %+v (present=%v)", snap, ok)
	}

	first, _ := store.Get("p1")
	again, created := store.GetOrCreate("p1", func() *app.SoloSession { return nil })
	if created || again != first {
		t.Fatalf("expected existing session to be returned")
	}

	service.Disconnect(context.Background(), "p1")
	if _, ok := store.Get("p1"); ok {
		t.Fatalf("expected session removed on disconnect")
	}
	if _, ok := store.Snapshot("p1"); ok {
		t.Fatalf("expected snapshot removed on disconnect")
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}
}
