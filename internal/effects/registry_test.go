package effects

import (
	"context"
	"testing"
	"time"

	"freefall-server/internal/clock"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() (*Registry, *clock.Fake) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	return NewRegistry(clk, 100*time.Millisecond, nil), clk
}

func TestReactivationExtendsInsteadOfDuplicating(t *testing.T) {
	reg, clk := newTestRegistry()
	owner := PlayerKey("P1")
	calls := 0

	reg.Activate(owner, "Shield", 5*time.Second, func() { calls++ })
	clk.Advance(time.Second)
	second := clk.Now()
	extended := reg.Activate(owner, "Shield", 5*time.Second, func() { t.Fatalf("replacement callback must not run") })
	require.True(t, extended)

	require.Equal(t, []string{"Shield"}, reg.ListActive(owner))
	expiry, ok := reg.Expiry(owner, "Shield")
	require.True(t, ok)
	require.Equal(t, second.Add(5*time.Second), expiry)

	// The first activation's expiry passes without firing.
	clk.Advance(4500 * time.Millisecond)
	require.Equal(t, 0, reg.Sweep())
	require.True(t, reg.IsActive(owner, "Shield"))

	clk.Advance(500 * time.Millisecond)
	require.Equal(t, 1, reg.Sweep())
	require.Equal(t, 1, calls)
	require.False(t, reg.IsActive(owner, "Shield"))
	require.Empty(t, reg.ListActive(owner))
}

func TestReactivationAfterUnsweptExpiryStartsFresh(t *testing.T) {
	reg, clk := newTestRegistry()
	owner := PlayerKey("P1")
	first, second := 0, 0

	require.False(t, reg.Activate(owner, "SlowFall", time.Second, func() { first++ }))
	clk.Advance(2 * time.Second)

	// the first activation is past its expiry but no sweep ran yet
	require.False(t, reg.Activate(owner, "SlowFall", time.Second, func() { second++ }))
	require.Equal(t, 1, first)
	require.Equal(t, 0, second)
	require.True(t, reg.IsActive(owner, "SlowFall"))

	clk.Advance(2 * time.Second)
	require.Equal(t, 1, reg.Sweep())
	require.Equal(t, 1, first)
	require.Equal(t, 1, second)
}

func TestCallbackFiresExactlyOnce(t *testing.T) {
	reg, clk := newTestRegistry()
	owner := PlayerKey("P1")
	calls := 0
	reg.Activate(owner, "DoublePoints", time.Second, func() { calls++ })

	require.True(t, reg.Deactivate(owner, "DoublePoints"))
	require.Equal(t, 1, calls)

	clk.Advance(2 * time.Second)
	require.Equal(t, 0, reg.Sweep())
	require.False(t, reg.Deactivate(owner, "DoublePoints"))
	require.Equal(t, 1, calls)
}

func TestSweepSurvivesPanickingCallback(t *testing.T) {
	reg, clk := newTestRegistry()
	var fired []string
	reg.Activate(PlayerKey("a"), "Boom", time.Second, func() { panic("broken renderer") })
	reg.Activate(PlayerKey("b"), "SlowFall", time.Second, func() { fired = append(fired, "b") })
	reg.Activate(PlayerKey("c"), "Magnet", time.Second, func() { fired = append(fired, "c") })

	clk.Advance(time.Second)
	require.Equal(t, 3, reg.Sweep())
	require.Equal(t, []string{"b", "c"}, fired)
}

func TestCallbackMayReenterRegistry(t *testing.T) {
	reg, clk := newTestRegistry()
	owner := TeamKey("c1", "red")
	reg.Activate(owner, "Shield", time.Second, func() {
		require.False(t, reg.IsActive(owner, "Shield"))
		reg.Activate(owner, "Cooldown", time.Second, nil)
	})
	clk.Advance(time.Second)
	reg.Sweep()
	require.Equal(t, []string{"Cooldown"}, reg.ListActive(owner))
}

func TestDeactivateOwnerFiresEverything(t *testing.T) {
	reg, _ := newTestRegistry()
	owner := PlayerKey("P1")
	var fired []string
	reg.Activate(owner, "SlowFall", time.Minute, func() { fired = append(fired, "SlowFall") })
	reg.Activate(owner, "Magnet", time.Minute, func() { fired = append(fired, "Magnet") })
	reg.Activate(PlayerKey("P2"), "Magnet", time.Minute, func() { fired = append(fired, "other") })

	require.Equal(t, 2, reg.DeactivateOwner(owner))
	require.Equal(t, []string{"Magnet", "SlowFall"}, fired)
	require.Empty(t, reg.ListActive(owner))
	require.True(t, reg.IsActive(PlayerKey("P2"), "Magnet"))
}

func TestRunSweepsOnTheRegistryClock(t *testing.T) {
	reg, clk := newTestRegistry()
	owner := PlayerKey("P1")
	expired := make(chan struct{}, 1)
	reg.Activate(owner, "Magnet", 150*time.Millisecond, func() { expired <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reg.Run(ctx) }()
	require.Eventually(t, func() bool { return clk.Pending() == 1 }, time.Second, time.Millisecond)

	clk.Advance(100 * time.Millisecond)
	require.True(t, reg.IsActive(owner, "Magnet"))
	clk.Advance(100 * time.Millisecond)
	select {
	case <-expired:
	default:
		t.Fatalf("second tick should have expired the effect")
	}
	require.False(t, reg.IsActive(owner, "Magnet"))

	cancel()
	require.NoError(t, <-done)
	require.Equal(t, 0, clk.Pending())
}
