package effects

import (
	"context"
	"sort"
	"sync"
	"time"

	"freefall-server/internal/clock"
	"github.com/sirupsen/logrus"
)

// DefaultSweepInterval is how often Run expires effects.
const DefaultSweepInterval = 100 * time.Millisecond

// OwnerKey identifies who an effect is attached to: a player or a team.
type OwnerKey string

// PlayerKey is the owner key of a solo player.
func PlayerKey(playerID string) OwnerKey { return OwnerKey("player:" + playerID) }

// TeamKey is the owner key of a team inside a challenge.
func TeamKey(challengeID, teamID string) OwnerKey {
	return OwnerKey("team:" + challengeID + ":" + teamID)
}

type entry struct {
	expiresAt time.Time
	onExpire  func()
}

// Registry stores named, time-bounded effects per owner and is the only place that runs their
// expiry callbacks. Each callback runs exactly once per activation.
type Registry struct {
	clock    clock.Clock
	interval time.Duration
	log      *logrus.Entry

	mu     sync.Mutex
	owners map[OwnerKey]map[string]*entry
}

// NewRegistry builds a registry. A zero interval uses DefaultSweepInterval.
func NewRegistry(clk clock.Clock, interval time.Duration, log *logrus.Entry) *Registry {
	if clk == nil {
		clk = clock.Real()
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{
		clock:    clk,
		interval: interval,
		log:      log.WithField("component", "effects"),
		owners:   make(map[OwnerKey]map[string]*entry),
	}
}

// Activate arms name for owner until now+duration. Re-activating a live effect only moves its
// expiry; the original callback is kept. An effect that already expired but was not swept yet is
// expired first, so its callback runs before the new activation is stored. It reports whether a
// live effect was extended.
func (r *Registry) Activate(owner OwnerKey, name string, duration time.Duration, onExpire func()) bool {
	now := r.clock.Now()

	r.mu.Lock()
	effects, ok := r.owners[owner]
	if !ok {
		effects = make(map[string]*entry)
		r.owners[owner] = effects
	}
	var stale func()
	if e, ok := effects[name]; ok {
		if e.expiresAt.After(now) {
			e.expiresAt = now.Add(duration)
			r.mu.Unlock()
			return true
		}
		stale = e.onExpire
	}
	effects[name] = &entry{expiresAt: now.Add(duration), onExpire: onExpire}
	r.mu.Unlock()

	if stale != nil {
		r.invoke(owner, name, stale)
	}
	return false
}

// IsActive reports whether owner has an unexpired effect called name.
func (r *Registry) IsActive(owner OwnerKey, name string) bool {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.owners[owner][name]
	return ok && e.expiresAt.After(now)
}

// Expiry returns when the effect expires.
func (r *Registry) Expiry(owner OwnerKey, name string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.owners[owner][name]
	if !ok {
		return time.Time{}, false
	}
	return e.expiresAt, true
}

// ListActive returns the sorted names of owner's unexpired effects.
func (r *Registry) ListActive(owner OwnerKey) []string {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.owners[owner]))
	for name, e := range r.owners[owner] {
		if e.expiresAt.After(now) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Deactivate expires the effect immediately, running its callback synchronously.
// It reports false when there was nothing to expire.
func (r *Registry) Deactivate(owner OwnerKey, name string) bool {
	r.mu.Lock()
	e, ok := r.owners[owner][name]
	if ok {
		r.removeLocked(owner, name)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.invoke(owner, name, e.onExpire)
	return true
}

// DeactivateOwner expires every effect of owner, in name order.
func (r *Registry) DeactivateOwner(owner OwnerKey) int {
	r.mu.Lock()
	effects := r.owners[owner]
	delete(r.owners, owner)
	r.mu.Unlock()

	names := make([]string, 0, len(effects))
	for name := range effects {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r.invoke(owner, name, effects[name].onExpire)
	}
	return len(names)
}

type expired struct {
	owner    OwnerKey
	name     string
	onExpire func()
}

// Sweep expires every effect whose expiry is at or before now. Owners and names are visited in
// sorted order. It returns the number of expired effects.
func (r *Registry) Sweep() int {
	now := r.clock.Now()

	r.mu.Lock()
	owners := make([]OwnerKey, 0, len(r.owners))
	for owner := range r.owners {
		owners = append(owners, owner)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })

	var due []expired
	for _, owner := range owners {
		effects := r.owners[owner]
		names := make([]string, 0, len(effects))
		for name := range effects {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if e := effects[name]; !e.expiresAt.After(now) {
				due = append(due, expired{owner: owner, name: name, onExpire: e.onExpire})
				r.removeLocked(owner, name)
			}
		}
	}
	r.mu.Unlock()

	for _, d := range due {
		r.invoke(d.owner, d.name, d.onExpire)
	}
	return len(due)
}

// Run sweeps on the configured interval until ctx is done. Ticks are scheduled on the registry's
// clock, so a fake clock drives the loop in tests.
func (r *Registry) Run(ctx context.Context) error {
	var (
		mu      sync.Mutex
		timer   clock.Timer
		stopped bool
		tick    func()
	)
	tick = func() {
		r.Sweep()
		mu.Lock()
		defer mu.Unlock()
		if !stopped {
			timer = r.clock.AfterFunc(r.interval, tick)
		}
	}

	mu.Lock()
	timer = r.clock.AfterFunc(r.interval, tick)
	mu.Unlock()

	<-ctx.Done()

	mu.Lock()
	stopped = true
	timer.Stop()
	mu.Unlock()
	return nil
}

func (r *Registry) removeLocked(owner OwnerKey, name string) {
	effects := r.owners[owner]
	delete(effects, name)
	if len(effects) == 0 {
		delete(r.owners, owner)
	}
}

// invoke runs a callback outside the registry lock; a panicking callback is logged and does not
// affect the remaining callbacks of the pass.
func (r *Registry) invoke(owner OwnerKey, name string, onExpire func()) {
	if onExpire == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithFields(logrus.Fields{"owner": owner, "effect": name, "panic": rec}).Error("effect expiry callback failed")
		}
	}()
	onExpire()
}
