package powerup

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"freefall-server/internal/domain"
	"freefall-server/internal/effects"
	"freefall-server/internal/metrics"
)

// Catalog names.
const (
	SlowFall     = "SlowFall"
	Shield       = "Shield"
	DoublePoints = "DoublePoints"
	Magnet       = "Magnet"
	Rewind       = "Rewind"
)

// IntentKind says which piece of owner state an intent changes.
type IntentKind string

const (
	IntentScoreMultiplier IntentKind = "score_multiplier"
	IntentShieldCharges   IntentKind = "shield_charges"
	IntentRewindCharges   IntentKind = "rewind_charges"
	IntentFallSpeed       IntentKind = "fall_speed"
	IntentMagnet          IntentKind = "magnet"
)

// Intent asks the owning state machine to change its own state.
type Intent struct {
	Owner effects.OwnerKey
	Kind  IntentKind
	Value int
	Scale float64
}

// IntentSink applies intents to whichever session or team owns them.
type IntentSink interface {
	Deliver(Intent)
}

// PowerUp is one effect strategy plugged into the registry.
type PowerUp interface {
	Name() string
	OnActivate(owner effects.OwnerKey) []Intent
	OnExpire(owner effects.OwnerKey) []Intent
}

type intentPowerUp struct {
	name     string
	kind     IntentKind
	on, off  int
	onScale  float64
	offScale float64
}

func (p intentPowerUp) Name() string { return p.name }

func (p intentPowerUp) OnActivate(owner effects.OwnerKey) []Intent {
	return []Intent{{Owner: owner, Kind: p.kind, Value: p.on, Scale: p.onScale}}
}

func (p intentPowerUp) OnExpire(owner effects.OwnerKey) []Intent {
	return []Intent{{Owner: owner, Kind: p.kind, Value: p.off, Scale: p.offScale}}
}

// DefaultCatalog returns the built-in power-ups.
func DefaultCatalog() []PowerUp {
	return []PowerUp{
		intentPowerUp{name: SlowFall, kind: IntentFallSpeed, onScale: 0.5, offScale: 1},
		intentPowerUp{name: Shield, kind: IntentShieldCharges, on: 1, off: 0},
		intentPowerUp{name: DoublePoints, kind: IntentScoreMultiplier, on: 2, off: 1},
		intentPowerUp{name: Magnet, kind: IntentMagnet, on: 1, off: 0},
		intentPowerUp{name: Rewind, kind: IntentRewindCharges, on: 1, off: 0},
	}
}

// DefaultDurations are used when no duration is configured or requested.
func DefaultDurations() map[string]time.Duration {
	return map[string]time.Duration{
		SlowFall:     8 * time.Second,
		Shield:       15 * time.Second,
		DoublePoints: 10 * time.Second,
		Magnet:       6 * time.Second,
		Rewind:       20 * time.Second,
	}
}

// Manager activates catalog power-ups through the timed effect registry.
type Manager struct {
	registry  *effects.Registry
	sink      IntentSink
	catalog   map[string]PowerUp
	durations map[string]time.Duration
	metrics   *metrics.Metrics
}

func NewManager(registry *effects.Registry, sink IntentSink, catalog []PowerUp, durations map[string]time.Duration, m *metrics.Metrics) *Manager {
	byName := make(map[string]PowerUp, len(catalog))
	for _, p := range catalog {
		byName[p.Name()] = p
	}
	merged := DefaultDurations()
	for name, d := range durations {
		if d > 0 {
			merged[name] = d
		}
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Manager{registry: registry, sink: sink, catalog: byName, durations: merged, metrics: m}
}

// Names lists the catalog in sorted order.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.catalog))
	for name := range m.catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Activate arms the named power-up for owner. A zero duration uses the configured one.
// Activation intents are re-delivered on extension so charges are refilled.
func (m *Manager) Activate(owner effects.OwnerKey, name string, duration time.Duration) (bool, error) {
	p, ok := m.catalog[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", domain.ErrUnknownPowerUp, name)
	}
	if duration <= 0 {
		duration = m.durations[name]
	}

	extended := m.registry.Activate(owner, name, duration, func() {
		m.metrics.EffectsExpired.WithLabelValues(name).Inc()
		m.deliver(p.OnExpire(owner))
	})
	m.metrics.EffectsActivated.WithLabelValues(name, strconv.FormatBool(extended)).Inc()
	m.deliver(p.OnActivate(owner))
	return extended, nil
}

// Consume forces the power-up to expire now, e.g. a shield that absorbed its last hit.
func (m *Manager) Consume(owner effects.OwnerKey, name string) bool {
	return m.registry.Deactivate(owner, name)
}

// Active reports whether the power-up is armed for owner.
func (m *Manager) Active(owner effects.OwnerKey, name string) bool {
	return m.registry.IsActive(owner, name)
}

func (m *Manager) deliver(intents []Intent) {
	if m.sink == nil {
		return
	}
	for _, in := range intents {
		m.sink.Deliver(in)
	}
}
