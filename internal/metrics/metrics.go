package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the game server.
type Metrics struct {
	RoundsResolved   *prometheus.CounterVec
	StaleSignals     *prometheus.CounterVec
	EffectsActivated *prometheus.CounterVec
	EffectsExpired   *prometheus.CounterVec
	ChallengesEnded  *prometheus.CounterVec
	ActiveSessions   prometheus.Gauge
	ActiveChallenges prometheus.Gauge
}

// New registers the collectors on reg. A nil reg leaves them unregistered, which keeps tests
// from colliding on the default registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RoundsResolved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "freefall",
				Name:      "rounds_resolved_total",
				Help:      "Resolved rounds by game mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		StaleSignals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "freefall",
				Name:      "stale_signals_total",
				Help:      "Answer or timeout signals ignored because the round was already resolved",
			},
			[]string{"mode", "signal"},
		),
		EffectsActivated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "freefall",
				Name:      "effects_activated_total",
				Help:      "Timed effect activations, including extensions",
			},
			[]string{"effect", "extended"},
		),
		EffectsExpired: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "freefall",
				Name:      "effects_expired_total",
				Help:      "Timed effect expiries",
			},
			[]string{"effect"},
		),
		ChallengesEnded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "freefall",
				Name:      "challenges_ended_total",
				Help:      "Finished team challenges by mode",
			},
			[]string{"mode"},
		),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "freefall",
			Name:      "sessions_active",
			Help:      "Connected player sessions",
		}),
		ActiveChallenges: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "freefall",
			Name:      "challenges_active",
			Help:      "Team challenges that are not torn down yet",
		}),
	}
}
