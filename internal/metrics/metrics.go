package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "ddos_defense"

type Metrics struct {
	CyclesTotal       prometheus.Counter
	CycleFailures     prometheus.Counter
	CycleOverruns     prometheus.Counter
	CycleDuration     prometheus.Histogram
	ActionsTotal      *prometheus.CounterVec
	AttackEventsTotal *prometheus.CounterVec
	TrainingSteps     prometheus.Counter
	TargetSyncs       prometheus.Counter
	Epsilon           prometheus.Gauge
	ReplaySize        prometheus.Gauge
	AttackIntensity   prometheus.Gauge
	UnderAttack       prometheus.Gauge
	AverageLoss       prometheus.Gauge
	AverageReward     prometheus.Gauge
	PacketsIngested   *prometheus.CounterVec
	WebsocketClients  prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detection_cycles_total",
			Help:      "Detection cycles completed",
		}),
		CycleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detection_cycle_failures_total",
			Help:      "Detection cycles that failed or panicked",
		}),
		CycleOverruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detection_cycle_overruns_total",
			Help:      "Detection cycles that took longer than the interval",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detection_cycle_duration_seconds",
			Help:      "Detection cycle latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		ActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "defense_actions_total",
			Help:      "Defense actions chosen by the policy",
		}, []string{"action"}),
		AttackEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attack_events_total",
			Help:      "Attack event transitions",
		}, []string{"outcome"}),
		TrainingSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_training_steps_total",
			Help:      "Replay training steps performed",
		}),
		TargetSyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_target_syncs_total",
			Help:      "Target model synchronizations",
		}),
		Epsilon: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "policy_epsilon",
			Help:      "Current exploration rate",
		}),
		ReplaySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "policy_replay_size",
			Help:      "Transitions held in the replay buffer",
		}),
		AttackIntensity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "attack_intensity",
			Help:      "Attack intensity estimated in the last cycle",
		}),
		UnderAttack: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "under_attack",
			Help:      "1 while an attack event is open",
		}),
		AverageLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "policy_average_loss",
			Help:      "Rolling average training loss",
		}),
		AverageReward: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "policy_average_reward",
			Help:      "Rolling average reward",
		}),
		PacketsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_ingested_total",
			Help:      "Packets accepted by the ingest API",
		}, []string{"attack"}),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected dashboard clients",
		}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.CycleFailures,
		m.CycleOverruns,
		m.CycleDuration,
		m.ActionsTotal,
		m.AttackEventsTotal,
		m.TrainingSteps,
		m.TargetSyncs,
		m.Epsilon,
		m.ReplaySize,
		m.AttackIntensity,
		m.UnderAttack,
		m.AverageLoss,
		m.AverageReward,
		m.PacketsIngested,
		m.WebsocketClients,
	)
	return m
}
