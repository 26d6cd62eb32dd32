// Package detection runs the periodic detect, act and learn cycle that ties
// feature extraction, the defense policy and attack-event tracking together.
package detection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nshruti113/adaptive-ddos-defense/internal/events"
	"github.com/nshruti113/adaptive-ddos-defense/internal/features"
	"github.com/nshruti113/adaptive-ddos-defense/internal/metrics"
	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
	"github.com/nshruti113/adaptive-ddos-defense/internal/policy"
	"github.com/nshruti113/adaptive-ddos-defense/internal/ring"
)

var ErrInvalidConfig = errors.New("invalid detection config")

type Config struct {
	Interval             time.Duration `yaml:"interval"`
	TrainingInterval     int           `yaml:"training_interval"`
	TargetSyncMultiplier int           `yaml:"target_sync_multiplier"`
	RetryBackoff         time.Duration `yaml:"retry_backoff"`
	WindowSize           int           `yaml:"window_size"`
	HistorySize          int           `yaml:"history_size"`
}

func DefaultConfig() Config {
	return Config{
		Interval:             2 * time.Second,
		TrainingInterval:     10,
		TargetSyncMultiplier: 10,
		RetryBackoff:         time.Second,
		WindowSize:           1000,
		HistorySize:          100,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Interval <= 0:
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	case c.TrainingInterval <= 0:
		return fmt.Errorf("%w: training_interval must be positive", ErrInvalidConfig)
	case c.TargetSyncMultiplier <= 0:
		return fmt.Errorf("%w: target_sync_multiplier must be positive", ErrInvalidConfig)
	case c.RetryBackoff < 0:
		return fmt.Errorf("%w: retry_backoff must not be negative", ErrInvalidConfig)
	case c.WindowSize <= 0:
		return fmt.Errorf("%w: window_size must be positive", ErrInvalidConfig)
	case c.HistorySize <= 0:
		return fmt.Errorf("%w: history_size must be positive", ErrInvalidConfig)
	}
	return nil
}

// Deps are the collaborators a Loop drives. Metrics and Sink are optional.
type Deps struct {
	Packets   models.PacketStore
	Stats     models.StatsStore
	Extractor *features.Extractor
	Agent     *policy.Agent
	Tracker   *events.Tracker
	Sink      ActionSink
	Metrics   *metrics.Metrics
}

// CycleResult describes one completed cycle.
type CycleResult struct {
	Cycle        int64              `json:"cycle"`
	Metrics      models.Metrics     `json:"metrics"`
	Action       models.Action      `json:"action"`
	Outcome      events.Outcome     `json:"-"`
	Event        models.AttackEvent `json:"event"`
	Reward       *float64           `json:"reward,omitempty"`
	Loss         *float64           `json:"loss,omitempty"`
	TargetSynced bool               `json:"target_synced"`
}

// Status is an immutable view of the loop for dashboards.
type Status struct {
	Cycle             int64           `json:"cycle"`
	Running           bool            `json:"running"`
	Epsilon           float64         `json:"epsilon"`
	ReplaySize        int             `json:"memory_size"`
	TrainSteps        int             `json:"train_steps"`
	AverageLoss       *float64        `json:"average_loss"`
	AverageReward     *float64        `json:"average_reward"`
	LastTraining      *time.Time      `json:"last_training"`
	Action            models.Action   `json:"current_action"`
	ActionName        string          `json:"current_action_name"`
	ActionDescription string          `json:"current_action_description"`
	UnderAttack       bool            `json:"is_under_attack"`
	CurrentEventID    *int64          `json:"current_attack_id"`
	AttackIntensity   float64         `json:"attack_intensity"`
	LastMetrics       *models.Metrics `json:"last_metrics"`
	UpdatedAt         *time.Time      `json:"updated_at"`
}

// Loop owns the detection cycle. RunCycle and Run may be called from one
// goroutine at a time; Status and History are safe from any goroutine.
type Loop struct {
	cfg       Config
	packets   models.PacketStore
	stats     models.StatsStore
	extractor *features.Extractor
	agent     *policy.Agent
	tracker   *events.Tracker
	sink      ActionSink
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time

	cycleMu    sync.Mutex
	prevState  *models.FeatureVector
	prevAction models.Action

	mu      sync.RWMutex
	cycle   int64
	running bool
	status  Status
	history *ring.Ring[models.Metrics]
	hooks   []func(CycleResult)
}

// Option customizes a Loop.
type Option func(*Loop)

func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

func NewLoop(cfg Config, deps Deps, logger *zap.Logger, opts ...Option) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Packets == nil || deps.Stats == nil || deps.Extractor == nil || deps.Agent == nil || deps.Tracker == nil {
		return nil, fmt.Errorf("%w: missing collaborator", ErrInvalidConfig)
	}
	logger = logger.Named("detection-loop")
	sink := deps.Sink
	if sink == nil {
		sink = NewLogSink(logger)
	}
	l := &Loop{
		cfg:       cfg,
		packets:   deps.Packets,
		stats:     deps.Stats,
		extractor: deps.Extractor,
		agent:     deps.Agent,
		tracker:   deps.Tracker,
		sink:      sink,
		metrics:   deps.Metrics,
		logger:    logger,
		now:       time.Now,
		history:   ring.New[models.Metrics](cfg.HistorySize),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.status = l.snapshot(models.NoAction, nil)
	return l, nil
}

// OnCycle registers fn to be called after every successful cycle.
func (l *Loop) OnCycle(fn func(CycleResult)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, fn)
}

// Run executes a cycle immediately and then once per interval until ctx is
// done. Cycles never overlap: a cycle that outlasts the interval delays the
// next one and missed ticks are dropped.
func (l *Loop) Run(ctx context.Context) error {
	l.setRunning(true)
	defer l.setRunning(false)

	l.logger.Info("detection loop started",
		zap.Duration("interval", l.cfg.Interval),
		zap.Int("training_interval", l.cfg.TrainingInterval),
	)

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		start := time.Now()
		_, err := l.safeCycle(ctx)
		elapsed := time.Since(start)

		if ctx.Err() != nil {
			l.logger.Info("detection loop stopped")
			return nil
		}
		if l.metrics != nil {
			l.metrics.CycleDuration.Observe(elapsed.Seconds())
		}
		if elapsed > l.cfg.Interval {
			l.logger.Warn("detection cycle overran interval",
				zap.Duration("elapsed", elapsed),
				zap.Duration("interval", l.cfg.Interval),
			)
			if l.metrics != nil {
				l.metrics.CycleOverruns.Inc()
			}
		}
		if err != nil {
			l.logger.Error("detection cycle failed", zap.Error(err))
			if l.metrics != nil {
				l.metrics.CycleFailures.Inc()
			}
			if !sleep(ctx, l.cfg.RetryBackoff) {
				l.logger.Info("detection loop stopped")
				return nil
			}
		}

		select {
		case <-ctx.Done():
			l.logger.Info("detection loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (l *Loop) safeCycle(ctx context.Context) (res CycleResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detection cycle panic: %v", r)
		}
	}()
	return l.RunCycle(ctx)
}

// RunCycle performs one detect, act and learn step.
func (l *Loop) RunCycle(ctx context.Context) (CycleResult, error) {
	l.cycleMu.Lock()
	defer l.cycleMu.Unlock()

	l.mu.Lock()
	l.cycle++
	cycle := l.cycle
	l.mu.Unlock()

	packets, err := l.packets.GetRecentPackets(ctx, l.cfg.WindowSize, false)
	if err != nil {
		return CycleResult{}, fmt.Errorf("read packet window: %w", err)
	}
	snap, ok, err := l.stats.GetLatestStats(ctx)
	if err != nil {
		return CycleResult{}, fmt.Errorf("read latest stats: %w", err)
	}
	var snapPtr *models.TrafficSnapshot
	if ok {
		snapPtr = &snap
	}

	m := l.extractor.Extract(packets, snapPtr)
	state := l.extractor.Normalize(m)
	action := l.agent.Act(state)

	if err := l.sink.Apply(ctx, action, m); err != nil {
		l.logger.Warn("defense advisory not delivered", zap.String("action", action.String()), zap.Error(err))
	}

	outcome, event, err := l.tracker.Observe(ctx, m, action)
	if err != nil {
		return CycleResult{}, fmt.Errorf("track attack event: %w", err)
	}
	if outcome == events.OutcomeClosed {
		l.prevAction = models.NoAction
	}

	res := CycleResult{Cycle: cycle, Metrics: m, Action: action, Outcome: outcome, Event: event}

	if l.prevState != nil {
		reward := policy.Reward(m, l.prevAction)
		if err := l.agent.Remember(policy.Transition{
			State:     *l.prevState,
			Action:    l.prevAction,
			Reward:    reward,
			NextState: state,
			Done:      !m.IsAttack,
		}); err != nil {
			return CycleResult{}, err
		}
		l.agent.RecordReward(reward)
		res.Reward = &reward
	}
	l.prevState = &state
	l.prevAction = action

	if cycle%int64(l.cfg.TrainingInterval) == 0 {
		if loss, trained := l.agent.Replay(); trained {
			res.Loss = &loss
			if l.metrics != nil {
				l.metrics.TrainingSteps.Inc()
			}
			l.logger.Debug("policy trained", zap.Int64("cycle", cycle), zap.Float64("loss", loss))
		}
	}
	if cycle%int64(l.cfg.TrainingInterval*l.cfg.TargetSyncMultiplier) == 0 {
		l.agent.UpdateTargetModel()
		res.TargetSynced = true
		if l.metrics != nil {
			l.metrics.TargetSyncs.Inc()
		}
	}

	l.record(res)
	return res, nil
}

func (l *Loop) record(res CycleResult) {
	l.mu.Lock()
	l.history.Add(res.Metrics)
	l.status = l.snapshot(res.Action, &res.Metrics)
	hooks := append([]func(CycleResult){}, l.hooks...)
	status := l.status
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.CyclesTotal.Inc()
		l.metrics.ActionsTotal.WithLabelValues(res.Action.String()).Inc()
		if res.Outcome == events.OutcomeOpened || res.Outcome == events.OutcomeClosed {
			l.metrics.AttackEventsTotal.WithLabelValues(res.Outcome.String()).Inc()
		}
		l.metrics.Epsilon.Set(status.Epsilon)
		l.metrics.ReplaySize.Set(float64(status.ReplaySize))
		l.metrics.AttackIntensity.Set(res.Metrics.AttackIntensity)
		under := 0.0
		if status.UnderAttack {
			under = 1
		}
		l.metrics.UnderAttack.Set(under)
		if status.AverageLoss != nil {
			l.metrics.AverageLoss.Set(*status.AverageLoss)
		}
		if status.AverageReward != nil {
			l.metrics.AverageReward.Set(*status.AverageReward)
		}
	}

	for _, fn := range hooks {
		fn(res)
	}
}

// snapshot must be called with mu held.
func (l *Loop) snapshot(action models.Action, m *models.Metrics) Status {
	stats := l.agent.Stats()
	s := Status{
		Cycle:             l.cycle,
		Running:           l.running,
		Epsilon:           stats.Epsilon,
		ReplaySize:        stats.MemorySize,
		TrainSteps:        stats.TrainSteps,
		AverageLoss:       stats.AverageLoss,
		AverageReward:     stats.AverageReward,
		LastTraining:      stats.LastTraining,
		Action:            action,
		ActionName:        action.String(),
		ActionDescription: action.Describe(),
	}
	if ev, ok := l.tracker.Current(); ok {
		s.UnderAttack = true
		id := ev.ID
		s.CurrentEventID = &id
	}
	if m != nil {
		cp := *m
		s.LastMetrics = &cp
		s.AttackIntensity = m.AttackIntensity
		at := l.now()
		s.UpdatedAt = &at
	}
	return s
}

func (l *Loop) setRunning(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = v
	l.status.Running = v
}

// Status returns the state after the most recent cycle.
func (l *Loop) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneStatus(l.status)
}

// History returns up to HistorySize metrics records, oldest first.
func (l *Loop) History() []models.Metrics {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.history.Values()
}

func cloneStatus(s Status) Status {
	if s.AverageLoss != nil {
		v := *s.AverageLoss
		s.AverageLoss = &v
	}
	if s.AverageReward != nil {
		v := *s.AverageReward
		s.AverageReward = &v
	}
	if s.LastTraining != nil {
		v := *s.LastTraining
		s.LastTraining = &v
	}
	if s.CurrentEventID != nil {
		v := *s.CurrentEventID
		s.CurrentEventID = &v
	}
	if s.LastMetrics != nil {
		v := *s.LastMetrics
		s.LastMetrics = &v
	}
	if s.UpdatedAt != nil {
		v := *s.UpdatedAt
		s.UpdatedAt = &v
	}
	return s
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
