// Package events tracks the lifecycle of attack episodes. A tracker is idle
// until the ground truth reports an attack, opens exactly one event, keeps it
// updated while the attack continues and closes it on cessation.
package events

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
)

// DefaultAttackType labels events opened by the tracker.
const DefaultAttackType = "DDoS"

// Outcome is the transition taken by one Observe call.
type Outcome int

const (
	OutcomeIdle Outcome = iota
	OutcomeOpened
	OutcomeUpdated
	OutcomeClosed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOpened:
		return "opened"
	case OutcomeUpdated:
		return "updated"
	case OutcomeClosed:
		return "closed"
	default:
		return "idle"
	}
}

// Notifier is told about opened and closed events.
type Notifier interface {
	NotifyAttackEvent(ctx context.Context, outcome Outcome, event models.AttackEvent) error
}

// Tracker is the attack-event state machine for one detector instance.
type Tracker struct {
	store    models.EventStore
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.RWMutex
	current *models.AttackEvent
}

// Option customizes a Tracker.
type Option func(*Tracker)

func WithNotifier(n Notifier) Option {
	return func(t *Tracker) { t.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(store models.EventStore, logger *zap.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:  store,
		logger: logger.Named("event-tracker"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Severity maps an attack intensity in [0,1] onto the 1..10 scale.
func Severity(intensity float64) int {
	s := int(math.Round(intensity * 10))
	return min(10, max(1, s))
}

// Observe advances the state machine by one detection cycle. The returned
// event is the current (or just closed) event and is zero when idle.
func (t *Tracker) Observe(ctx context.Context, m models.Metrics, action models.Action) (Outcome, models.AttackEvent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case m.IsAttack && t.current == nil:
		return t.open(ctx, m, action)
	case m.IsAttack:
		return t.update(ctx, m, action)
	case t.current != nil:
		return t.close(ctx)
	}
	return OutcomeIdle, models.AttackEvent{}, nil
}

func (t *Tracker) open(ctx context.Context, m models.Metrics, action models.Action) (Outcome, models.AttackEvent, error) {
	ev := models.AttackEvent{
		StartTime:         t.now(),
		AttackType:        DefaultAttackType,
		Severity:          Severity(m.AttackIntensity),
		PacketCount:       int64(m.AttackPackets),
		MitigationApplied: action > models.NoAction,
		MitigationAction:  action.String(),
	}
	id, err := t.store.CreateAttackEvent(ctx, ev)
	if err != nil {
		return OutcomeIdle, models.AttackEvent{}, fmt.Errorf("create attack event: %w", err)
	}
	ev.ID = id
	t.current = &ev

	t.logger.Info("new attack detected",
		zap.Int64("event_id", id),
		zap.Int("severity", ev.Severity),
		zap.String("mitigation", ev.MitigationAction),
	)
	t.notify(ctx, OutcomeOpened, ev)
	return OutcomeOpened, ev, nil
}

func (t *Tracker) update(ctx context.Context, m models.Metrics, action models.Action) (Outcome, models.AttackEvent, error) {
	next := *t.current
	next.Severity = max(next.Severity, Severity(m.AttackIntensity))
	next.PacketCount += int64(m.AttackPackets)

	upd := models.AttackEventUpdate{
		Severity:    &next.Severity,
		PacketCount: &next.PacketCount,
	}
	if action > models.NoAction {
		next.MitigationApplied = true
		next.MitigationAction = action.String()
		upd.MitigationApplied = &next.MitigationApplied
		upd.MitigationAction = &next.MitigationAction
	}

	if err := t.store.UpdateAttackEvent(ctx, next.ID, upd); err != nil {
		return OutcomeUpdated, *t.current, fmt.Errorf("update attack event %d: %w", next.ID, err)
	}
	t.current = &next
	return OutcomeUpdated, next, nil
}

func (t *Tracker) close(ctx context.Context) (Outcome, models.AttackEvent, error) {
	ended := t.now()
	closed := *t.current
	closed.EndTime = &ended

	err := t.store.UpdateAttackEvent(ctx, closed.ID, models.AttackEventUpdate{EndTime: &ended})
	// cleared even when the write fails
	t.current = nil
	if err != nil {
		return OutcomeClosed, closed, fmt.Errorf("close attack event %d: %w", closed.ID, err)
	}

	t.logger.Info("attack ended",
		zap.Int64("event_id", closed.ID),
		zap.Duration("duration", ended.Sub(closed.StartTime)),
		zap.Int64("packets", closed.PacketCount),
	)
	t.notify(ctx, OutcomeClosed, closed)
	return OutcomeClosed, closed, nil
}

func (t *Tracker) notify(ctx context.Context, outcome Outcome, ev models.AttackEvent) {
	if t.notifier == nil {
		return
	}
	if err := t.notifier.NotifyAttackEvent(ctx, outcome, ev); err != nil {
		t.logger.Warn("attack event notification failed", zap.Int64("event_id", ev.ID), zap.Error(err))
	}
}

// Current returns a copy of the active event, if any.
func (t *Tracker) Current() (models.AttackEvent, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.current == nil {
		return models.AttackEvent{}, false
	}
	return *t.current, true
}

// Active reports whether an event is currently open.
func (t *Tracker) Active() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current != nil
}
