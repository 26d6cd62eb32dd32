package detection

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
)

// ActionSink receives the action chosen each cycle. Sinks only advise; no
// traffic is actually shaped or blocked.
type ActionSink interface {
	Apply(ctx context.Context, action models.Action, m models.Metrics) error
}

// LogSink writes one advisory line per non-trivial action.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Apply(_ context.Context, action models.Action, m models.Metrics) error {
	if action == models.NoAction {
		return nil
	}
	s.logger.Info("defense advisory",
		zap.String("action", action.String()),
		zap.String("advice", action.Describe()),
		zap.Bool("is_attack", m.IsAttack),
		zap.Float64("attack_intensity", m.AttackIntensity),
	)
	return nil
}

// Sinks fans an action out to several sinks.
type Sinks []ActionSink

func (ss Sinks) Apply(ctx context.Context, action models.Action, m models.Metrics) error {
	var errs []error
	for _, s := range ss {
		if err := s.Apply(ctx, action, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
