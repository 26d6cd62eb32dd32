package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
)

// Alert levels.
const (
	LevelInfo     = "INFO"
	LevelWarning  = "WARNING"
	LevelCritical = "CRITICAL"
)

// NewAlert renders a dashboard alert for an opened or closed event.
func NewAlert(outcome Outcome, ev models.AttackEvent, at time.Time) models.Alert {
	alert := models.Alert{
		ID:         uuid.New().String(),
		AttackType: ev.AttackType,
		EventID:    ev.ID,
		Timestamp:  at,
	}
	switch outcome {
	case OutcomeOpened:
		alert.Level = LevelWarning
		if ev.Severity >= 7 {
			alert.Level = LevelCritical
		}
		alert.Title = fmt.Sprintf("%s attack detected", ev.AttackType)
		alert.Message = fmt.Sprintf("Attack event %d opened with severity %d; mitigation: %s",
			ev.ID, ev.Severity, ev.MitigationAction)
	case OutcomeClosed:
		alert.Level = LevelInfo
		alert.Title = fmt.Sprintf("%s attack ended", ev.AttackType)
		dur := time.Duration(0)
		if ev.EndTime != nil {
			dur = ev.EndTime.Sub(ev.StartTime).Round(time.Second)
		}
		alert.Message = fmt.Sprintf("Attack event %d closed after %s; %d attack packets, peak severity %d",
			ev.ID, dur, ev.PacketCount, ev.Severity)
	default:
		alert.Level = LevelInfo
		alert.Title = fmt.Sprintf("Attack event %d %s", ev.ID, outcome)
	}
	return alert
}

// Notifiers fans one notification out to several notifiers.
type Notifiers []Notifier

func (ns Notifiers) NotifyAttackEvent(ctx context.Context, outcome Outcome, ev models.AttackEvent) error {
	var errs []error
	for _, n := range ns {
		if err := n.NotifyAttackEvent(ctx, outcome, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
