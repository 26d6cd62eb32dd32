package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
)

func TestNewAlert(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ev := models.AttackEvent{ID: 4, StartTime: start, AttackType: DefaultAttackType, Severity: 8, MitigationAction: "rate_limit"}

	opened := NewAlert(OutcomeOpened, ev, start)
	assert.Equal(t, LevelCritical, opened.Level)
	assert.Equal(t, int64(4), opened.EventID)
	assert.Contains(t, opened.Message, "rate_limit")
	assert.NotEmpty(t, opened.ID)

	ev.Severity = 3
	assert.Equal(t, LevelWarning, NewAlert(OutcomeOpened, ev, start).Level)

	end := start.Add(90 * time.Second)
	ev.EndTime = &end
	closed := NewAlert(OutcomeClosed, ev, end)
	assert.Equal(t, LevelInfo, closed.Level)
	assert.Contains(t, closed.Message, "1m30s")
}

type failingNotifier struct{ err error }

func (f failingNotifier) NotifyAttackEvent(context.Context, Outcome, models.AttackEvent) error {
	return f.err
}

func TestNotifiersFanOut(t *testing.T) {
	rec := &recordingNotifier{}
	boom := errors.New("boom")
	ns := Notifiers{failingNotifier{err: boom}, rec}

	err := ns.NotifyAttackEvent(context.Background(), OutcomeOpened, models.AttackEvent{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []Outcome{OutcomeOpened}, rec.outcomes)
}
