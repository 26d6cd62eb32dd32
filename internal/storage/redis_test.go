package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nshruti113/adaptive-ddos-defense/internal/events"
	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
)

func newTestRedis(t *testing.T, opts RedisOptions) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	opts.Addr = mr.Addr()
	store, err := NewRedisStore(context.Background(), opts, zap.NewNop())
	require.NoError(t, err)
	store.now = func() time.Time { return base.Add(time.Second) }
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestNewRedisStoreUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisStore(context.Background(), RedisOptions{Addr: addr}, zap.NewNop())
	require.Error(t, err)
}

func TestRedisPackets(t *testing.T) {
	store, _ := newTestRedis(t, RedisOptions{PacketCapacity: 5})
	ctx := context.Background()

	var batch []models.PacketRecord
	for i := range 8 {
		batch = append(batch, packetAt(i, i%2 == 0))
	}
	require.NoError(t, store.StorePackets(ctx, batch))

	got, err := store.GetRecentPackets(ctx, 10, false)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "p-7", got[0].ID)
	assert.Equal(t, "p-3", got[4].ID)

	got, err = store.GetRecentPackets(ctx, 3, true)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"p-6", "p-4", "p-2"}, []string{got[0].ID, got[1].ID, got[2].ID})
	for _, p := range got {
		assert.True(t, p.IsAttack)
	}
}

func TestRedisPacketRetention(t *testing.T) {
	store, _ := newTestRedis(t, RedisOptions{PacketRetention: 500 * time.Millisecond})
	ctx := context.Background()

	old := packetAt(0, false)
	fresh := packetAt(900, false)
	require.NoError(t, store.StorePackets(ctx, []models.PacketRecord{old, fresh}))

	got, err := store.GetRecentPackets(ctx, 10, false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, fresh.ID, got[0].ID)
}

func TestRedisStats(t *testing.T) {
	store, _ := newTestRedis(t, RedisOptions{StatsHistory: 2})
	ctx := context.Background()

	_, ok, err := store.GetLatestStats(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	latency := 42.0
	for i := range 3 {
		require.NoError(t, store.StoreStats(ctx, models.TrafficSnapshot{
			Timestamp:  base,
			PacketRate: float64(100 * i),
			Latency:    &latency,
		}))
	}

	snap, ok, err := store.GetLatestStats(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 200.0, snap.PacketRate)
	require.NotNil(t, snap.Latency)
	assert.Equal(t, 42.0, *snap.Latency)

	hist, err := store.GetStatsHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, 200.0, hist[0].PacketRate)
	assert.Equal(t, 100.0, hist[1].PacketRate)
}

func TestRedisEvents(t *testing.T) {
	store, _ := newTestRedis(t, RedisOptions{})
	ctx := context.Background()

	id1, err := store.CreateAttackEvent(ctx, models.AttackEvent{StartTime: base, AttackType: "DDoS", Severity: 4})
	require.NoError(t, err)
	id2, err := store.CreateAttackEvent(ctx, models.AttackEvent{StartTime: base.Add(time.Minute), AttackType: "DDoS", Severity: 6})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id1)
	assert.Equal(t, int64(2), id2)

	sev := 9
	end := base.Add(20 * time.Second)
	require.NoError(t, store.UpdateAttackEvent(ctx, id1, models.AttackEventUpdate{Severity: &sev, EndTime: &end}))
	assert.ErrorIs(t, store.UpdateAttackEvent(ctx, 42, models.AttackEventUpdate{}), models.ErrNotFound)

	active, err := store.ListActiveAttackEvents(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, id2, active[0].ID)

	recent, err := store.ListRecentAttackEvents(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, id2, recent[0].ID)
	assert.Equal(t, 9, recent[1].Severity)
	require.NotNil(t, recent[1].EndTime)
	assert.True(t, recent[1].EndTime.Equal(end))

	recent, err = store.ListRecentAttackEvents(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
}

func receive(t *testing.T, ch <-chan *redis.Message) *redis.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestRedisPublishesAlertsAndAdvisories(t *testing.T) {
	store, mr := newTestRedis(t, RedisOptions{})
	ctx := context.Background()

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()}).Subscribe(ctx, ChannelAlerts, ChannelActions)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)
	ch := sub.Channel()

	ev := models.AttackEvent{ID: 7, StartTime: base, AttackType: "DDoS", Severity: 8, MitigationAction: "rate_limit"}
	require.NoError(t, store.NotifyAttackEvent(ctx, events.OutcomeOpened, ev))

	msg := receive(t, ch)
	assert.Equal(t, ChannelAlerts, msg.Channel)
	var alert models.Alert
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &alert))
	assert.Equal(t, int64(7), alert.EventID)
	assert.Equal(t, events.LevelCritical, alert.Level)

	require.NoError(t, store.Advisories().Apply(ctx, models.BlockSuspiciousIPs, models.Metrics{IsAttack: true, AttackIntensity: 0.7}))
	msg = receive(t, ch)
	assert.Equal(t, ChannelActions, msg.Channel)
	var adv Advisory
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &adv))
	assert.Equal(t, "block_suspicious_ips", adv.Action)
	assert.Equal(t, 2, adv.ActionID)
	assert.True(t, adv.IsAttack)
}
