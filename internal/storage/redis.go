package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nshruti113/adaptive-ddos-defense/internal/events"
	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
)

const (
	keyPackets       = "traffic:packets"
	keyAttackPackets = "traffic:packets:attack"
	keyStatsLatest   = "traffic:stats:latest"
	keyStatsHistory  = "traffic:stats:history"
	keyEventSeq      = "attacks:next_id"
	keyEvents        = "attacks:events"
	keyEventHistory  = "attacks:history"
	keyEventsActive  = "attacks:active"

	ChannelAlerts  = "alerts"
	ChannelActions = "defense:actions"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int

	// PacketCapacity caps the packet window; PacketRetention drops packets
	// older than now-retention on every write. Zero disables retention.
	PacketCapacity  int
	PacketRetention time.Duration
	StatsHistory    int
}

// RedisStore persists packets, stats and attack events in Redis and
// publishes alerts and defense advisories over pub/sub.
type RedisStore struct {
	client *redis.Client
	opts   RedisOptions
	logger *zap.Logger
	now    func() time.Time
}

func NewRedisStore(ctx context.Context, opts RedisOptions, logger *zap.Logger) (*RedisStore, error) {
	if opts.PacketCapacity <= 0 {
		opts.PacketCapacity = DefaultPacketCapacity
	}
	if opts.StatsHistory <= 0 {
		opts.StatsHistory = DefaultStatsHistory
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client: client,
		opts:   opts,
		logger: logger.Named("redis-store"),
		now:    time.Now,
	}, nil
}

func packetScore(t time.Time) float64 {
	return float64(t.UnixMicro())
}

// StorePackets adds packets to the time-ordered window and trims it to
// capacity and retention.
func (r *RedisStore) StorePackets(ctx context.Context, packets []models.PacketRecord) error {
	if len(packets) == 0 {
		return nil
	}
	all := make([]redis.Z, 0, len(packets))
	attacks := make([]redis.Z, 0)
	for _, p := range packets {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode packet %s: %w", p.ID, err)
		}
		z := redis.Z{Score: packetScore(p.Timestamp), Member: string(data)}
		all = append(all, z)
		if p.IsAttack {
			attacks = append(attacks, z)
		}
	}

	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, keyPackets, all...)
	if len(attacks) > 0 {
		pipe.ZAdd(ctx, keyAttackPackets, attacks...)
	}
	for _, key := range []string{keyPackets, keyAttackPackets} {
		pipe.ZRemRangeByRank(ctx, key, 0, int64(-r.opts.PacketCapacity-1))
		if r.opts.PacketRetention > 0 {
			cutoff := packetScore(r.now().Add(-r.opts.PacketRetention))
			pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatFloat(cutoff, 'f', 0, 64))
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store packets: %w", err)
	}
	return nil
}

func (r *RedisStore) GetRecentPackets(ctx context.Context, limit int, attackOnly bool) ([]models.PacketRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	key := keyPackets
	if attackOnly {
		key = keyAttackPackets
	}
	results, err := r.client.ZRevRange(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("get recent packets: %w", err)
	}

	packets := make([]models.PacketRecord, 0, len(results))
	for _, result := range results {
		var p models.PacketRecord
		if err := json.Unmarshal([]byte(result), &p); err != nil {
			r.logger.Warn("skipping undecodable packet", zap.Error(err))
			continue
		}
		packets = append(packets, p)
	}
	return packets, nil
}

func (r *RedisStore) StoreStats(ctx context.Context, snap models.TrafficSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, keyStatsLatest, data, 0)
	pipe.LPush(ctx, keyStatsHistory, data)
	pipe.LTrim(ctx, keyStatsHistory, 0, int64(r.opts.StatsHistory-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store stats: %w", err)
	}
	return nil
}

func (r *RedisStore) GetLatestStats(ctx context.Context) (models.TrafficSnapshot, bool, error) {
	var snap models.TrafficSnapshot
	data, err := r.client.Get(ctx, keyStatsLatest).Bytes()
	if errors.Is(err, redis.Nil) {
		return snap, false, nil
	}
	if err != nil {
		return snap, false, fmt.Errorf("get latest stats: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, false, fmt.Errorf("decode latest stats: %w", err)
	}
	return snap, true, nil
}

func (r *RedisStore) GetStatsHistory(ctx context.Context, limit int) ([]models.TrafficSnapshot, error) {
	if limit <= 0 {
		return nil, nil
	}
	results, err := r.client.LRange(ctx, keyStatsHistory, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("get stats history: %w", err)
	}
	out := make([]models.TrafficSnapshot, 0, len(results))
	for _, result := range results {
		var snap models.TrafficSnapshot
		if err := json.Unmarshal([]byte(result), &snap); err != nil {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

func (r *RedisStore) CreateAttackEvent(ctx context.Context, event models.AttackEvent) (int64, error) {
	id, err := r.client.Incr(ctx, keyEventSeq).Result()
	if err != nil {
		return 0, fmt.Errorf("allocate attack event id: %w", err)
	}
	event.ID = id
	if err := r.writeEvent(ctx, event); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *RedisStore) writeEvent(ctx context.Context, event models.AttackEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode attack event %d: %w", event.ID, err)
	}
	member := strconv.FormatInt(event.ID, 10)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, keyEvents, member, string(data))
	pipe.ZAdd(ctx, keyEventHistory, redis.Z{Score: packetScore(event.StartTime), Member: member})
	if event.Active() {
		pipe.SAdd(ctx, keyEventsActive, member)
	} else {
		pipe.SRem(ctx, keyEventsActive, member)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store attack event %d: %w", event.ID, err)
	}
	return nil
}

func (r *RedisStore) UpdateAttackEvent(ctx context.Context, id int64, update models.AttackEventUpdate) error {
	data, err := r.client.HGet(ctx, keyEvents, strconv.FormatInt(id, 10)).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("attack event %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load attack event %d: %w", id, err)
	}
	var event models.AttackEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("decode attack event %d: %w", id, err)
	}
	update.Apply(&event)
	return r.writeEvent(ctx, event)
}

func (r *RedisStore) ListActiveAttackEvents(ctx context.Context) ([]models.AttackEvent, error) {
	ids, err := r.client.SMembers(ctx, keyEventsActive).Result()
	if err != nil {
		return nil, fmt.Errorf("list active attack events: %w", err)
	}
	list, err := r.loadEvents(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortEventsByStartDesc(list)
	return list, nil
}

func (r *RedisStore) ListRecentAttackEvents(ctx context.Context, limit int) ([]models.AttackEvent, error) {
	if limit <= 0 {
		return []models.AttackEvent{}, nil
	}
	ids, err := r.client.ZRevRange(ctx, keyEventHistory, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list attack history: %w", err)
	}
	list, err := r.loadEvents(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortEventsByStartDesc(list)
	return list, nil
}

func (r *RedisStore) loadEvents(ctx context.Context, ids []string) ([]models.AttackEvent, error) {
	out := make([]models.AttackEvent, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	values, err := r.client.HMGet(ctx, keyEvents, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load attack events: %w", err)
	}
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var event models.AttackEvent
		if err := json.Unmarshal([]byte(s), &event); err != nil {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

// PublishAlert publishes an alert to subscribers.
func (r *RedisStore) PublishAlert(ctx context.Context, alert models.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, ChannelAlerts, string(data)).Err()
}

// NotifyAttackEvent publishes opened and closed events as alerts.
func (r *RedisStore) NotifyAttackEvent(ctx context.Context, outcome events.Outcome, ev models.AttackEvent) error {
	return r.PublishAlert(ctx, events.NewAlert(outcome, ev, r.now()))
}

// Advisory is the message published on ChannelActions for every cycle's
// chosen action. Nothing is enforced; consumers decide what to do with it.
type Advisory struct {
	Action      string    `json:"action"`
	ActionID    int       `json:"action_id"`
	Description string    `json:"description"`
	IsAttack    bool      `json:"is_attack"`
	Intensity   float64   `json:"attack_intensity"`
	Timestamp   time.Time `json:"timestamp"`
}

// AdvisoryPublisher publishes chosen defense actions over Redis pub/sub.
type AdvisoryPublisher struct {
	store *RedisStore
}

func (r *RedisStore) Advisories() *AdvisoryPublisher {
	return &AdvisoryPublisher{store: r}
}

func (p *AdvisoryPublisher) Apply(ctx context.Context, action models.Action, m models.Metrics) error {
	data, err := json.Marshal(Advisory{
		Action:      action.String(),
		ActionID:    int(action),
		Description: action.Describe(),
		IsAttack:    m.IsAttack,
		Intensity:   m.AttackIntensity,
		Timestamp:   p.store.now(),
	})
	if err != nil {
		return err
	}
	return p.store.client.Publish(ctx, ChannelActions, string(data)).Err()
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
