package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nshruti113/adaptive-ddos-defense/internal/detection"
	"github.com/nshruti113/adaptive-ddos-defense/internal/events"
	"github.com/nshruti113/adaptive-ddos-defense/internal/features"
	"github.com/nshruti113/adaptive-ddos-defense/internal/metrics"
	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
	"github.com/nshruti113/adaptive-ddos-defense/internal/policy"
	"github.com/nshruti113/adaptive-ddos-defense/internal/storage"
	"github.com/nshruti113/adaptive-ddos-defense/internal/topology"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	server *Server
	store  *storage.MemoryStore
	loop   *detection.Loop
	hub    *Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := storage.NewMemoryStore(0)

	agent, err := policy.NewAgent(policy.DefaultConfig(), logger, policy.WithRand(rand.New(rand.NewPCG(3, 4))))
	require.NoError(t, err)
	hub := NewHub(logger, m)
	tracker := events.NewTracker(store, logger, events.WithNotifier(hub))
	loop, err := detection.NewLoop(detection.DefaultConfig(), detection.Deps{
		Packets:   store,
		Stats:     store,
		Extractor: features.NewExtractor(features.DefaultThresholds(), features.DefaultScales()),
		Agent:     agent,
		Tracker:   tracker,
		Metrics:   m,
	}, logger)
	require.NoError(t, err)

	srv := NewServer(Deps{
		Packets:  store,
		Stats:    store,
		Events:   store,
		Loop:     loop,
		Topology: topology.NewService(store, logger),
		Hub:      hub,
		Metrics:  m,
		Gatherer: reg,
	}, "", logger)
	t.Cleanup(hub.Close)
	return &testEnv{server: srv, store: store, loop: loop, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestIngestSingleAndBatch(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/traffic/ingest", models.PacketRecord{
		SourceIP: "192.168.1.5", DestIP: "10.0.0.1", Protocol: models.ProtocolTCP, Length: 400,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/traffic/ingest", []models.PacketRecord{
		{SourceIP: "77.1.1.1", DestIP: "10.0.0.1", Protocol: models.ProtocolUDP, IsAttack: true},
		{SourceIP: "77.1.1.2", DestIP: "10.0.0.1", Protocol: models.ProtocolUDP, IsAttack: true},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, decode[map[string]any](t, rec)["stored"])

	packets, err := env.store.GetRecentPackets(context.Background(), 10, false)
	require.NoError(t, err)
	require.Len(t, packets, 3)
	for _, p := range packets {
		assert.NotEmpty(t, p.ID)
		assert.False(t, p.Timestamp.IsZero())
	}

	rec = env.do(t, http.MethodGet, "/api/packets?limit=5&attack_only=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Packets []models.PacketRecord `json:"packets"`
	}](t, rec)
	assert.Len(t, body.Packets, 2)
}

func TestIngestRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/traffic/ingest", "{not json").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/traffic/ingest", models.PacketRecord{DestIP: "10.0.0.1"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/topology/nodes", map[string]any{"type": "router"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/topology/nodes", map[string]any{"id": "x", "type": "switch"}).Code)
}

func TestStatusAndMetricsAfterCycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[detection.Status](t, rec)
	assert.Equal(t, int64(0), status.Cycle)
	assert.Equal(t, 1.0, status.Epsilon)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/stats", models.TrafficSnapshot{
		PacketRate: 3000, Bandwidth: 600, ConnectionCount: 900, IsUnderAttack: true,
	}).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/traffic/ingest", []models.PacketRecord{
		{SourceIP: "77.1.1.1", DestIP: "10.0.0.1", Protocol: models.ProtocolTCP, Flag: models.FlagSYN, IsAttack: true, Length: 60},
	}).Code)
	_, err := env.loop.RunCycle(ctx)
	require.NoError(t, err)

	status = decode[detection.Status](t, env.do(t, http.MethodGet, "/api/status", nil))
	assert.Equal(t, int64(1), status.Cycle)
	assert.True(t, status.UnderAttack)
	require.NotNil(t, status.CurrentEventID)

	current := decode[models.Metrics](t, env.do(t, http.MethodGet, "/api/metrics/current", nil))
	assert.True(t, current.IsAttack)
	assert.Equal(t, 1, current.AttackPackets)

	hist := decode[struct {
		Metrics []models.Metrics `json:"metrics"`
	}](t, env.do(t, http.MethodGet, "/api/metrics/history", nil))
	assert.Len(t, hist.Metrics, 1)

	active := decode[struct {
		Attacks []models.AttackEvent `json:"attacks"`
	}](t, env.do(t, http.MethodGet, "/api/attacks/active", nil))
	require.Len(t, active.Attacks, 1)
	assert.Equal(t, *status.CurrentEventID, active.Attacks[0].ID)

	summary := decode[map[string]any](t, env.do(t, http.MethodGet, "/api/stats/summary", nil))
	assert.Equal(t, "UNDER_ATTACK", summary["status"])
	assert.Equal(t, 1.0, summary["active_attacks"])

	stats := decode[struct {
		Stats []models.TrafficSnapshot `json:"stats"`
	}](t, env.do(t, http.MethodGet, "/api/stats/history", nil))
	assert.Len(t, stats.Stats, 1)
}

func TestTopologyEndpoints(t *testing.T) {
	env := newTestEnv(t)

	nodes := []map[string]any{
		{"id": "router1", "type": "router"},
		{"id": "host1", "type": "host", "ip": "192.168.1.10", "is_attacker": true, "connections": []string{"router1"}},
		{"id": "server1", "type": "server", "ip": "10.0.0.1", "is_victim": true, "connections": []string{"router1"}},
		{"id": "host2", "connections": []string{"router1"}},
	}
	for _, n := range nodes {
		require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/topology/nodes", n).Code)
	}

	graph := decode[models.TopologyGraph](t, env.do(t, http.MethodGet, "/api/topology", nil))
	assert.Len(t, graph.Nodes, 4)
	require.Len(t, graph.Edges, 3)
	marked := 0
	for _, e := range graph.Edges {
		if e.IsAttackPath {
			marked++
		}
	}
	assert.Equal(t, 2, marked)

	paths := decode[struct {
		Paths []models.AttackPath `json:"paths"`
	}](t, env.do(t, http.MethodGet, "/api/topology/paths", nil))
	require.Len(t, paths.Paths, 1)
	assert.Equal(t, []string{"host1", "router1", "server1"}, paths.Paths[0].Path)
}

func TestEmptyCollections(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/packets", "/api/attacks/active", "/api/attacks/history", "/api/stats/history"} {
		rec := env.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotContains(t, rec.Body.String(), "null", path)
	}
	summary := decode[map[string]any](t, env.do(t, http.MethodGet, "/api/stats/summary", nil))
	assert.Equal(t, "NORMAL", summary["status"])
}

func TestCORSAndMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodOptions, "/api/status", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	_, err := env.loop.RunCycle(context.Background())
	require.NoError(t, err)
	rec = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ddos_defense_detection_cycles_total 1")
}

func TestWebsocketBroadcast(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return env.hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	res, err := env.loop.RunCycle(context.Background())
	require.NoError(t, err)
	env.server.BroadcastCycle(res)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "metrics", msg.Type)
	assert.Equal(t, 1.0, msg.Payload["cycle"])

	require.NoError(t, env.hub.NotifyAttackEvent(context.Background(), events.OutcomeOpened, models.AttackEvent{ID: 3, Severity: 9}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "alert", msg.Type)
	assert.Equal(t, events.LevelCritical, msg.Payload["level"])
}

func TestSummarize(t *testing.T) {
	packets := []models.PacketRecord{
		{SourceIP: "a", Protocol: models.ProtocolTCP, Length: 100, IsAttack: true},
		{SourceIP: "a", Protocol: models.ProtocolTCP, Length: 100, IsAttack: true},
		{SourceIP: "b", Protocol: models.ProtocolUDP, Length: 50},
		{SourceIP: "c", Protocol: models.ProtocolUDP, Length: 50},
	}
	sum := Summarize(packets)
	assert.Equal(t, 4, sum.TotalPackets)
	assert.Equal(t, 50.0, sum.AttackPercent)
	assert.Equal(t, 3, sum.UniqueSources)
	assert.Equal(t, uint64(300), sum.TotalBytes)
	assert.Equal(t, 2, sum.Protocols[models.ProtocolUDP])
	require.Len(t, sum.TopSources, 3)
	assert.Equal(t, "a", sum.TopSources[0].IP)
	assert.Equal(t, "b", sum.TopSources[1].IP)

	empty := Summarize(nil)
	assert.Equal(t, 0, empty.TotalPackets)
	assert.NotNil(t, empty.TopSources)
}
