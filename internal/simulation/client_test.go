package simulation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
)

type captured struct {
	mu      sync.Mutex
	paths   []string
	packets int
}

func newCaptureServer(t *testing.T, c *captured) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.paths = append(c.paths, r.URL.Path)
		if r.URL.Path == "/api/traffic/ingest" {
			var batch []models.PacketRecord
			if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			c.packets += len(batch)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestRunnerStep(t *testing.T) {
	c := &captured{}
	ts := newCaptureServer(t, c)
	r := NewRunner(NewClient(ts.URL+"/"), NewGenerator(5), Options{NormalPackets: 4, AttackPackets: 9}, zap.NewNop())

	require.NoError(t, r.Step(context.Background(), false))
	require.NoError(t, r.Step(context.Background(), true))

	assert.Equal(t, []string{"/api/stats", "/api/traffic/ingest", "/api/stats", "/api/traffic/ingest"}, c.paths)
	assert.Equal(t, 13, c.packets)
}

func TestClientReportsServerErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad packet", http.StatusBadRequest)
	}))
	defer ts.Close()

	err := NewClient(ts.URL).SendStats(context.Background(), models.TrafficSnapshot{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad packet")
}

func TestSendNode(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer ts.Close()

	spec := DemoTopology()[3]
	require.NoError(t, NewClient(ts.URL).SendNode(context.Background(), spec))
	assert.Equal(t, "server1", got["id"])
	assert.Equal(t, true, got["is_victim"])
	assert.Equal(t, []any{"router1"}, got["connections"])
}
