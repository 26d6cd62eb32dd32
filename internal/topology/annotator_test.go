package topology

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
	"github.com/nshruti113/adaptive-ddos-defense/internal/storage"
)

func node(id string, typ models.NodeType) models.TopologyNode {
	return models.TopologyNode{ID: id, Type: typ}
}

func edge(a, b string) models.TopologyEdge {
	return models.TopologyEdge{Source: a, Target: b}
}

func markedEdges(g models.TopologyGraph) []models.TopologyEdge {
	var out []models.TopologyEdge
	for _, e := range g.Edges {
		if e.IsAttackPath {
			out = append(out, e)
		}
	}
	return out
}

func TestAnnotateCommonRouter(t *testing.T) {
	attacker := node("host1", models.NodeHost)
	attacker.IsAttacker = true
	victim := node("server1", models.NodeServer)
	victim.IsVictim = true

	g := models.TopologyGraph{
		Nodes: []models.TopologyNode{attacker, victim, node("router1", models.NodeRouter), node("host2", models.NodeHost)},
		Edges: []models.TopologyEdge{
			edge("host1", "router1"),
			edge("router1", "server1"),
			edge("host2", "router1"),
			{Source: "host2", Target: "server1", IsAttackPath: true},
		},
	}

	paths := Annotate(&g)
	marked := markedEdges(g)
	require.Len(t, marked, 2)
	assert.True(t, marked[0].Connects("host1", "router1"))
	assert.True(t, marked[1].Connects("router1", "server1"))

	require.Len(t, paths, 1)
	assert.Equal(t, []string{"host1", "router1", "server1"}, paths[0].Path)
	assert.Equal(t, 2, paths[0].Length)
}

func TestAnnotateNoAttackers(t *testing.T) {
	victim := node("server1", models.NodeServer)
	victim.IsVictim = true
	g := models.TopologyGraph{
		Nodes: []models.TopologyNode{victim, node("router1", models.NodeRouter), node("host1", models.NodeHost)},
		Edges: []models.TopologyEdge{
			{Source: "host1", Target: "router1", IsAttackPath: true},
			{Source: "router1", Target: "server1", IsAttackPath: true},
		},
	}

	paths := Annotate(&g)
	assert.Empty(t, paths)
	assert.Empty(t, markedEdges(g))
}

func TestAnnotateThreeHop(t *testing.T) {
	attacker := node("host1", models.NodeHost)
	attacker.IsAttacker = true
	victim := node("server1", models.NodeServer)
	victim.IsVictim = true

	g := models.TopologyGraph{
		Nodes: []models.TopologyNode{
			attacker, victim,
			node("router1", models.NodeRouter),
			node("router2", models.NodeRouter),
			node("router3", models.NodeRouter),
		},
		Edges: []models.TopologyEdge{
			edge("host1", "router1"),
			edge("router1", "router2"),
			edge("router2", "server1"),
			edge("router3", "server1"),
			edge("router1", "router3"),
		},
	}

	paths := Annotate(&g)
	require.Len(t, paths, 1)
	assert.Equal(t, []string{"host1", "router1", "router2", "server1"}, paths[0].Path)
	assert.Equal(t, 3, paths[0].Length)
	assert.Len(t, markedEdges(g), 3)
}

func TestAnnotateLowestRouterWins(t *testing.T) {
	attacker := node("host1", models.NodeHost)
	attacker.IsAttacker = true
	victim := node("server1", models.NodeServer)
	victim.IsVictim = true

	g := models.TopologyGraph{
		Nodes: []models.TopologyNode{attacker, victim, node("router2", models.NodeRouter), node("router1", models.NodeRouter)},
		Edges: []models.TopologyEdge{
			edge("host1", "router2"),
			edge("router2", "server1"),
			edge("host1", "router1"),
			edge("router1", "server1"),
		},
	}

	for range 5 {
		paths := Annotate(&g)
		require.Len(t, paths, 1)
		assert.Equal(t, []string{"host1", "router1", "server1"}, paths[0].Path)
	}
}

func TestAnnotateNoRouterNeighbour(t *testing.T) {
	attacker := node("host1", models.NodeHost)
	attacker.IsAttacker = true
	victim := node("server1", models.NodeServer)
	victim.IsVictim = true

	g := models.TopologyGraph{
		Nodes: []models.TopologyNode{attacker, victim},
		Edges: []models.TopologyEdge{edge("host1", "server1")},
	}
	assert.Empty(t, Annotate(&g))
	assert.Empty(t, markedEdges(g))
}

func TestServicePersistsFlags(t *testing.T) {
	store := storage.NewMemoryStore(0)
	svc := NewService(store, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, svc.Upsert(ctx, models.TopologyNode{ID: "router1", Type: models.NodeRouter}, nil))
	require.NoError(t, svc.Upsert(ctx, models.TopologyNode{ID: "host1", Type: models.NodeHost, IsAttacker: true}, []string{"router1"}))
	require.NoError(t, svc.Upsert(ctx, models.TopologyNode{ID: "server1", Type: models.NodeServer, IsVictim: true}, []string{"router1"}))

	before, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, markedEdges(before))

	g, paths, err := svc.Annotated(ctx)
	require.NoError(t, err)
	assert.Len(t, paths, 1)
	assert.Len(t, markedEdges(g), 2)

	after, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, markedEdges(after), 2)
}
