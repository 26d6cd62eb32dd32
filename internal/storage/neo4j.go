package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
)

const (
	cypherUpsertNode = `
	MERGE (n:NetworkNode {id: $id})
	SET n.ip = $ip,
		n.type = $type,
		n.is_attacker = $is_attacker,
		n.is_victim = $is_victim`

	cypherLinkNode = `
	MATCH (a:NetworkNode {id: $id})
	UNWIND $peers AS peer
	MERGE (b:NetworkNode {id: peer})
	ON CREATE SET b.type = 'host', b.is_attacker = false, b.is_victim = false
	WITH a, b
	WHERE NOT (a)-[:LINK]-(b)
	CREATE (a)-[:LINK {is_attack_path: false}]->(b)`

	cypherNodes = `
	MATCH (n:NetworkNode)
	RETURN n.id AS id, n.ip AS ip, n.type AS type,
		n.is_attacker AS is_attacker, n.is_victim AS is_victim`

	cypherEdges = `
	MATCH (a:NetworkNode)-[r:LINK]->(b:NetworkNode)
	RETURN a.id AS source, b.id AS target, r.is_attack_path AS is_attack_path`

	cypherClearPaths = `
	MATCH (:NetworkNode)-[r:LINK]->(:NetworkNode)
	SET r.is_attack_path = false`

	cypherMarkPaths = `
	UNWIND $edges AS e
	MATCH (a:NetworkNode {id: e.source})-[r:LINK]-(b:NetworkNode {id: e.target})
	SET r.is_attack_path = true`
)

// Neo4jTopologyStore keeps the topology graph in Neo4j. Nodes are
// NetworkNode vertices and links are LINK relationships carrying the
// is_attack_path flag.
type Neo4jTopologyStore struct {
	driver neo4j.DriverWithContext
	dbName string
	logger *zap.Logger
}

func NewNeo4jTopologyStore(ctx context.Context, uri, username, password, database string, logger *zap.Logger) (*Neo4jTopologyStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify Neo4j connectivity: %w", err)
	}
	return &Neo4jTopologyStore{
		driver: driver,
		dbName: database,
		logger: logger.Named("neo4j-topology"),
	}, nil
}

func (s *Neo4jTopologyStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.dbName})
}

func (s *Neo4jTopologyStore) UpsertTopology(ctx context.Context, node models.TopologyNode, connections []string) error {
	if node.ID == "" {
		return fmt.Errorf("upsert topology: empty node id")
	}
	peers := make([]any, 0, len(connections))
	for _, c := range connections {
		if c != "" && c != node.ID {
			peers = append(peers, c)
		}
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := run(ctx, tx, cypherUpsertNode, nodeParams(node)); err != nil {
			return nil, err
		}
		if len(peers) == 0 {
			return nil, nil
		}
		return nil, run(ctx, tx, cypherLinkNode, map[string]any{"id": node.ID, "peers": peers})
	})
	if err != nil {
		return fmt.Errorf("upsert topology node %s: %w", node.ID, err)
	}
	return nil
}

func (s *Neo4jTopologyStore) GetTopologyGraph(ctx context.Context) (models.TopologyGraph, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		graph := models.TopologyGraph{Nodes: []models.TopologyNode{}, Edges: []models.TopologyEdge{}}

		result, err := tx.Run(ctx, cypherNodes, nil)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			graph.Nodes = append(graph.Nodes, nodeFromValues(recordValues(rec)))
		}

		result, err = tx.Run(ctx, cypherEdges, nil)
		if err != nil {
			return nil, err
		}
		records, err = result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			graph.Edges = append(graph.Edges, edgeFromValues(recordValues(rec)))
		}
		return graph, nil
	})
	if err != nil {
		return models.TopologyGraph{}, fmt.Errorf("read topology graph: %w", err)
	}

	graph := out.(models.TopologyGraph)
	// Neo4j gives no stable order
	sort.Slice(graph.Nodes, func(i, j int) bool { return graph.Nodes[i].ID < graph.Nodes[j].ID })
	sort.Slice(graph.Edges, func(i, j int) bool {
		if graph.Edges[i].Source != graph.Edges[j].Source {
			return graph.Edges[i].Source < graph.Edges[j].Source
		}
		return graph.Edges[i].Target < graph.Edges[j].Target
	})
	return graph, nil
}

func (s *Neo4jTopologyStore) SetAttackPaths(ctx context.Context, edges []models.TopologyEdge) error {
	marked := make([]any, 0, len(edges))
	for _, e := range edges {
		if e.IsAttackPath {
			marked = append(marked, map[string]any{"source": e.Source, "target": e.Target})
		}
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := run(ctx, tx, cypherClearPaths, nil); err != nil {
			return nil, err
		}
		if len(marked) == 0 {
			return nil, nil
		}
		return nil, run(ctx, tx, cypherMarkPaths, map[string]any{"edges": marked})
	})
	if err != nil {
		return fmt.Errorf("set attack paths: %w", err)
	}
	s.logger.Debug("attack paths written", zap.Int("marked", len(marked)))
	return nil
}

func (s *Neo4jTopologyStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func run(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) error {
	result, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = result.Consume(ctx)
	return err
}

func nodeParams(n models.TopologyNode) map[string]any {
	return map[string]any{
		"id":          n.ID,
		"ip":          n.IP,
		"type":        string(n.Type),
		"is_attacker": n.IsAttacker,
		"is_victim":   n.IsVictim,
	}
}

func recordValues(rec *neo4j.Record) map[string]any {
	values := make(map[string]any, len(rec.Keys))
	for i, k := range rec.Keys {
		values[k] = rec.Values[i]
	}
	return values
}

func nodeFromValues(v map[string]any) models.TopologyNode {
	return models.TopologyNode{
		ID:         stringValue(v["id"]),
		IP:         stringValue(v["ip"]),
		Type:       models.NodeType(stringValue(v["type"])),
		IsAttacker: boolValue(v["is_attacker"]),
		IsVictim:   boolValue(v["is_victim"]),
	}
}

func edgeFromValues(v map[string]any) models.TopologyEdge {
	return models.TopologyEdge{
		Source:       stringValue(v["source"]),
		Target:       stringValue(v["target"]),
		IsAttackPath: boolValue(v["is_attack_path"]),
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func boolValue(v any) bool {
	b, _ := v.(bool)
	return b
}
