package models

// NodeType classifies a topology node.
type NodeType string

const (
	NodeHost   NodeType = "host"
	NodeRouter NodeType = "router"
	NodeServer NodeType = "server"
)

// TopologyNode represents a node in the network topology graph.
type TopologyNode struct {
	ID         string   `json:"id"`
	IP         string   `json:"ip,omitempty"`
	Type       NodeType `json:"type"`
	IsAttacker bool     `json:"is_attacker"`
	IsVictim   bool     `json:"is_victim"`
}

// TopologyEdge represents an undirected link between two nodes.
type TopologyEdge struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	IsAttackPath bool   `json:"is_attack_path"`
}

// Connects reports whether the edge joins a and b in either direction.
func (e TopologyEdge) Connects(a, b string) bool {
	return (e.Source == a && e.Target == b) || (e.Source == b && e.Target == a)
}

// Other returns the endpoint opposite id, or "" if id is not on the edge.
func (e TopologyEdge) Other(id string) string {
	switch id {
	case e.Source:
		return e.Target
	case e.Target:
		return e.Source
	}
	return ""
}

// TopologyGraph represents the full network topology.
type TopologyGraph struct {
	Nodes []TopologyNode `json:"nodes"`
	Edges []TopologyEdge `json:"links"`
}

// Clone returns a deep copy of the graph.
func (g TopologyGraph) Clone() TopologyGraph {
	out := TopologyGraph{
		Nodes: make([]TopologyNode, len(g.Nodes)),
		Edges: make([]TopologyEdge, len(g.Edges)),
	}
	copy(out.Nodes, g.Nodes)
	copy(out.Edges, g.Edges)
	return out
}

// AttackPath is an inferred attacker-to-victim route.
type AttackPath struct {
	Attacker string   `json:"attacker"`
	Victim   string   `json:"victim"`
	Path     []string `json:"path"`
	Length   int      `json:"length"`
}
