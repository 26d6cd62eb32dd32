// Package topology infers attacker-to-victim routes over the network graph
// and flags the edges they traverse.
package topology

import (
	"sort"

	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
)

// Annotate recomputes IsAttackPath on every edge of g and returns the
// inferred paths. Only two-hop (attacker, router, victim) and three-hop
// (attacker, router, router, victim) routes are recognized. When several
// routers qualify the lowest id wins.
func Annotate(g *models.TopologyGraph) []models.AttackPath {
	for i := range g.Edges {
		g.Edges[i].IsAttackPath = false
	}

	var attackers, victims []string
	routers := make(map[string]bool)
	for _, n := range g.Nodes {
		if n.IsAttacker {
			attackers = append(attackers, n.ID)
		}
		if n.IsVictim {
			victims = append(victims, n.ID)
		}
		if n.Type == models.NodeRouter {
			routers[n.ID] = true
		}
	}
	if len(attackers) == 0 || len(victims) == 0 {
		return []models.AttackPath{}
	}
	sort.Strings(attackers)
	sort.Strings(victims)

	adj := adjacency(g.Edges)
	paths := make([]models.AttackPath, 0)
	for _, a := range attackers {
		ar := adjacentRouters(adj, routers, a)
		for _, v := range victims {
			vr := adjacentRouters(adj, routers, v)
			if hops := route(adj, a, v, ar, vr); hops != nil {
				for i := 0; i+1 < len(hops); i++ {
					mark(g.Edges, hops[i], hops[i+1])
				}
				paths = append(paths, models.AttackPath{
					Attacker: a,
					Victim:   v,
					Path:     hops,
					Length:   len(hops) - 1,
				})
			}
		}
	}
	return paths
}

func route(adj map[string]map[string]bool, attacker, victim string, ar, vr []string) []string {
	if len(ar) == 0 || len(vr) == 0 {
		return nil
	}
	for _, r := range ar {
		if adj[victim][r] {
			return []string{attacker, r, victim}
		}
	}
	// prefer a router pair that is actually linked
	for _, r1 := range ar {
		for _, r2 := range vr {
			if adj[r1][r2] {
				return []string{attacker, r1, r2, victim}
			}
		}
	}
	return []string{attacker, ar[0], vr[0], victim}
}

func adjacency(edges []models.TopologyEdge) map[string]map[string]bool {
	adj := make(map[string]map[string]bool)
	link := func(a, b string) {
		if adj[a] == nil {
			adj[a] = make(map[string]bool)
		}
		adj[a][b] = true
	}
	for _, e := range edges {
		link(e.Source, e.Target)
		link(e.Target, e.Source)
	}
	return adj
}

func adjacentRouters(adj map[string]map[string]bool, routers map[string]bool, id string) []string {
	var out []string
	for peer := range adj[id] {
		if routers[peer] {
			out = append(out, peer)
		}
	}
	sort.Strings(out)
	return out
}

// mark flags every edge joining a and b; missing edges are ignored.
func mark(edges []models.TopologyEdge, a, b string) {
	for i := range edges {
		if edges[i].Connects(a, b) {
			edges[i].IsAttackPath = true
		}
	}
}
