package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
	"github.com/nshruti113/adaptive-ddos-defense/internal/ring"
)

const (
	DefaultPacketCapacity = 5000
	DefaultStatsHistory   = 60
)

// MemoryStore keeps packets, stats, attack events and the topology graph in
// process memory. It implements every store contract in models and is safe
// for concurrent use; reads return copies.
type MemoryStore struct {
	packetMu sync.RWMutex
	packets  *ring.Ring[models.PacketRecord]

	statsMu sync.RWMutex
	stats   *ring.Ring[models.TrafficSnapshot]

	eventMu sync.RWMutex
	events  []models.AttackEvent
	index   map[int64]int
	nextID  int64

	topoMu sync.RWMutex
	nodes  []models.TopologyNode
	nodeIx map[string]int
	edges  []models.TopologyEdge
}

func NewMemoryStore(packetCapacity int) *MemoryStore {
	if packetCapacity <= 0 {
		packetCapacity = DefaultPacketCapacity
	}
	return &MemoryStore{
		packets: ring.New[models.PacketRecord](packetCapacity),
		stats:   ring.New[models.TrafficSnapshot](DefaultStatsHistory),
		index:   make(map[int64]int),
		nextID:  1,
		nodeIx:  make(map[string]int),
	}
}

func (s *MemoryStore) StorePackets(_ context.Context, packets []models.PacketRecord) error {
	s.packetMu.Lock()
	defer s.packetMu.Unlock()
	for _, p := range packets {
		s.packets.Add(p)
	}
	return nil
}

// GetRecentPackets returns up to limit packets ordered by timestamp, newest
// first; packets with equal timestamps keep newest-inserted first.
func (s *MemoryStore) GetRecentPackets(_ context.Context, limit int, attackOnly bool) ([]models.PacketRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.packetMu.RLock()
	out := make([]models.PacketRecord, 0, min(limit, s.packets.Len()))
	for i := s.packets.Len() - 1; i >= 0; i-- {
		p := s.packets.At(i)
		if attackOnly && !p.IsAttack {
			continue
		}
		out = append(out, p)
	}
	s.packetMu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) StoreStats(_ context.Context, snap models.TrafficSnapshot) error {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.stats.Add(snap)
	return nil
}

func (s *MemoryStore) GetLatestStats(_ context.Context) (models.TrafficSnapshot, bool, error) {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	snap, ok := s.stats.Last()
	return snap, ok, nil
}

// GetStatsHistory returns up to limit snapshots, newest first.
func (s *MemoryStore) GetStatsHistory(_ context.Context, limit int) ([]models.TrafficSnapshot, error) {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	out := make([]models.TrafficSnapshot, 0, min(max(limit, 0), s.stats.Len()))
	for i := s.stats.Len() - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.stats.At(i))
	}
	return out, nil
}

func (s *MemoryStore) CreateAttackEvent(_ context.Context, event models.AttackEvent) (int64, error) {
	s.eventMu.Lock()
	defer s.eventMu.Unlock()
	event.ID = s.nextID
	s.nextID++
	s.index[event.ID] = len(s.events)
	s.events = append(s.events, event)
	return event.ID, nil
}

func (s *MemoryStore) UpdateAttackEvent(_ context.Context, id int64, update models.AttackEventUpdate) error {
	s.eventMu.Lock()
	defer s.eventMu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("attack event %d: %w", id, models.ErrNotFound)
	}
	update.Apply(&s.events[i])
	return nil
}

func (s *MemoryStore) ListActiveAttackEvents(_ context.Context) ([]models.AttackEvent, error) {
	s.eventMu.RLock()
	defer s.eventMu.RUnlock()
	out := make([]models.AttackEvent, 0)
	for _, e := range s.events {
		if e.Active() {
			out = append(out, cloneEvent(e))
		}
	}
	return out, nil
}

func (s *MemoryStore) ListRecentAttackEvents(_ context.Context, limit int) ([]models.AttackEvent, error) {
	s.eventMu.RLock()
	out := make([]models.AttackEvent, len(s.events))
	for i, e := range s.events {
		out[i] = cloneEvent(e)
	}
	s.eventMu.RUnlock()

	sortEventsByStartDesc(out)
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) GetTopologyGraph(_ context.Context) (models.TopologyGraph, error) {
	s.topoMu.RLock()
	defer s.topoMu.RUnlock()
	return models.TopologyGraph{Nodes: s.nodes, Edges: s.edges}.Clone(), nil
}

// UpsertTopology adds or replaces node and links it to each connection.
// Links are undirected and never duplicated.
func (s *MemoryStore) UpsertTopology(_ context.Context, node models.TopologyNode, connections []string) error {
	if node.ID == "" {
		return fmt.Errorf("upsert topology: empty node id")
	}
	s.topoMu.Lock()
	defer s.topoMu.Unlock()

	if i, ok := s.nodeIx[node.ID]; ok {
		s.nodes[i] = node
	} else {
		s.nodeIx[node.ID] = len(s.nodes)
		s.nodes = append(s.nodes, node)
	}

	for _, peer := range connections {
		if peer == "" || peer == node.ID {
			continue
		}
		exists := false
		for _, e := range s.edges {
			if e.Connects(node.ID, peer) {
				exists = true
				break
			}
		}
		if !exists {
			s.edges = append(s.edges, models.TopologyEdge{Source: node.ID, Target: peer})
		}
	}
	return nil
}

func (s *MemoryStore) SetAttackPaths(_ context.Context, edges []models.TopologyEdge) error {
	s.topoMu.Lock()
	defer s.topoMu.Unlock()
	for i := range s.edges {
		s.edges[i].IsAttackPath = false
		for _, marked := range edges {
			if marked.IsAttackPath && s.edges[i].Connects(marked.Source, marked.Target) {
				s.edges[i].IsAttackPath = true
				break
			}
		}
	}
	return nil
}

func cloneEvent(e models.AttackEvent) models.AttackEvent {
	if e.EndTime != nil {
		t := *e.EndTime
		e.EndTime = &t
	}
	return e
}

func sortEventsByStartDesc(events []models.AttackEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].ID > events[j].ID
		}
		return events[i].StartTime.After(events[j].StartTime)
	})
}
