package models

import "context"

// PacketStore holds observed packets.
type PacketStore interface {
	StorePackets(ctx context.Context, packets []PacketRecord) error
	// GetRecentPackets returns up to limit packets, newest first.
	GetRecentPackets(ctx context.Context, limit int, attackOnly bool) ([]PacketRecord, error)
}

// StatsStore holds aggregate traffic snapshots.
type StatsStore interface {
	StoreStats(ctx context.Context, snap TrafficSnapshot) error
	// GetLatestStats reports ok=false when no snapshot has been stored.
	GetLatestStats(ctx context.Context) (snap TrafficSnapshot, ok bool, err error)
	// GetStatsHistory returns up to limit snapshots, newest first.
	GetStatsHistory(ctx context.Context, limit int) ([]TrafficSnapshot, error)
}

// EventStore persists attack events.
type EventStore interface {
	// CreateAttackEvent assigns and returns a new monotonic id.
	CreateAttackEvent(ctx context.Context, event AttackEvent) (int64, error)
	UpdateAttackEvent(ctx context.Context, id int64, update AttackEventUpdate) error
	ListActiveAttackEvents(ctx context.Context) ([]AttackEvent, error)
	// ListRecentAttackEvents returns up to limit events ordered by start time, newest first.
	ListRecentAttackEvents(ctx context.Context, limit int) ([]AttackEvent, error)
}

// TopologyStore holds the topology graph.
type TopologyStore interface {
	// GetTopologyGraph returns a copy the caller may mutate freely.
	GetTopologyGraph(ctx context.Context) (TopologyGraph, error)
	UpsertTopology(ctx context.Context, node TopologyNode, connections []string) error
	// SetAttackPaths overwrites the attack-path flag of every stored edge
	// with the values in edges; edges not listed are cleared.
	SetAttackPaths(ctx context.Context, edges []TopologyEdge) error
}
