package topology

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
)

// Service serializes topology writes against annotation so readers always
// see a consistent, freshly annotated graph.
type Service struct {
	store  models.TopologyStore
	logger *zap.Logger
	mu     sync.RWMutex
}

func NewService(store models.TopologyStore, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger.Named("topology")}
}

// Upsert adds or updates a node and its links.
func (s *Service) Upsert(ctx context.Context, node models.TopologyNode, connections []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.UpsertTopology(ctx, node, connections)
}

// Annotated returns the graph with attack-path flags recomputed and
// persists the flags back to the store.
func (s *Service) Annotated(ctx context.Context) (models.TopologyGraph, []models.AttackPath, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.store.GetTopologyGraph(ctx)
	if err != nil {
		return models.TopologyGraph{}, nil, fmt.Errorf("read topology: %w", err)
	}
	paths := Annotate(&g)
	if err := s.store.SetAttackPaths(ctx, g.Edges); err != nil {
		return models.TopologyGraph{}, nil, fmt.Errorf("persist attack paths: %w", err)
	}
	if len(paths) > 0 {
		s.logger.Debug("attack paths inferred", zap.Int("paths", len(paths)))
	}
	return g, paths, nil
}

// Snapshot returns the stored graph without re-annotating it.
func (s *Service) Snapshot(ctx context.Context) (models.TopologyGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.GetTopologyGraph(ctx)
}
