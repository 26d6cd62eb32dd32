package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/nshruti113/adaptive-ddos-defense/internal/api"
	"github.com/nshruti113/adaptive-ddos-defense/internal/config"
	"github.com/nshruti113/adaptive-ddos-defense/internal/detection"
	"github.com/nshruti113/adaptive-ddos-defense/internal/events"
	"github.com/nshruti113/adaptive-ddos-defense/internal/features"
	"github.com/nshruti113/adaptive-ddos-defense/internal/logging"
	"github.com/nshruti113/adaptive-ddos-defense/internal/metrics"
	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
	"github.com/nshruti113/adaptive-ddos-defense/internal/policy"
	"github.com/nshruti113/adaptive-ddos-defense/internal/storage"
	"github.com/nshruti113/adaptive-ddos-defense/internal/topology"
)

type stores struct {
	packets  models.PacketStore
	stats    models.StatsStore
	events   models.EventStore
	topology models.TopologyStore
	redis    *storage.RedisStore
	neo4j    *storage.Neo4jTopologyStore
}

func (s *stores) close(ctx context.Context) {
	if s.redis != nil {
		s.redis.Close()
	}
	if s.neo4j != nil {
		s.neo4j.Close(ctx)
	}
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	mem := storage.NewMemoryStore(cfg.Storage.PacketCapacity)
	s := &stores{packets: mem, stats: mem, events: mem, topology: mem}

	if cfg.Storage.Backend == config.BackendRedis {
		rs, err := storage.NewRedisStore(ctx, storage.RedisOptions{
			Addr:            cfg.Storage.Redis.Addr,
			Password:        cfg.Storage.Redis.Password,
			DB:              cfg.Storage.Redis.DB,
			PacketCapacity:  cfg.Storage.PacketCapacity,
			PacketRetention: cfg.Storage.PacketRetention,
		}, logger)
		if err != nil {
			return nil, err
		}
		s.redis = rs
		s.packets, s.stats, s.events = rs, rs, rs
	}

	if cfg.Storage.Topology == config.BackendNeo4j {
		ns, err := storage.NewNeo4jTopologyStore(ctx, cfg.Storage.Neo4j.URI, cfg.Storage.Neo4j.User,
			cfg.Storage.Neo4j.Password, cfg.Storage.Neo4j.Database, logger)
		if err != nil {
			s.close(ctx)
			return nil, err
		}
		s.neo4j = ns
		s.topology = ns
	}
	return s, nil
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close(context.Background())
	logger.Info("stores ready",
		zap.String("backend", cfg.Storage.Backend),
		zap.String("topology", cfg.Storage.Topology),
	)

	agent, err := policy.NewAgent(cfg.Policy, logger)
	if err != nil {
		return err
	}
	logger.Debug(agent.Summary())

	hub := api.NewHub(logger, m)
	defer hub.Close()

	notifiers := events.Notifiers{hub}
	sinks := detection.Sinks{detection.NewLogSink(logger.Named("advisory"))}
	if st.redis != nil {
		notifiers = append(notifiers, st.redis)
		sinks = append(sinks, st.redis.Advisories())
	}
	tracker := events.NewTracker(st.events, logger, events.WithNotifier(notifiers))

	loop, err := detection.NewLoop(cfg.Detection, detection.Deps{
		Packets:   st.packets,
		Stats:     st.stats,
		Extractor: features.NewExtractor(cfg.Features.Thresholds, cfg.Features.Scales),
		Agent:     agent,
		Tracker:   tracker,
		Sink:      sinks,
		Metrics:   m,
	}, logger)
	if err != nil {
		return err
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	server := api.NewServer(api.Deps{
		Packets:  st.packets,
		Stats:    st.stats,
		Events:   st.events,
		Loop:     loop,
		Topology: topology.NewService(st.topology, logger),
		Hub:      hub,
		Metrics:  m,
		Gatherer: reg,
	}, cfg.Server.CORSOrigin, logger)
	loop.OnCycle(server.BroadcastCycle)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.Handler(),
	}

	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			logger.Error("http server failed", zap.Error(err))
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	return <-loopDone
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "ddos-defense: %v\n", err)
		os.Exit(1)
	}
}
