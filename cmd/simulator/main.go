package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/nshruti113/adaptive-ddos-defense/internal/config"
	"github.com/nshruti113/adaptive-ddos-defense/internal/logging"
	"github.com/nshruti113/adaptive-ddos-defense/internal/simulation"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	serverURL := flag.String("server", "", "server base URL (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *serverURL != "" {
		cfg.Simulator.ServerURL = *serverURL
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc := cfg.Simulator
	runner := simulation.NewRunner(
		simulation.NewClient(sc.ServerURL),
		simulation.NewGenerator(sc.Seed),
		simulation.Options{
			Interval:      sc.Interval,
			NormalPackets: sc.NormalPackets,
			AttackPackets: sc.AttackPackets,
			Schedule:      simulation.Schedule{Every: sc.AttackEvery, Duration: sc.AttackDuration},
		},
		logger,
	)

	logger.Info("traffic simulator started",
		zap.String("server", sc.ServerURL),
		zap.Duration("interval", sc.Interval),
		zap.Duration("attack_every", sc.AttackEvery),
	)
	if err := runner.Run(ctx); err != nil {
		logger.Fatal("simulator stopped", zap.Error(err))
	}
}
