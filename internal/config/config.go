package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nshruti113/adaptive-ddos-defense/internal/detection"
	"github.com/nshruti113/adaptive-ddos-defense/internal/features"
	"github.com/nshruti113/adaptive-ddos-defense/internal/policy"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Log       LogConfig        `yaml:"log"`
	Storage   StorageConfig    `yaml:"storage"`
	Detection detection.Config `yaml:"detection"`
	Features  FeaturesConfig   `yaml:"features"`
	Policy    policy.Config    `yaml:"policy"`
	Simulator SimulatorConfig  `yaml:"simulator"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigin      string        `yaml:"cors_origin"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type StorageConfig struct {
	Backend         string        `yaml:"backend"` // memory | redis
	PacketCapacity  int           `yaml:"packet_capacity"`
	PacketRetention time.Duration `yaml:"packet_retention"`
	Redis           RedisConfig   `yaml:"redis"`
	Topology        string        `yaml:"topology"` // memory | neo4j
	Neo4j           Neo4jConfig   `yaml:"neo4j"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type FeaturesConfig struct {
	Thresholds features.Thresholds `yaml:"thresholds"`
	Scales     features.Scales     `yaml:"scales"`
}

type SimulatorConfig struct {
	ServerURL      string        `yaml:"server_url"`
	Interval       time.Duration `yaml:"interval"`
	NormalPackets  int           `yaml:"normal_packets"`
	AttackPackets  int           `yaml:"attack_packets"`
	AttackEvery    time.Duration `yaml:"attack_every"`
	AttackDuration time.Duration `yaml:"attack_duration"`
	Seed           uint64        `yaml:"seed"`
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNeo4j  = "neo4j"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8888",
			ShutdownTimeout: 10 * time.Second,
			CORSOrigin:      "*",
		},
		Log: LogConfig{Level: "info"},
		Storage: StorageConfig{
			Backend:         BackendMemory,
			PacketCapacity:  5000,
			PacketRetention: 5 * time.Minute,
			Redis:           RedisConfig{Addr: "localhost:6379"},
			Topology:        BackendMemory,
			Neo4j:           Neo4jConfig{URI: "neo4j://localhost:7687", User: "neo4j"},
		},
		Detection: detection.DefaultConfig(),
		Features: FeaturesConfig{
			Thresholds: features.DefaultThresholds(),
			Scales:     features.DefaultScales(),
		},
		Policy: policy.DefaultConfig(),
		Simulator: SimulatorConfig{
			ServerURL:      "http://localhost:8888",
			Interval:       time.Second,
			NormalPackets:  50,
			AttackPackets:  500,
			AttackEvery:    45 * time.Second,
			AttackDuration: 15 * time.Second,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path yields the
// defaults alone.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8888"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendMemory
	}
	if c.Storage.Topology == "" {
		c.Storage.Topology = BackendMemory
	}
	if c.Storage.PacketCapacity == 0 {
		c.Storage.PacketCapacity = 5000
	}
	if c.Simulator.Interval == 0 {
		c.Simulator.Interval = time.Second
	}
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("%w: storage.backend %q", ErrInvalid, c.Storage.Backend)
	}
	switch c.Storage.Topology {
	case BackendMemory, BackendNeo4j:
	default:
		return fmt.Errorf("%w: storage.topology %q", ErrInvalid, c.Storage.Topology)
	}
	if c.Storage.Backend == BackendRedis && c.Storage.Redis.Addr == "" {
		return fmt.Errorf("%w: storage.redis.addr is required", ErrInvalid)
	}
	if c.Storage.Topology == BackendNeo4j && c.Storage.Neo4j.URI == "" {
		return fmt.Errorf("%w: storage.neo4j.uri is required", ErrInvalid)
	}
	if c.Storage.PacketCapacity < 0 {
		return fmt.Errorf("%w: storage.packet_capacity must not be negative", ErrInvalid)
	}
	if err := c.Detection.Validate(); err != nil {
		return fmt.Errorf("%w: detection: %w", ErrInvalid, err)
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("%w: policy: %w", ErrInvalid, err)
	}
	for name, v := range map[string]float64{
		"packet_rate":      c.Features.Thresholds.PacketRate,
		"connection_count": c.Features.Thresholds.ConnectionCount,
		"syn_ratio":        c.Features.Thresholds.SynRatio,
		"source_entropy":   c.Features.Thresholds.SourceEntropy,
	} {
		if v <= 0 {
			return fmt.Errorf("%w: features.thresholds.%s must be positive", ErrInvalid, name)
		}
	}
	return nil
}
