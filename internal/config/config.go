package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tripweave/engine/internal/optimizer"
	"github.com/tripweave/engine/internal/routing"
)

// Config defines planner configuration.
type Config struct {
	Engine    EngineConfig      `yaml:"engine"`
	Routing   RoutingConfig     `yaml:"routing"`
	Optimizer OptimizerConfig   `yaml:"optimizer"`
	Weights   optimizer.Weights `yaml:"weights"`
	Cache     CacheConfig       `yaml:"cache"`
	Log       LogConfig         `yaml:"log"`
}

type EngineConfig struct {
	MaxActivities     int `yaml:"max_activities"`
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"`
	ProposalQueueSize int `yaml:"proposal_queue_size"`
	DeltaLogDepth     int `yaml:"delta_log_depth"`
}

type RoutingConfig struct {
	Mode        string `yaml:"mode"`
	Concurrency int    `yaml:"concurrency"`
}

type OptimizerConfig struct {
	Population       int      `yaml:"population"`
	Generations      int      `yaml:"generations"`
	TournamentSize   int      `yaml:"tournament_size"`
	MutationRate     float64  `yaml:"mutation_rate"`
	StagnationWindow int      `yaml:"stagnation_window"`
	TimeBudget       Duration `yaml:"time_budget"`
}

// Duration decodes Go duration syntax ("5s", "2m30s") from YAML,
// which yaml.v3 does not do for time.Duration on its own.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

type CacheConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Config{
		Engine: EngineConfig{
			MaxActivities:     200,
			MaxConcurrentRuns: 4,
			ProposalQueueSize: 64,
			DeltaLogDepth:     64,
		},
		Routing: RoutingConfig{
			Mode:        string(routing.ModeWalking),
			Concurrency: routing.DefaultMatrixConcurrency,
		},
		Optimizer: optimizerConfigFrom(optimizer.DefaultParams()),
		Weights:   optimizer.DefaultWeights(),
		Cache: CacheConfig{
			Path: "tripweave.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	if path := os.Getenv("TRIPWEAVE_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if mode := os.Getenv("TRIPWEAVE_ROUTING_MODE"); mode != "" {
		cfg.Routing.Mode = mode
	}
	if cachePath := os.Getenv("TRIPWEAVE_CACHE_PATH"); cachePath != "" {
		cfg.Cache.Path = cachePath
	}
	if level := os.Getenv("TRIPWEAVE_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if gens := os.Getenv("TRIPWEAVE_OPTIMIZER_GENERATIONS"); gens != "" {
		n, err := strconv.Atoi(gens)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TRIPWEAVE_OPTIMIZER_GENERATIONS: %w", err)
		}
		cfg.Optimizer.Generations = n
	}
	if budget := os.Getenv("TRIPWEAVE_OPTIMIZER_TIME_BUDGET"); budget != "" {
		d, err := time.ParseDuration(budget)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TRIPWEAVE_OPTIMIZER_TIME_BUDGET: %w", err)
		}
		cfg.Optimizer.TimeBudget = Duration(d)
	}

	if _, ok := parseMode(cfg.Routing.Mode); !ok {
		return Config{}, fmt.Errorf("invalid routing mode %q", cfg.Routing.Mode)
	}
	return cfg, nil
}

// Mode returns the configured travel mode.
func (c Config) Mode() routing.Mode {
	m, _ := parseMode(c.Routing.Mode)
	return m
}

// OptimizerParams converts the configured optimizer section.
func (c Config) OptimizerParams() optimizer.Params {
	return optimizer.Params{
		Population:       c.Optimizer.Population,
		Generations:      c.Optimizer.Generations,
		TournamentSize:   c.Optimizer.TournamentSize,
		MutationRate:     c.Optimizer.MutationRate,
		StagnationWindow: c.Optimizer.StagnationWindow,
		TimeBudget:       time.Duration(c.Optimizer.TimeBudget),
	}
}

func optimizerConfigFrom(p optimizer.Params) OptimizerConfig {
	return OptimizerConfig{
		Population:       p.Population,
		Generations:      p.Generations,
		TournamentSize:   p.TournamentSize,
		MutationRate:     p.MutationRate,
		StagnationWindow: p.StagnationWindow,
		TimeBudget:       Duration(p.TimeBudget),
	}
}

func parseMode(s string) (routing.Mode, bool) {
	switch routing.Mode(s) {
	case routing.ModeWalking, routing.ModeDriving, routing.ModeTransit:
		return routing.Mode(s), true
	}
	return "", false
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
