// Package config loads the process configuration from environment variables
// and the YAML scenario file describing a simulation run.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// MustLoad loads the configuration from environment variables and .env file.
func MustLoad[T any](cfg T) {
	_ = godotenv.Load()

	env.Must(cfg, env.Parse(cfg))
}

// Load loads the configuration from environment variables and .env file.
func Load[T any](cfg T) error {
	_ = godotenv.Load()

	return env.Parse(cfg)
}

// Config holds the process-level configuration of the simulator.
type Config struct {
	ScenarioPath string `env:"SCENARIO_PATH" envDefault:"scenario.yaml"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`

	ClockConfig      `envPrefix:"CLOCK_"`
	LimitsConfig     `envPrefix:"LIMIT_"`
	ReportConfig     `envPrefix:"REPORT_"`
	CheckpointConfig `envPrefix:"CHECKPOINT_"`
}

// ClockConfig selects the replay pacing.
type ClockConfig struct {
	// Mode is logical, wall or accelerated.
	Mode  string  `env:"MODE" envDefault:"logical"`
	Speed float64 `env:"SPEED" envDefault:"1.0"`
}

// LimitsConfig bounds a run. Zero values mean unbounded.
type LimitsConfig struct {
	MaxEvents    int64         `env:"MAX_EVENTS" envDefault:"0"`
	MaxSimTimeMs int64         `env:"MAX_SIM_TIME_MS" envDefault:"0"`
	MaxWallTime  time.Duration `env:"MAX_WALL_TIME" envDefault:"0"`
}

// ReportConfig selects the execution report sink.
type ReportConfig struct {
	// Sink is ndjson or kafka.
	Sink    string   `env:"SINK" envDefault:"ndjson"`
	Path    string   `env:"PATH" envDefault:"reports.ndjson"`
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"KAFKA_TOPIC" envDefault:"execution-reports"`
}

// CheckpointConfig controls checkpoint persistence and cadence.
type CheckpointConfig struct {
	// Store is file, redis or none.
	Store       string        `env:"STORE" envDefault:"file"`
	Path        string        `env:"PATH" envDefault:"checkpoint.json"`
	RedisKey    string        `env:"REDIS_KEY" envDefault:"checkpoint"`
	RedisTTL    time.Duration `env:"REDIS_TTL" envDefault:"0"`
	EveryEvents int64         `env:"EVERY_EVENTS" envDefault:"0"`
	Interval    time.Duration `env:"INTERVAL" envDefault:"0"`
	Resume      bool          `env:"RESUME" envDefault:"false"`
}
