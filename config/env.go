package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration read from the environment.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`

	DatabaseURL   string `env:"DATABASE_URL"`
	RedisURL      string `env:"REDIS_URL" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	TickInterval            time.Duration `env:"TICK_INTERVAL" envDefault:"100ms"`
	BroadcastMinInterval    time.Duration `env:"BROADCAST_MIN_INTERVAL" envDefault:"250ms"`
	TaskConcurrency         int           `env:"TASK_CONCURRENCY" envDefault:"64"`
	SettingsFile            string        `env:"SETTINGS_FILE"`
	SettingsRefreshInterval time.Duration `env:"SETTINGS_REFRESH_INTERVAL" envDefault:"5s"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`

	AnchorRPCURL     string `env:"ANCHOR_RPC_URL"`
	AnchorContract   string `env:"ANCHOR_CONTRACT"`
	AnchorChainID    int64  `env:"ANCHOR_CHAIN_ID" envDefault:"5003"`
	ServerPrivateKey string `env:"SERVER_PRIVATE_KEY"`
}

// AnchorEnabled reports whether on-chain round anchoring is configured.
func (c Config) AnchorEnabled() bool {
	return c.AnchorRPCURL != "" && c.AnchorContract != "" && c.ServerPrivateKey != ""
}

// Load reads an optional .env file and parses the environment into a Config.
// The returned bool reports whether a .env file was found.
func Load(dotenvFiles ...string) (Config, bool, error) {
	found := true
	if err := godotenv.Load(dotenvFiles...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, false, fmt.Errorf("load .env: %w", err)
		}
		found = false
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, found, fmt.Errorf("parse env: %w", err)
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.TaskConcurrency <= 0 {
		cfg.TaskConcurrency = DefaultTaskConcurrency
	}
	return cfg, found, nil
}
