// Package config loads the demo binaries' configuration from environment
// variables and an optional .env file.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds the settings a tweak-server-demo or tweak-client-demo binary
// needs to stand up a context.
type Config struct {
	BackendName string `env:"TWEAK_BACKEND" envDefault:"nng"`
	Params      string `env:"TWEAK_PARAMS" envDefault:"role=server"`
	URI         string `env:"TWEAK_URI" envDefault:"127.0.0.1:7500"`

	QueueMaxBatch    int `env:"TWEAK_QUEUE_MAX_BATCH" envDefault:"100"`
	MaxChunkPayload  int `env:"TWEAK_MAX_CHUNK_PAYLOAD" envDefault:"244"`
	TransportTimeout int `env:"TWEAK_TRANSPORT_TIMEOUT_MS" envDefault:"500"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// MetricsAddr is the listen address for the Prometheus /metrics
	// endpoint. Empty disables it.
	MetricsAddr string `env:"TWEAK_METRICS_ADDR" envDefault:":2112"`
}

// Load reads configuration from a .env file (if present) and the process
// environment, ENV vars taking priority.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found, using environment variables only")
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}
