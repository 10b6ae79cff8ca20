// Package config loads service configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/danielpatrickdp/cardpet/internal/evolution"
)

// #region config
// Config is the cardpet service configuration.
type Config struct {
	DBPath      string `env:"CARDPET_DB"           envDefault:"cardpet.db"`
	GRPCAddr    string `env:"CARDPET_GRPC_ADDR"    envDefault:"localhost:50061"`
	MetricsAddr string `env:"CARDPET_METRICS_ADDR" envDefault:"localhost:9464"` // "off" disables
	LogLevel    string `env:"CARDPET_LOG_LEVEL"    envDefault:"info"`
	// CatalogPath overrides the embedded evolution catalog when set.
	CatalogPath string `env:"CARDPET_CATALOG"`
	// Seed makes growth draws reproducible; 0 uses platform randomness.
	Seed uint64 `env:"CARDPET_SEED" envDefault:"0"`
	// Thresholds overrides the default 3/10/25 ladder.
	Thresholds []int `env:"CARDPET_THRESHOLDS" envSeparator:","`
}

// #endregion config

// #region load
// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Ladder builds the threshold ladder, defaulting to 3/10/25.
func (c Config) Ladder() (evolution.Ladder, error) {
	if len(c.Thresholds) == 0 {
		return evolution.DefaultLadder(), nil
	}
	return evolution.NewLadder(c.Thresholds...)
}

// RandomSource returns a seeded source when Seed is set.
func (c Config) RandomSource() evolution.RandomSource {
	if c.Seed != 0 {
		return evolution.SeededSource(c.Seed)
	}
	return evolution.PlatformSource()
}

// #endregion load
