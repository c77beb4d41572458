package blockwriter

import (
	"github.com/rzpsarthak13/blockwriter/internal/config"
)

// Config is the client configuration. See DefaultConfig and LoadConfig.
type Config = config.Config

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// LoadConfig reads path, when not empty, and then applies BLOCKWRITER_*
// environment overrides.
func LoadConfig(path string) (*Config, error) {
	cm := config.NewConfigManager()
	if path != "" {
		if err := cm.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cm.LoadFromEnv(); err != nil {
		return nil, err
	}
	return cm.Config(), nil
}

// writerOptions derives Writer options from the batch section.
func writerOptions(cfg *Config) []WriterOption {
	var opts []WriterOption
	if cfg.Batch.MaxBatchSize != nil {
		opts = append(opts, WithMaxBatchSize(*cfg.Batch.MaxBatchSize))
	}
	if cfg.Batch.MultipleResultSets {
		opts = append(opts, WithMultipleResultSets())
	}
	return opts
}

func drainerConfig(cfg *Config) DrainerConfig {
	return DrainerConfig{
		DrainRate:    cfg.WriteBack.DrainRate,
		DequeueSize:  cfg.WriteBack.DequeueSize,
		PollInterval: cfg.WriteBack.DrainInterval,
		MaxRetries:   cfg.WriteBack.MaxRetries,
	}
}
