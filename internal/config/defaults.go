package config

import "time"

// Default values.
const (
	DefaultPollInterval = 10 * time.Millisecond
	DefaultMetricsPort  = 9091
	DefaultDataDir      = "stepio-data"
)

// ApplyDefaults fills zero fields of cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	if cfg.Catalog.Type == "" {
		cfg.Catalog.Type = "sqlite"
		if cfg.Catalog.Path == "" {
			cfg.Catalog.Path = DefaultDataDir + "/catalog.db"
		}
	}

	if len(cfg.Transports) == 0 {
		cfg.Transports = []TransportConfig{{Type: "file", Dir: DefaultDataDir}}
	}
	for i := range cfg.Transports {
		t := &cfg.Transports[i]
		if t.Type == "file" && t.Sync == nil {
			fsync := true
			t.Sync = &fsync
		}
		if t.Type == "redis" && t.Redis.Address == "" {
			t.Redis.Address = "localhost:6379"
		}
		if t.Type == "s3" && t.S3.Concurrency == 0 {
			t.S3.Concurrency = 8
		}
		if t.Type == "memory" && t.Store == "" {
			t.Store = "default"
		}
	}

	if cfg.Engine.PollInterval == 0 {
		cfg.Engine.PollInterval = DefaultPollInterval
	}
	if cfg.Engine.Writers == 0 {
		cfg.Engine.Writers = 1
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = DefaultMetricsPort
	}
}

// GetDefaultConfig returns a configuration with every default applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
