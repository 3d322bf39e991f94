// Package config loads the stepls configuration and builds the catalog and
// transports it describes.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-stepio/internal/logger"
)

// Config is the stepls configuration.
//
// Sources, highest precedence first:
//  1. CLI flags
//  2. Environment variables (STEPIO_*)
//  3. Configuration file (YAML)
//  4. Defaults
type Config struct {
	// Logging controls log output.
	Logging logger.Config `mapstructure:"logging" yaml:"logging"`

	// Catalog selects the block metadata store.
	Catalog CatalogConfig `mapstructure:"catalog" yaml:"catalog"`

	// Transports lists the data transports in attachment order.
	Transports []TransportConfig `mapstructure:"transports" validate:"required,min=1,dive" yaml:"transports"`

	// Engine holds engine tuning.
	Engine EngineConfig `mapstructure:"engine" yaml:"engine"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// CatalogConfig selects a catalog backend.
type CatalogConfig struct {
	// Type is memory, badger or sqlite.
	Type string `mapstructure:"type" validate:"required,oneof=memory badger sqlite" yaml:"type"`

	// Path is the badger directory or the sqlite database file.
	Path string `mapstructure:"path" validate:"required_unless=Type memory" yaml:"path,omitempty"`
}

// TransportConfig describes one transport.
type TransportConfig struct {
	// Type is file, s3, redis or memory.
	Type string `mapstructure:"type" validate:"required,oneof=file s3 redis memory" yaml:"type"`

	// Dir is the data directory of a file transport.
	Dir string `mapstructure:"dir" validate:"required_if=Type file" yaml:"dir,omitempty"`

	// Sync fsyncs file transports on Flush. Default true.
	Sync *bool `mapstructure:"sync" yaml:"sync,omitempty"`

	S3    S3Config    `mapstructure:"s3" yaml:"s3,omitempty"`
	Redis RedisConfig `mapstructure:"redis" yaml:"redis,omitempty"`

	// Store names the shared in-process store of a memory transport.
	Store string `mapstructure:"store" yaml:"store,omitempty"`
}

// S3Config mirrors transport/s3.Config.
type S3Config struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	Region          string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint,omitempty"`
	KeyPrefix       string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`
	ForcePathStyle  bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
	Concurrency     int    `mapstructure:"concurrency" validate:"omitempty,min=1,max=256" yaml:"concurrency,omitempty"`
}

// RedisConfig mirrors transport/redis.Options.
type RedisConfig struct {
	Address   string        `mapstructure:"address" validate:"omitempty,hostname_port" yaml:"address,omitempty"`
	Password  string        `mapstructure:"password" yaml:"password,omitempty"`
	DB        int           `mapstructure:"db" validate:"omitempty,min=0" yaml:"db,omitempty"`
	KeyPrefix string        `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl,omitempty"`
}

// EngineConfig holds engine tuning.
type EngineConfig struct {
	// PollInterval is how often a waiting reader polls the catalog.
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0" yaml:"poll_interval"`

	// Operators is the default operator chain, e.g. "shuffle,zstd:3".
	Operators string `mapstructure:"operators" yaml:"operators,omitempty"`

	// Writers is the number of writers sharing a dataset.
	Writers int `mapstructure:"writers" validate:"min=1" yaml:"writers"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// Load reads configPath (or the default location when empty), applies
// environment overrides and defaults, and validates the result. A missing
// file yields the defaults plus any environment overrides.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks cfg against its validation tags.
func Validate(cfg *Config) error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(cfg)
}

// SaveConfig writes cfg as YAML, creating the directory if needed.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetDefaultConfigPath returns $XDG_CONFIG_HOME/stepio/config.yaml or the
// ~/.config equivalent.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

func getConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "stepio")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "stepio")
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("STEPIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper knows about.
	for _, key := range []string{
		"logging.level", "logging.format", "logging.output",
		"catalog.type", "catalog.path",
		"engine.poll_interval", "engine.operators", "engine.writers",
		"metrics.enabled", "metrics.port",
	} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}
