package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"factgraph/internal/logging"
)

// Config holds all factgraph configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Store configuration
	Store StoreConfig `yaml:"store"`

	// Observer manager configuration
	Observe ObserveConfig `yaml:"observe"`

	// Ingest watcher configuration
	Ingest IngestConfig `yaml:"ingest"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Resource limits (see Limits for which of them are consumed)
	Limits Limits `yaml:"limits"`
}

// StoreConfig configures the in-memory fact store.
type StoreConfig struct {
	// FactLogPath is where the append-only newline-delimited JSON fact
	// log is written; empty disables persistence of the fact log (the
	// store still holds everything in memory for the process lifetime).
	FactLogPath string `yaml:"fact_log_path"`

	// SchemaPath names a YAML file declaring fact types, their
	// predecessor roles, and field kinds. It is loaded from config and
	// FACTGRAPH_SCHEMA_PATH only; no code reads the file it names.
	SchemaPath string `yaml:"schema_path"`
}

// ObserveConfig configures the observer manager.
type ObserveConfig struct {
	// NotificationBufferSize is validated to be at least 1 but is not
	// passed to observers; each Observer's event channel has a fixed
	// capacity of 64.
	NotificationBufferSize int `yaml:"notification_buffer_size"`
}

// IngestConfig configures the fsnotify-based fact-log watcher.
type IngestConfig struct {
	Enabled      bool   `yaml:"enabled"`
	WatchPath    string `yaml:"watch_path"`
	DebounceTime string `yaml:"debounce_time"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "factgraph",
		Version: "0.1.0",

		Store: StoreConfig{
			FactLogPath: "data/facts.log",
			SchemaPath:  "",
		},

		Observe: ObserveConfig{
			NotificationBufferSize: 256,
		},

		Ingest: IngestConfig{
			Enabled:      false,
			WatchPath:    "data/facts.log",
			DebounceTime: "200ms",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "factgraph.log",
		},

		Limits: Limits{
			MaxFactsInStore:        1000000,
			MaxConcurrentObservers: 64,
			QueryConcurrency:       8,
			FactLogMaxBytes:        64 * 1024 * 1024,
			PurgeBatchSize:         5000,
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	logging.BootDebug("loading config from: %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Boot("config file not found, using defaults: %s", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		logging.BootError("failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		logging.BootError("failed to parse config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	logging.Boot("config loaded: store=%s limits.max_facts=%d", cfg.Store.FactLogPath, cfg.Limits.MaxFactsInStore)

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("FACTGRAPH_LOG_PATH"); path != "" {
		c.Store.FactLogPath = path
	}
	if path := os.Getenv("FACTGRAPH_SCHEMA_PATH"); path != "" {
		c.Store.SchemaPath = path
	}
	if watch := os.Getenv("FACTGRAPH_WATCH_PATH"); watch != "" {
		c.Ingest.WatchPath = watch
		c.Ingest.Enabled = true
	}
}

// GetDebounceTime returns the ingest debounce interval as a duration.
func (c *Config) GetDebounceTime() time.Duration {
	d, err := time.ParseDuration(c.Ingest.DebounceTime)
	if err != nil {
		return 200 * time.Millisecond
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.ValidateLimits(); err != nil {
		return err
	}
	if c.Observe.NotificationBufferSize < 1 {
		return fmt.Errorf("observe.notification_buffer_size must be >= 1")
	}
	return nil
}
