package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Query   QueryConfig
	Log     LogConfig
	API     APIConfig
}

type ServerConfig struct {
	Port     int
	MCPStdio bool
}

type StorageConfig struct {
	Driver       string // "sqlite" or "postgres"
	DataDir      string
	DSN          string
	AskRetention string // "0" keeps the ask log forever
}

type QueryConfig struct {
	Timeout          string
	BatchConcurrency int
}

type LogConfig struct {
	Level string
}

type APIConfig struct {
	Token string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			Driver:       "sqlite",
			DataDir:      defaultDataDir(),
			AskRetention: "720h",
		},
		Query: QueryConfig{
			Timeout:          "10s",
			BatchConcurrency: 4,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "salesiq-data"
		}
	}
	return filepath.Join(dir, "salesiq")
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/salesiq/config.json, then applies SALESIQ_* environment
// overrides. Secrets (storage.dsn, api.token) come from the environment only.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot be used as-is.
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if !slices.Contains([]string{"sqlite", "postgres"}, c.Storage.Driver) {
		return fmt.Errorf("storage.driver must be sqlite or postgres, got %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("storage.driver is postgres but SALESIQ_STORAGE_DSN is not set")
	}
	if d, err := time.ParseDuration(c.Query.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("query.timeout %q is not a positive duration", c.Query.Timeout)
	}
	if d, err := time.ParseDuration(c.Storage.AskRetention); err != nil || d < 0 {
		return fmt.Errorf("storage.ask_retention %q is not a duration >= 0", c.Storage.AskRetention)
	}
	if c.Query.BatchConcurrency < 1 {
		return fmt.Errorf("query.batch_concurrency must be at least 1, got %d", c.Query.BatchConcurrency)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}

// QueryTimeout returns query.timeout as a duration. Call Validate first.
func (c Config) QueryTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Query.Timeout)
	return d
}

// AskRetention returns storage.ask_retention as a duration; zero disables
// pruning. Call Validate first.
func (c Config) AskRetention() time.Duration {
	d, _ := time.ParseDuration(c.Storage.AskRetention)
	return d
}
