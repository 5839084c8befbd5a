// Package config loads and validates vocabsync configuration via Viper.
package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Dictionary DictionaryConfig `mapstructure:"dictionary"`
	Store      StoreConfig      `mapstructure:"store"`
	Audio      AudioConfig      `mapstructure:"audio"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Progress   ProgressConfig   `mapstructure:"progress"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ServerConfig controls the control-plane HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// DictionaryConfig points at the remote dictionary service.
type DictionaryConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	CookieFile string `mapstructure:"cookie_file"`
}

// StoreConfig selects the local vocabulary database and optional run history.
type StoreConfig struct {
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// AudioConfig governs the pronunciation fetch worker.
type AudioConfig struct {
	Dir         string `mapstructure:"dir"`
	Concurrency int    `mapstructure:"concurrency"`
	ChunkSize   int    `mapstructure:"chunk_size"`
}

// HTTPConfig configures the shared fetch client and its retry policy.
type HTTPConfig struct {
	TimeoutSeconds     int     `mapstructure:"timeout_seconds"`
	MaxAttempts        int     `mapstructure:"max_attempts"`
	BackoffBaseSeconds float64 `mapstructure:"backoff_base_seconds"`
	RetryStatuses      []int   `mapstructure:"retry_statuses"`
	HostRPS            float64 `mapstructure:"host_rps"`
	UserAgent          string  `mapstructure:"user_agent"`
}

// ProgressConfig tunes the progress hub batching.
type ProgressConfig struct {
	BufferSize     int `mapstructure:"buffer_size"`
	MaxBatchEvents int `mapstructure:"max_batch_events"`
	MaxBatchWaitMs int `mapstructure:"max_batch_wait_ms"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VOCABSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("dictionary.base_url", "")
	v.SetDefault("dictionary.cookie_file", "")
	v.SetDefault("store.sqlite_path", "data/vocab.db")
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("audio.dir", "data/audio")
	v.SetDefault("audio.concurrency", 3)
	v.SetDefault("audio.chunk_size", 1024)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_attempts", 5)
	v.SetDefault("http.backoff_base_seconds", 3)
	v.SetDefault("http.retry_statuses", []int{
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	})
	v.SetDefault("http.host_rps", 0)
	v.SetDefault("http.user_agent", "vocabsync/0.1")
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 100)
	v.SetDefault("progress.max_batch_wait_ms", 500)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if strings.TrimSpace(c.Store.SQLitePath) == "" {
		return fmt.Errorf("store.sqlite_path is required")
	}
	if c.Audio.Concurrency <= 0 {
		return fmt.Errorf("audio.concurrency must be > 0")
	}
	if c.Audio.ChunkSize <= 0 {
		return fmt.Errorf("audio.chunk_size must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.HTTP.BackoffBaseSeconds < 0 {
		return fmt.Errorf("http.backoff_base_seconds must be >= 0")
	}
	for _, code := range c.HTTP.RetryStatuses {
		if code < 100 || code > 599 {
			return fmt.Errorf("http.retry_statuses contains invalid status %d", code)
		}
	}
	if c.HTTP.HostRPS < 0 {
		return fmt.Errorf("http.host_rps must be >= 0")
	}
	return nil
}

// RequireDictionary reports an error when commands that talk to the remote
// dictionary run without a base URL.
func (c Config) RequireDictionary() error {
	if strings.TrimSpace(c.Dictionary.BaseURL) == "" {
		return fmt.Errorf("dictionary.base_url must be set")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffBase converts the retry backoff base into a duration.
func (c Config) BackoffBase() time.Duration {
	return time.Duration(c.HTTP.BackoffBaseSeconds * float64(time.Second))
}

// BatchWait converts the progress flush interval into a duration.
func (c Config) BatchWait() time.Duration {
	return time.Duration(c.Progress.MaxBatchWaitMs) * time.Millisecond
}
