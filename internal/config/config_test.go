package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Audio.Concurrency != 3 || cfg.Audio.ChunkSize != 1024 {
		t.Fatalf("unexpected audio defaults: %+v", cfg.Audio)
	}
	if cfg.HTTP.MaxAttempts != 5 {
		t.Fatalf("expected 5 attempts, got %d", cfg.HTTP.MaxAttempts)
	}
	if got := cfg.BackoffBase(); got != 3*time.Second {
		t.Fatalf("expected 3s backoff base, got %v", got)
	}
	want := []int{500, 502, 503, 504}
	if len(cfg.HTTP.RetryStatuses) != len(want) {
		t.Fatalf("expected retry statuses %v, got %v", want, cfg.HTTP.RetryStatuses)
	}
	for i, code := range want {
		if cfg.HTTP.RetryStatuses[i] != code {
			t.Fatalf("expected retry statuses %v, got %v", want, cfg.HTTP.RetryStatuses)
		}
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
logging:
  development: false
  level: warn
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
dictionary:
  base_url: https://dict.example.com
  cookie_file: /tmp/cookies.json
store:
  sqlite_path: /tmp/vocab.db
  postgres_dsn: postgres://localhost/vocab
audio:
  dir: /tmp/audio
  concurrency: 6
  chunk_size: 4096
http:
  timeout_seconds: 45
  max_attempts: 2
  backoff_base_seconds: 0.5
  retry_statuses: [503]
  host_rps: 4
progress:
  max_batch_wait_ms: 250
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 || !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected server/auth overrides to apply: %+v %+v", cfg.Server, cfg.Auth)
	}
	if cfg.Logging.Development || cfg.Logging.Level != "warn" {
		t.Fatalf("expected logging overrides: %+v", cfg.Logging)
	}
	if cfg.Dictionary.BaseURL != "https://dict.example.com" {
		t.Fatalf("unexpected dictionary config: %+v", cfg.Dictionary)
	}
	if cfg.Audio.Concurrency != 6 || cfg.Audio.ChunkSize != 4096 || cfg.Audio.Dir != "/tmp/audio" {
		t.Fatalf("unexpected audio config: %+v", cfg.Audio)
	}
	if got := cfg.RequestTimeout(); got != 45*time.Second {
		t.Fatalf("expected 45s timeout, got %v", got)
	}
	if got := cfg.BackoffBase(); got != 500*time.Millisecond {
		t.Fatalf("expected 500ms backoff, got %v", got)
	}
	if len(cfg.HTTP.RetryStatuses) != 1 || cfg.HTTP.RetryStatuses[0] != 503 {
		t.Fatalf("unexpected retry statuses: %v", cfg.HTTP.RetryStatuses)
	}
	if got := cfg.BatchWait(); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms batch wait, got %v", got)
	}
	if err := cfg.RequireDictionary(); err != nil {
		t.Fatalf("RequireDictionary() error = %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected read config error, got %v", err)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Port: 8080},
		Store:  StoreConfig{SQLitePath: "vocab.db"},
		Audio:  AudioConfig{Concurrency: 3, ChunkSize: 1024},
		HTTP:   HTTPConfig{TimeoutSeconds: 10, MaxAttempts: 5, BackoffBaseSeconds: 3},
	}

	tests := []struct {
		name string
		mut  func(*Config)
		want string
	}{
		{name: "invalid port", mut: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "auth missing api key", mut: func(c *Config) { c.Auth.Enabled = true }, want: "auth.api_key"},
		{name: "missing sqlite path", mut: func(c *Config) { c.Store.SQLitePath = " " }, want: "store.sqlite_path"},
		{name: "invalid concurrency", mut: func(c *Config) { c.Audio.Concurrency = 0 }, want: "audio.concurrency"},
		{name: "invalid chunk size", mut: func(c *Config) { c.Audio.ChunkSize = 0 }, want: "audio.chunk_size"},
		{name: "invalid timeout", mut: func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, want: "http.timeout_seconds"},
		{name: "invalid attempts", mut: func(c *Config) { c.HTTP.MaxAttempts = 0 }, want: "http.max_attempts"},
		{name: "negative backoff", mut: func(c *Config) { c.HTTP.BackoffBaseSeconds = -1 }, want: "http.backoff_base_seconds"},
		{name: "bad retry status", mut: func(c *Config) { c.HTTP.RetryStatuses = []int{42} }, want: "http.retry_statuses"},
		{name: "negative rps", mut: func(c *Config) { c.HTTP.HostRPS = -1 }, want: "http.host_rps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mut(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() error = %v, want substring %q", err, tt.want)
			}
		})
	}

	if err := base.Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}
	if err := base.RequireDictionary(); err == nil {
		t.Fatal("expected RequireDictionary to fail without base url")
	}
}
