package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Server.DataDir = "/tmp/test"
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := validate(validConfig()); err != nil {
		t.Fatalf("validate valid config: %v", err)
	}
}

func TestValidate_FieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "verbose" }, "server.log_level"},
		{"empty data dir", func(c *Config) { c.Server.DataDir = "" }, "server.data_dir"},
		{"negative read timeout", func(c *Config) { c.Server.ReadTimeout = -1 }, "server.read_timeout"},
		{"auth without token", func(c *Config) { c.Auth.Enabled = true }, "auth.token"},
		{"base url without scheme", func(c *Config) { c.Gateway.BaseURL = "portal.example.com" }, "gateway.base_url"},
		{"negative gateway timeout", func(c *Config) { c.Gateway.Timeout = -5 }, "gateway.timeout"},
		{"empty work dir", func(c *Config) { c.Pipeline.WorkDir = "" }, "pipeline.work_dir"},
		{"zero feed batch", func(c *Config) { c.Pipeline.FeedBatchSize = 0 }, "pipeline.feed_batch_size"},
		{"zero channel batch", func(c *Config) { c.Pipeline.ChannelBatchSize = 0 }, "pipeline.channel_batch_size"},
		{"negative grace", func(c *Config) { c.Pipeline.LateFeeGraceMinutes = -1 }, "pipeline.late_fee_grace_minutes"},
		{"negative fee", func(c *Config) { c.Pipeline.LateFeeRate = -0.5 }, "pipeline.late_fee_rate"},
		{"negative retries", func(c *Config) { c.Resilience.RetryMaxAttempts = -1 }, "resilience.retry_max_attempts"},
		{"max below base delay", func(c *Config) { c.Resilience.RetryMaxDelayMs = 10 }, "resilience.retry_max_delay_ms"},
		{"bad exporter", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "zipkin" }, "tracing.exporter"},
		{"sample rate", func(c *Config) { c.Tracing.SampleRate = 1.5 }, "tracing.sample_rate"},
		{"retention zero", func(c *Config) { c.Metrics.RetentionDays = 0 }, "metrics.retention_days"},
		{"negative cache ttl", func(c *Config) { c.Metrics.CacheTTLSeconds = -1 }, "metrics.cache_ttl_seconds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %s: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_EmptyBaseURLAllowed(t *testing.T) {
	cfg := validConfig()
	cfg.Gateway.BaseURL = ""
	if err := validate(cfg); err != nil {
		t.Errorf("archive-only config should validate: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Server.LogLevel = "nope"
	cfg.Metrics.RetentionDays = 0

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}
	if n := strings.Count(err.Error(), "\n  - "); n != 3 {
		t.Errorf("expected 3 aggregated errors, got %d: %v", n, err)
	}
}

func TestIsValidEnum(t *testing.T) {
	if !isValidEnum("INFO", ValidLogLevels) {
		t.Error("enum match should be case-insensitive")
	}
	if isValidEnum("verbose", ValidLogLevels) {
		t.Error("verbose is not a valid log level")
	}
}
