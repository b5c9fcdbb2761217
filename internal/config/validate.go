package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validate checks the Config for invalid or out-of-range values.
// It returns a combined error if any checks fail.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be between 1 and 65535, got %d", cfg.Server.Port))
	}
	if !isValidEnum(cfg.Server.LogLevel, ValidLogLevels) {
		errs = append(errs, fmt.Sprintf("server.log_level must be one of %v, got %q", ValidLogLevels, cfg.Server.LogLevel))
	}
	if cfg.Server.DataDir == "" {
		errs = append(errs, "server.data_dir must not be empty")
	}
	if cfg.Server.ReadTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.read_timeout must be non-negative, got %d", cfg.Server.ReadTimeout))
	}
	if cfg.Server.WriteTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.write_timeout must be non-negative, got %d", cfg.Server.WriteTimeout))
	}
	if cfg.Server.IdleTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.idle_timeout must be non-negative, got %d", cfg.Server.IdleTimeout))
	}

	if cfg.Auth.Enabled && cfg.Auth.Token == "" {
		errs = append(errs, "auth.token must be set when auth.enabled is true")
	}

	// An empty base_url is allowed: archive-only installs never reach the gateway.
	if cfg.Gateway.BaseURL != "" {
		u, err := url.Parse(cfg.Gateway.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("gateway.base_url must be an http(s) URL, got %q", cfg.Gateway.BaseURL))
		}
	}
	if cfg.Gateway.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("gateway.timeout must be non-negative, got %d", cfg.Gateway.Timeout))
	}

	if cfg.Pipeline.WorkDir == "" {
		errs = append(errs, "pipeline.work_dir must not be empty")
	}
	if cfg.Pipeline.FeedBatchSize < 1 {
		errs = append(errs, fmt.Sprintf("pipeline.feed_batch_size must be at least 1, got %d", cfg.Pipeline.FeedBatchSize))
	}
	if cfg.Pipeline.ChannelBatchSize < 1 {
		errs = append(errs, fmt.Sprintf("pipeline.channel_batch_size must be at least 1, got %d", cfg.Pipeline.ChannelBatchSize))
	}
	if cfg.Pipeline.LateFeeGraceMinutes < 0 {
		errs = append(errs, fmt.Sprintf("pipeline.late_fee_grace_minutes must be non-negative, got %d", cfg.Pipeline.LateFeeGraceMinutes))
	}
	if cfg.Pipeline.LateFeeRate < 0 {
		errs = append(errs, fmt.Sprintf("pipeline.late_fee_rate must be non-negative, got %.2f", cfg.Pipeline.LateFeeRate))
	}

	if cfg.Resilience.RetryMaxAttempts < 0 {
		errs = append(errs, fmt.Sprintf("resilience.retry_max_attempts must be non-negative, got %d", cfg.Resilience.RetryMaxAttempts))
	}
	if cfg.Resilience.RetryBaseDelayMs < 0 {
		errs = append(errs, fmt.Sprintf("resilience.retry_base_delay_ms must be non-negative, got %d", cfg.Resilience.RetryBaseDelayMs))
	}
	if cfg.Resilience.RetryMaxDelayMs < cfg.Resilience.RetryBaseDelayMs {
		errs = append(errs, fmt.Sprintf("resilience.retry_max_delay_ms must be at least retry_base_delay_ms, got %d", cfg.Resilience.RetryMaxDelayMs))
	}

	if cfg.Tracing.Enabled {
		if !isValidEnum(cfg.Tracing.Exporter, ValidExporters) {
			errs = append(errs, fmt.Sprintf("tracing.exporter must be one of %v, got %q", ValidExporters, cfg.Tracing.Exporter))
		}
		if cfg.Tracing.ServiceName == "" {
			errs = append(errs, "tracing.service_name must not be empty when tracing is enabled")
		}
	}
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_rate must be between 0 and 1, got %f", cfg.Tracing.SampleRate))
	}

	if cfg.Metrics.RetentionDays < 1 {
		errs = append(errs, fmt.Sprintf("metrics.retention_days must be at least 1, got %d", cfg.Metrics.RetentionDays))
	}
	if cfg.Metrics.CacheTTLSeconds < 0 {
		errs = append(errs, fmt.Sprintf("metrics.cache_ttl_seconds must be non-negative, got %d", cfg.Metrics.CacheTTLSeconds))
	}
	if cfg.Metrics.CacheSize < 0 {
		errs = append(errs, fmt.Sprintf("metrics.cache_size must be non-negative, got %d", cfg.Metrics.CacheSize))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// isValidEnum returns true if val is in the allowed list (case-insensitive).
func isValidEnum(val string, allowed []string) bool {
	lower := strings.ToLower(val)
	for _, a := range allowed {
		if strings.ToLower(a) == lower {
			return true
		}
	}
	return false
}
