package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// configPtr holds the current config for thread-safe access.
var configPtr atomic.Pointer[Config]

// loadedConfigFile stores the path of the config file used by the last successful Load.
var loadedConfigFile atomic.Value

// Get returns the current Config. It is safe for concurrent use.
// If no config has been loaded yet, it returns the default config.
func Get() *Config {
	if c := configPtr.Load(); c != nil {
		return c
	}
	d := DefaultConfig()
	configPtr.Store(d)
	return d
}

func set(cfg *Config) {
	configPtr.Store(cfg)
}

// Config is the top-level configuration for storepulse.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     toml:"server"`
	Auth       AuthConfig       `mapstructure:"auth"       toml:"auth"`
	Gateway    GatewayConfig    `mapstructure:"gateway"    toml:"gateway"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"   toml:"pipeline"`
	Resilience ResilienceConfig `mapstructure:"resilience" toml:"resilience"`
	Tracing    TracingConfig    `mapstructure:"tracing"    toml:"tracing"`
	Metrics    MetricsConfig    `mapstructure:"metrics"    toml:"metrics"`
}

// ServerConfig holds the HTTP read surface and process settings.
type ServerConfig struct {
	BindAddress  string `mapstructure:"bind_address"  toml:"bind_address"`
	Port         int    `mapstructure:"port"          toml:"port"`
	LogLevel     string `mapstructure:"log_level"     toml:"log_level"`
	DataDir      string `mapstructure:"data_dir"      toml:"data_dir"`
	ReadTimeout  int    `mapstructure:"read_timeout"  toml:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout" toml:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"  toml:"idle_timeout"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.BindAddress, s.Port)
}

// DBPath is the SQLite database location inside the data directory.
func (s ServerConfig) DBPath() string {
	return filepath.Join(s.DataDir, DefaultDBFilename)
}

// AuthConfig holds the API bearer-token settings.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
	Token   string `mapstructure:"token"   toml:"token"`
}

// GatewayConfig locates the report portal. Secrets are references resolved
// through the vault, never the secrets themselves.
type GatewayConfig struct {
	BaseURL     string `mapstructure:"base_url"      toml:"base_url"`
	Username    string `mapstructure:"username"      toml:"username"`
	AppID       string `mapstructure:"app_id"        toml:"app_id"`
	StoreID     string `mapstructure:"store_id"      toml:"store_id"`
	PasswordRef string `mapstructure:"password_ref"  toml:"password_ref"`
	HMACKeyRef  string `mapstructure:"hmac_key_ref"  toml:"hmac_key_ref"`
	Timeout     int    `mapstructure:"timeout"       toml:"timeout"` // seconds
}

// TimeoutDuration returns the transfer timeout as a time.Duration.
func (g GatewayConfig) TimeoutDuration() time.Duration {
	if g.Timeout <= 0 {
		return DefaultGatewayTimeout * time.Second
	}
	return time.Duration(g.Timeout) * time.Second
}

// PipelineConfig controls one import run.
type PipelineConfig struct {
	WorkDir             string  `mapstructure:"work_dir"              toml:"work_dir"`
	FeedBatchSize       int     `mapstructure:"feed_batch_size"       toml:"feed_batch_size"`
	ChannelBatchSize    int     `mapstructure:"channel_batch_size"    toml:"channel_batch_size"`
	LateFeeGraceMinutes int     `mapstructure:"late_fee_grace_minutes" toml:"late_fee_grace_minutes"`
	LateFeeRate         float64 `mapstructure:"late_fee_rate"         toml:"late_fee_rate"`
	TimerOnCalendar     string  `mapstructure:"timer_on_calendar"     toml:"timer_on_calendar"`
}

// LateFeeGrace returns the lateness grace window as a time.Duration.
func (p PipelineConfig) LateFeeGrace() time.Duration {
	return time.Duration(p.LateFeeGraceMinutes) * time.Minute
}

// TracingConfig controls OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"      toml:"enabled"`
	Exporter    string  `mapstructure:"exporter"     toml:"exporter"` // "stdout", "otlp-grpc", "otlp-http"
	Endpoint    string  `mapstructure:"endpoint"     toml:"endpoint"`
	ServiceName string  `mapstructure:"service_name" toml:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"  toml:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"     toml:"insecure"`
}

// MetricsConfig controls run-log retention and the export cache.
type MetricsConfig struct {
	RetentionDays   int `mapstructure:"retention_days"    toml:"retention_days"`
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds" toml:"cache_ttl_seconds"`
	CacheSize       int `mapstructure:"cache_size"        toml:"cache_size"`
}

// ResilienceConfig controls gateway retry behaviour.
type ResilienceConfig struct {
	RetryMaxAttempts int `mapstructure:"retry_max_attempts"  toml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" toml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms"  toml:"retry_max_delay_ms"`
}

// Load reads configuration from disk with the following precedence:
//  1. Environment variables (STOREPULSE_ prefix, _ as separator)
//  2. The file at explicitPath if non-empty
//  3. ~/.storepulse/storepulse.toml
//  4. ./storepulse.toml
//  5. Built-in defaults
//
// The loaded config is validated and stored in the global atomic pointer.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	setViperDefaults(v)

	v.SetEnvPrefix("STOREPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".storepulse"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("storepulse")
	}

	if err := v.ReadInConfig(); err != nil {
		// No config file: defaults plus env.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if cf := v.ConfigFileUsed(); cf != "" {
		loadedConfigFile.Store(cf)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.Server.DataDir = expandHome(cfg.Server.DataDir)
	cfg.Pipeline.WorkDir = expandHome(cfg.Pipeline.WorkDir)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	set(cfg)
	return cfg, nil
}

// InitConfig writes the default configuration file to ~/.storepulse/storepulse.toml.
// If the file already exists it is not overwritten.
func InitConfig() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("determining home directory: %w", err)
	}

	dir := filepath.Join(homeDir, ".storepulse")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dir, DefaultConfigFilename)
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists: %s\n", path)
		return nil
	}

	data, err := toml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshalling default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Config written to %s\n", path)
	return nil
}

// ExportConfig writes the current config to the given path in TOML format.
func ExportConfig(path string) error {
	data, err := toml.Marshal(Get())
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ImportConfig reads a TOML config file, validates it and makes it current.
// It is also persisted to the active config file so changes survive restarts.
func ImportConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return err
	}
	set(cfg)

	if dest := ConfigFilePath(); dest != "" {
		out, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshalling config for persistence: %w", err)
		}
		if err := os.WriteFile(dest, out, 0o600); err != nil {
			return fmt.Errorf("persisting imported config: %w", err)
		}
	}
	return nil
}

// ConfigFilePath returns the path of the config file that was loaded, or
// empty if no file was found.
func ConfigFilePath() string {
	if v, ok := loadedConfigFile.Load().(string); ok {
		return v
	}
	return ""
}

// setViperDefaults registers every known key with viper so that env var binding
// works for all fields even when no config file is present.
func setViperDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("server.bind_address", d.Server.BindAddress)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.log_level", d.Server.LogLevel)
	v.SetDefault("server.data_dir", d.Server.DataDir)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)

	v.SetDefault("auth.enabled", d.Auth.Enabled)
	v.SetDefault("auth.token", d.Auth.Token)

	v.SetDefault("gateway.base_url", d.Gateway.BaseURL)
	v.SetDefault("gateway.username", d.Gateway.Username)
	v.SetDefault("gateway.app_id", d.Gateway.AppID)
	v.SetDefault("gateway.store_id", d.Gateway.StoreID)
	v.SetDefault("gateway.password_ref", d.Gateway.PasswordRef)
	v.SetDefault("gateway.hmac_key_ref", d.Gateway.HMACKeyRef)
	v.SetDefault("gateway.timeout", d.Gateway.Timeout)

	v.SetDefault("pipeline.work_dir", d.Pipeline.WorkDir)
	v.SetDefault("pipeline.feed_batch_size", d.Pipeline.FeedBatchSize)
	v.SetDefault("pipeline.channel_batch_size", d.Pipeline.ChannelBatchSize)
	v.SetDefault("pipeline.late_fee_grace_minutes", d.Pipeline.LateFeeGraceMinutes)
	v.SetDefault("pipeline.late_fee_rate", d.Pipeline.LateFeeRate)
	v.SetDefault("pipeline.timer_on_calendar", d.Pipeline.TimerOnCalendar)

	v.SetDefault("resilience.retry_max_attempts", d.Resilience.RetryMaxAttempts)
	v.SetDefault("resilience.retry_base_delay_ms", d.Resilience.RetryBaseDelayMs)
	v.SetDefault("resilience.retry_max_delay_ms", d.Resilience.RetryMaxDelayMs)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.insecure", d.Tracing.Insecure)

	v.SetDefault("metrics.retention_days", d.Metrics.RetentionDays)
	v.SetDefault("metrics.cache_ttl_seconds", d.Metrics.CacheTTLSeconds)
	v.SetDefault("metrics.cache_size", d.Metrics.CacheSize)
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
