package config

// DefaultBindAddress is the default bind address (localhost only).
const DefaultBindAddress = "127.0.0.1"

// DefaultPort is the default port for the HTTP read surface.
const DefaultPort = 7680

const DefaultLogLevel = "info"

// DefaultDataDir is the default data directory (before tilde expansion).
const DefaultDataDir = "~/.storepulse"

// DefaultConfigFilename is the name of the config file.
const DefaultConfigFilename = "storepulse.toml"

// DefaultDBFilename is the SQLite file inside the data directory.
const DefaultDBFilename = "storepulse.db"

// DefaultWorkDir holds downloaded archives and temp_report_* directories.
const DefaultWorkDir = "~/.storepulse/work"

// DefaultGatewayTimeout is the transfer timeout in seconds.
const DefaultGatewayTimeout = 300

const (
	DefaultFeedBatchSize       = 500
	DefaultChannelBatchSize    = 1000
	DefaultLateFeeGraceMinutes = 5
	DefaultLateFeeRate         = 0.50
)

// DefaultTimerOnCalendar runs the daily import at 06:00 local time.
const DefaultTimerOnCalendar = "*-*-* 06:00:00"

// DefaultRetentionDays is how long ingest run rows are kept.
const DefaultRetentionDays = 90

// DefaultCacheTTL is the export cache TTL in seconds.
const DefaultCacheTTL = 300

// DefaultCacheSize is the maximum number of cached export responses.
const DefaultCacheSize = 256

const (
	DefaultReadTimeout  = 10
	DefaultWriteTimeout = 300
	DefaultIdleTimeout  = 120
)

const (
	DefaultRetryMaxAttempts = 3
	DefaultRetryBaseDelayMs = 500
	DefaultRetryMaxDelayMs  = 30000
)

const (
	DefaultTracingExporter    = "otlp-grpc"
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingServiceName = "storepulse"
	DefaultTracingSampleRate  = 1.0
)

// ValidLogLevels lists the allowed log level values.
var ValidLogLevels = []string{"trace", "debug", "info", "warn", "error", "fatal"}

// ValidExporters lists the supported tracing exporters.
var ValidExporters = []string{"stdout", "otlp-grpc", "otlp-http"}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddress:  DefaultBindAddress,
			Port:         DefaultPort,
			LogLevel:     DefaultLogLevel,
			DataDir:      DefaultDataDir,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
		},
		Gateway: GatewayConfig{
			BaseURL:     "",
			PasswordRef: "keyring://storepulse/gateway-password",
			HMACKeyRef:  "keyring://storepulse/gateway-hmac-key",
			Timeout:     DefaultGatewayTimeout,
		},
		Pipeline: PipelineConfig{
			WorkDir:             DefaultWorkDir,
			FeedBatchSize:       DefaultFeedBatchSize,
			ChannelBatchSize:    DefaultChannelBatchSize,
			LateFeeGraceMinutes: DefaultLateFeeGraceMinutes,
			LateFeeRate:         DefaultLateFeeRate,
			TimerOnCalendar:     DefaultTimerOnCalendar,
		},
		Resilience: ResilienceConfig{
			RetryMaxAttempts: DefaultRetryMaxAttempts,
			RetryBaseDelayMs: DefaultRetryBaseDelayMs,
			RetryMaxDelayMs:  DefaultRetryMaxDelayMs,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    DefaultTracingExporter,
			Endpoint:    DefaultTracingEndpoint,
			ServiceName: DefaultTracingServiceName,
			SampleRate:  DefaultTracingSampleRate,
		},
		Metrics: MetricsConfig{
			RetentionDays:   DefaultRetentionDays,
			CacheTTLSeconds: DefaultCacheTTL,
			CacheSize:       DefaultCacheSize,
		},
	}
}
