package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ActionLogConfig selects and configures the action log backend.
type ActionLogConfig struct {
	Backend string `yaml:"backend"` // "local" or "postgres"
	DSN     string `yaml:"dsn"`     // postgres backend only
}

// ModuleProviderConfig selects and configures the bytecode module source.
type ModuleProviderConfig struct {
	Backend       string        `yaml:"backend"` // "filesystem" or "s3"
	DefaultModule string        `yaml:"default_module"`
	RootDir       string        `yaml:"root_dir"`  // filesystem backend only
	Bucket        string        `yaml:"bucket"`    // s3 backend only
	Prefix        string        `yaml:"prefix"`    // s3 backend only
	CacheTTL      time.Duration `yaml:"cache_ttl"` // wraps either backend in modprovider.Cached when > 0
	// CacheBackend is "memory" (default), or "redis" to also populate a
	// shared L2 cache behind the in-process L1, with a CacheInvalidator
	// evicting L1 keys published on RedisAddr's pub/sub channel. Only consulted when
	// CacheTTL > 0.
	CacheBackend string `yaml:"cache_backend"`
	RedisAddr    string `yaml:"redis_addr"`
	RedisDB      int    `yaml:"redis_db"`
}

// SandboxConfig holds the per-call process runner settings.
type SandboxConfig struct {
	AgentPath  string        `yaml:"agent_path"`
	RunTimeout time.Duration `yaml:"run_timeout"`
}

// TokenSourceConfig selects and configures the credential authority.
type TokenSourceConfig struct {
	CredentialSource      string `yaml:"credential_source"`        // "literal", "jwt", or "instance_metadata"
	Literal               string `yaml:"literal"`                  // literal backend only
	ServiceAccountKeyFile string `yaml:"service_account_key_file"` // jwt backend only
	Audience              string `yaml:"audience"`                 // jwt backend only
}

// DaemonConfig holds daemon-specific settings.
type DaemonConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	LogLevel string `yaml:"log_level"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled          bool      `yaml:"enabled"`
	Namespace        string    `yaml:"namespace"`
	HistogramBuckets []float64 `yaml:"histogram_buckets"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level          string `yaml:"level"`
	Format         string `yaml:"format"`
	IncludeTraceID bool   `yaml:"include_trace_id"`
}

// OutputCaptureConfig holds sandbox output capture settings.
type OutputCaptureConfig struct {
	Enabled    bool   `yaml:"enabled"`
	MaxSize    int64  `yaml:"max_size"`
	StorageDir string `yaml:"storage_dir"`
	RetentionS int    `yaml:"retention_s"`
}

// ObservabilityConfig holds all observability-related settings.
type ObservabilityConfig struct {
	Tracing       TracingConfig       `yaml:"tracing"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Logging       LoggingConfig       `yaml:"logging"`
	OutputCapture OutputCaptureConfig `yaml:"output_capture"`
}

// RPCFrontConfig holds the demonstration gRPC surface's settings.
type RPCFrontConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Config is the central configuration struct embedding all component
// configs.
type Config struct {
	ActionLog      ActionLogConfig      `yaml:"action_log"`
	ModuleProvider ModuleProviderConfig `yaml:"module_provider"`
	Sandbox        SandboxConfig        `yaml:"sandbox"`
	TokenSource    TokenSourceConfig    `yaml:"token_source"`
	Daemon         DaemonConfig         `yaml:"daemon"`
	Observability  ObservabilityConfig  `yaml:"observability"`
	RPCFront       RPCFrontConfig       `yaml:"rpcfront"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ActionLog: ActionLogConfig{
			Backend: "local",
		},
		ModuleProvider: ModuleProviderConfig{
			Backend: "filesystem",
			RootDir: "/var/lib/gameserver/modules",
		},
		Sandbox: SandboxConfig{
			AgentPath:  "/usr/local/bin/gameserver-agent",
			RunTimeout: 5 * time.Second,
		},
		TokenSource: TokenSourceConfig{
			CredentialSource: "literal",
		},
		Daemon: DaemonConfig{
			HTTPAddr: "",
			LogLevel: "info",
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Enabled:     false,
				Exporter:    "otlp-http",
				Endpoint:    "localhost:4318",
				ServiceName: "gameserver",
				SampleRate:  1.0,
			},
			Metrics: MetricsConfig{
				Enabled:          true,
				Namespace:        "gameserver",
				HistogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
			},
			Logging: LoggingConfig{
				Level:          "info",
				Format:         "text",
				IncludeTraceID: true,
			},
			OutputCapture: OutputCaptureConfig{
				Enabled:    false,
				MaxSize:    1 << 20,
				StorageDir: "/tmp/gameserver/output",
				RetentionS: 3600,
			},
		},
		RPCFront: RPCFrontConfig{
			Enabled: false,
			Addr:    ":9090",
		},
	}
}

// LoadFromFile loads configuration from a YAML file, applying its
// fields over DefaultConfig's.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("GAMESERVER_ACTIONLOG_BACKEND"); v != "" {
		cfg.ActionLog.Backend = v
	}
	if v := os.Getenv("GAMESERVER_ACTIONLOG_DSN"); v != "" {
		cfg.ActionLog.DSN = v
	}

	if v := os.Getenv("GAMESERVER_MODULEPROVIDER_BACKEND"); v != "" {
		cfg.ModuleProvider.Backend = v
	}
	if v := os.Getenv("GAMESERVER_MODULEPROVIDER_DEFAULT"); v != "" {
		cfg.ModuleProvider.DefaultModule = v
	}
	if v := os.Getenv("GAMESERVER_MODULEPROVIDER_ROOT_DIR"); v != "" {
		cfg.ModuleProvider.RootDir = v
	}
	if v := os.Getenv("GAMESERVER_MODULEPROVIDER_BUCKET"); v != "" {
		cfg.ModuleProvider.Bucket = v
	}
	if v := os.Getenv("GAMESERVER_MODULEPROVIDER_PREFIX"); v != "" {
		cfg.ModuleProvider.Prefix = v
	}
	if v := os.Getenv("GAMESERVER_MODULEPROVIDER_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ModuleProvider.CacheTTL = d
		}
	}
	if v := os.Getenv("GAMESERVER_MODULEPROVIDER_CACHE_BACKEND"); v != "" {
		cfg.ModuleProvider.CacheBackend = v
	}
	if v := os.Getenv("GAMESERVER_MODULEPROVIDER_REDIS_ADDR"); v != "" {
		cfg.ModuleProvider.RedisAddr = v
	}

	if v := os.Getenv("GAMESERVER_SANDBOX_AGENT_PATH"); v != "" {
		cfg.Sandbox.AgentPath = v
	}
	if v := os.Getenv("GAMESERVER_SANDBOX_RUN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sandbox.RunTimeout = d
		}
	}

	if v := os.Getenv("GAMESERVER_TOKENSOURCE_CREDENTIAL_SOURCE"); v != "" {
		cfg.TokenSource.CredentialSource = v
	}
	if v := os.Getenv("GAMESERVER_TOKENSOURCE_LITERAL"); v != "" {
		cfg.TokenSource.Literal = v
	}
	if v := os.Getenv("GAMESERVER_TOKENSOURCE_SERVICE_ACCOUNT_KEY_FILE"); v != "" {
		cfg.TokenSource.ServiceAccountKeyFile = v
	}
	if v := os.Getenv("GAMESERVER_TOKENSOURCE_AUDIENCE"); v != "" {
		cfg.TokenSource.Audience = v
	}

	if v := os.Getenv("GAMESERVER_HTTP_ADDR"); v != "" {
		cfg.Daemon.HTTPAddr = v
	}
	if v := os.Getenv("GAMESERVER_LOG_LEVEL"); v != "" {
		cfg.Daemon.LogLevel = v
	}

	if v := os.Getenv("GAMESERVER_TRACING_ENABLED"); v != "" {
		cfg.Observability.Tracing.Enabled = parseBool(v)
	}
	if v := os.Getenv("GAMESERVER_TRACING_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Endpoint = v
	}
	if v := os.Getenv("GAMESERVER_TRACING_EXPORTER"); v != "" {
		cfg.Observability.Tracing.Exporter = v
	}
	if v := os.Getenv("GAMESERVER_TRACING_SERVICE_NAME"); v != "" {
		cfg.Observability.Tracing.ServiceName = v
	}
	if v := os.Getenv("GAMESERVER_TRACING_SAMPLE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Observability.Tracing.SampleRate = f
		}
	}
	if v := os.Getenv("GAMESERVER_METRICS_ENABLED"); v != "" {
		cfg.Observability.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("GAMESERVER_METRICS_NAMESPACE"); v != "" {
		cfg.Observability.Metrics.Namespace = v
	}
	if v := os.Getenv("GAMESERVER_LOG_FORMAT"); v != "" {
		cfg.Observability.Logging.Format = v
	}
	if v := os.Getenv("GAMESERVER_LOG_INCLUDE_TRACE_ID"); v != "" {
		cfg.Observability.Logging.IncludeTraceID = parseBool(v)
	}
	if v := os.Getenv("GAMESERVER_OUTPUT_CAPTURE_ENABLED"); v != "" {
		cfg.Observability.OutputCapture.Enabled = parseBool(v)
	}
	if v := os.Getenv("GAMESERVER_OUTPUT_CAPTURE_DIR"); v != "" {
		cfg.Observability.OutputCapture.StorageDir = v
	}
	if v := os.Getenv("GAMESERVER_OUTPUT_CAPTURE_MAX_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Observability.OutputCapture.MaxSize = n
		}
	}
	if v := os.Getenv("GAMESERVER_OUTPUT_CAPTURE_RETENTION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Observability.OutputCapture.RetentionS = n
		}
	}

	if v := os.Getenv("GAMESERVER_RPCFRONT_ENABLED"); v != "" {
		cfg.RPCFront.Enabled = parseBool(v)
	}
	if v := os.Getenv("GAMESERVER_RPCFRONT_ADDR"); v != "" {
		cfg.RPCFront.Addr = v
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes"
}
