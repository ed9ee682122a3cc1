package config

import (
	"strings"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/dkaiser/batchline/internal/domain"
)

// Config holds the full engine configuration. Instances are built once by
// Load and treated as immutable afterwards.
type Config struct {
	Engine   EngineConfig   `mapstructure:"engine"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Log      LogConfig      `mapstructure:"log"`
	Registry RegistryConfig `mapstructure:"registry"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Mirror   MirrorConfig   `mapstructure:"mirror"`
	Server   ServerConfig   `mapstructure:"server"`
}

// EngineConfig holds input-handling settings.
type EngineConfig struct {
	MaxInputSizeMB     int    `mapstructure:"max_input_size_mb"`
	ChunkSize          int    `mapstructure:"chunk_size"`
	Encoding           string `mapstructure:"encoding"`
	FallbackDelimiter  string `mapstructure:"fallback_delimiter"`
	AllowPathTraversal bool   `mapstructure:"allow_path_traversal"`
	ValidateHeaders    bool   `mapstructure:"validate_headers"`
	SkipEmptyRows      bool   `mapstructure:"skip_empty_rows"`
	RunsDir            string `mapstructure:"runs_dir"`
}

// RetryConfig holds the default retry policy applied when a caller supplies
// none.
type RetryConfig struct {
	MaxRetries     int     `mapstructure:"max_retries"`
	InitialDelayMs int     `mapstructure:"initial_delay_ms"`
	BackoffFactor  float64 `mapstructure:"backoff_factor"`
	MaxDelayMs     int     `mapstructure:"max_delay_ms"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// RegistryConfig holds the optional batch-registry database settings. An
// empty DSN disables the registry.
type RegistryConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ExecutorConfig selects and configures the job executor variant.
type ExecutorConfig struct {
	Kind      string `mapstructure:"kind"`
	Endpoint  string `mapstructure:"endpoint"`
	Command   string `mapstructure:"command"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

// MirrorConfig holds artifact object-storage mirroring settings.
type MirrorConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
}

// ServerConfig holds the API server settings.
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

var knownEncodings = map[string]bool{
	"utf-8":        true,
	"utf-8-sig":    true,
	"latin-1":      true,
	"windows-1252": true,
	"utf-16le":     true,
	"utf-16be":     true,
}

// Load builds the configuration with precedence overrides > environment >
// defaults, then validates every value. configPath optionally names a config
// file; overrides are caller-supplied key/value pairs using dotted keys
// ("engine.chunk_size").
func Load(configPath string, overrides map[string]any) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.SetEnvPrefix("BATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("engine.max_input_size_mb", 100)
	v.SetDefault("engine.chunk_size", 500)
	v.SetDefault("engine.encoding", "utf-8")
	v.SetDefault("engine.fallback_delimiter", ",")
	v.SetDefault("engine.allow_path_traversal", false)
	v.SetDefault("engine.validate_headers", true)
	v.SetDefault("engine.skip_empty_rows", true)
	v.SetDefault("engine.runs_dir", "./data/runs")
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.initial_delay_ms", 1000)
	v.SetDefault("retry.backoff_factor", 2.0)
	v.SetDefault("retry.max_delay_ms", 30000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("registry.dsn", "")
	v.SetDefault("executor.kind", "noop")
	v.SetDefault("executor.endpoint", "")
	v.SetDefault("executor.command", "")
	v.SetDefault("executor.timeout_ms", 60000)
	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.use_ssl", false)
	v.SetDefault("mirror.region", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &domain.ConfigurationError{Key: "config_file", Value: configPath}
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("registry.dsn", "BATCH_REGISTRY_DSN")
	v.BindEnv("executor.endpoint", "BATCH_EXECUTOR_ENDPOINT")
	v.BindEnv("mirror.access_key", "BATCH_MIRROR_ACCESS_KEY")
	v.BindEnv("mirror.secret_key", "BATCH_MIRROR_SECRET_KEY")

	// Caller overrides take precedence over everything
	for key, value := range overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &domain.ConfigurationError{Key: "config", Value: err.Error()}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	e := c.Engine
	if e.MaxInputSizeMB < 1 || e.MaxInputSizeMB > 10240 {
		return &domain.ConfigurationError{Key: "engine.max_input_size_mb", Value: e.MaxInputSizeMB}
	}
	if e.ChunkSize < 1 || e.ChunkSize > 100000 {
		return &domain.ConfigurationError{Key: "engine.chunk_size", Value: e.ChunkSize}
	}
	if !knownEncodings[strings.ToLower(e.Encoding)] {
		return &domain.ConfigurationError{Key: "engine.encoding", Value: e.Encoding}
	}
	if utf8.RuneCountInString(e.FallbackDelimiter) != 1 || strings.ContainsAny(e.FallbackDelimiter, "\r\n\"") {
		return &domain.ConfigurationError{Key: "engine.fallback_delimiter", Value: e.FallbackDelimiter}
	}
	if e.RunsDir == "" {
		return &domain.ConfigurationError{Key: "engine.runs_dir", Value: e.RunsDir}
	}

	r := c.Retry
	if r.MaxRetries < 0 {
		return &domain.ConfigurationError{Key: "retry.max_retries", Value: r.MaxRetries}
	}
	if r.InitialDelayMs <= 0 {
		return &domain.ConfigurationError{Key: "retry.initial_delay_ms", Value: r.InitialDelayMs}
	}
	if r.BackoffFactor <= 1.0 {
		return &domain.ConfigurationError{Key: "retry.backoff_factor", Value: r.BackoffFactor}
	}
	if r.MaxDelayMs <= 0 {
		return &domain.ConfigurationError{Key: "retry.max_delay_ms", Value: r.MaxDelayMs}
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return &domain.ConfigurationError{Key: "log.level", Value: c.Log.Level}
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return &domain.ConfigurationError{Key: "log.format", Value: c.Log.Format}
	}

	switch c.Executor.Kind {
	case "http":
		if c.Executor.Endpoint == "" {
			return &domain.ConfigurationError{Key: "executor.endpoint", Value: c.Executor.Endpoint}
		}
	case "command":
		if c.Executor.Command == "" {
			return &domain.ConfigurationError{Key: "executor.command", Value: c.Executor.Command}
		}
	case "noop":
	default:
		return &domain.ConfigurationError{Key: "executor.kind", Value: c.Executor.Kind}
	}
	if c.Executor.TimeoutMs <= 0 {
		return &domain.ConfigurationError{Key: "executor.timeout_ms", Value: c.Executor.TimeoutMs}
	}

	if c.Mirror.Enabled {
		if c.Mirror.Endpoint == "" {
			return &domain.ConfigurationError{Key: "mirror.endpoint", Value: c.Mirror.Endpoint}
		}
		if c.Mirror.Bucket == "" {
			return &domain.ConfigurationError{Key: "mirror.bucket", Value: c.Mirror.Bucket}
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &domain.ConfigurationError{Key: "server.port", Value: c.Server.Port}
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return &domain.ConfigurationError{Key: "server.mode", Value: c.Server.Mode}
	}

	return nil
}

// FallbackDelimiterRune returns the configured fallback delimiter as a rune.
func (e EngineConfig) FallbackDelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(e.FallbackDelimiter)
	return r
}
