package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Registry  RegistryConfig  `yaml:"registry" mapstructure:"registry"`
	Presence  PresenceConfig  `yaml:"presence" mapstructure:"presence"`
	Oracle    OracleConfig    `yaml:"oracle" mapstructure:"oracle"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini    GeminiConfig    `yaml:"gemini" mapstructure:"gemini"`
	OCR       OCRConfig       `yaml:"ocr" mapstructure:"ocr"`
	Normalize NormalizeConfig `yaml:"normalize" mapstructure:"normalize"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Report    ReportConfig    `yaml:"report" mapstructure:"report"`
	Jobs      JobsConfig      `yaml:"jobs" mapstructure:"jobs"`
	Temporal  TemporalConfig  `yaml:"temporal" mapstructure:"temporal"`
	Notion    NotionConfig    `yaml:"notion" mapstructure:"notion"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the job store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // memory, sqlite, postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// RegistryConfig configures the NPI registry lookup.
type RegistryConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retries     int     `yaml:"retries" mapstructure:"retries"` // total lookup attempts
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	ActiveCode  string  `yaml:"active_code" mapstructure:"active_code"`
}

// Timeout returns the registry request timeout.
func (c RegistryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// PresenceConfig configures the website reachability check.
type PresenceConfig struct {
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
}

// Timeout returns the page fetch timeout.
func (c PresenceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// OracleConfig selects the generative text provider used for column
// mapping, document extraction, enrichment, and chat.
type OracleConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"` // anthropic, gemini, none
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// Timeout returns the per-call oracle timeout.
func (c OracleConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OCRConfig configures document text extraction.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"` // local, mistral
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralKey    string `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel  string `yaml:"mistral_model" mapstructure:"mistral_model"`
	MaxChars      int    `yaml:"max_chars" mapstructure:"max_chars"`
}

// NormalizeConfig configures the record normalizer.
type NormalizeConfig struct {
	RulesPath string `yaml:"rules_path" mapstructure:"rules_path"`
}

// PipelineConfig configures the batch orchestrator.
type PipelineConfig struct {
	MaxRecords  int `yaml:"max_records" mapstructure:"max_records"`
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ReportConfig configures report aggregation.
type ReportConfig struct {
	Accuracy float64 `yaml:"accuracy" mapstructure:"accuracy"`
}

// JobsConfig configures job dispatch.
type JobsConfig struct {
	Dispatcher    string `yaml:"dispatcher" mapstructure:"dispatcher"` // local, temporal
	MaxConcurrent int    `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	UploadDir     string `yaml:"upload_dir" mapstructure:"upload_dir"`
	MaxUploadMB   int64  `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// TemporalConfig configures the Temporal dispatcher and worker.
type TemporalConfig struct {
	HostPort            string `yaml:"host_port" mapstructure:"host_port"`
	Namespace           string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue           string `yaml:"task_queue" mapstructure:"task_queue"`
	ActivityTimeoutMins int    `yaml:"activity_timeout_mins" mapstructure:"activity_timeout_mins"`
}

// NotionConfig configures the review-queue sync.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	ReviewDB string `yaml:"review_db" mapstructure:"review_db"`
}

// FetchConfig configures remote source downloads.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from ./config.yaml, if present, and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path falls back
// to the optional ./config.yaml; a named file must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetConfigType("yaml")

	// Environment
	v.SetEnvPrefix("PROVIDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "provider.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8000)
	v.SetDefault("registry.base_url", "https://npiregistry.cms.hhs.gov/api/")
	v.SetDefault("registry.timeout_secs", 10)
	v.SetDefault("registry.retries", 2)
	v.SetDefault("registry.rate_limit", 10)
	v.SetDefault("registry.active_code", "A")
	v.SetDefault("presence.timeout_secs", 5)
	v.SetDefault("presence.max_body_bytes", 1<<20)
	v.SetDefault("presence.user_agent", "provider-cli/1.0")
	v.SetDefault("oracle.provider", "anthropic")
	v.SetDefault("oracle.timeout_secs", 60)
	v.SetDefault("oracle.max_tokens", 1024)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("ocr.provider", "local")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.mistral_model", "pixtral-large-latest")
	v.SetDefault("ocr.max_chars", 3000)
	v.SetDefault("pipeline.max_records", 50)
	v.SetDefault("pipeline.concurrency", 1)
	v.SetDefault("report.accuracy", 0.95)
	v.SetDefault("jobs.dispatcher", "local")
	v.SetDefault("jobs.max_concurrent", 4)
	v.SetDefault("jobs.upload_dir", "uploads")
	v.SetDefault("jobs.max_upload_mb", 32)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "provider-validation")
	v.SetDefault("temporal.activity_timeout_mins", 60)
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "provider-cli/1.0")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a given command mode depends on.
// Modes: "run", "serve", "worker", "store".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "memory":
		if mode == "worker" {
			problems = append(problems, "store.driver memory cannot be shared with a worker process")
		}
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}

	if mode == "store" {
		return joinProblems(problems)
	}

	switch c.Oracle.Provider {
	case "anthropic":
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	case "gemini":
		if c.Gemini.Key == "" {
			problems = append(problems, "gemini.key is required")
		}
	case "none":
	default:
		problems = append(problems, fmt.Sprintf("oracle.provider %q is not supported", c.Oracle.Provider))
	}

	if c.Registry.BaseURL == "" {
		problems = append(problems, "registry.base_url is required")
	}
	if c.Registry.TimeoutSecs < 1 {
		problems = append(problems, "registry.timeout_secs must be at least 1")
	}
	if c.Presence.TimeoutSecs < 1 || c.Presence.TimeoutSecs >= c.Registry.TimeoutSecs {
		problems = append(problems, "presence.timeout_secs must be at least 1 and less than registry.timeout_secs")
	}
	if c.Pipeline.Concurrency < 1 {
		problems = append(problems, "pipeline.concurrency must be at least 1")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
		}
		if c.Jobs.Dispatcher != "local" && c.Jobs.Dispatcher != "temporal" {
			problems = append(problems, fmt.Sprintf("jobs.dispatcher %q is not supported", c.Jobs.Dispatcher))
		}
		if c.Jobs.Dispatcher == "temporal" && c.Store.Driver == "memory" {
			problems = append(problems, "jobs.dispatcher temporal requires a shared store (sqlite or postgres)")
		}
	case "worker":
		if c.Temporal.HostPort == "" {
			problems = append(problems, "temporal.host_port is required")
		}
		if c.Temporal.TaskQueue == "" {
			problems = append(problems, "temporal.task_queue is required")
		}
	}

	return joinProblems(problems)
}

func joinProblems(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return eris.Errorf("config: %s", strings.Join(problems, "; "))
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
