// Package config loads application configuration from file and environment.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Redis    RedisConfig    `yaml:"redis" mapstructure:"redis"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Sources  SourcesConfig  `yaml:"sources" mapstructure:"sources"`
	Classify ClassifyConfig `yaml:"classify" mapstructure:"classify"`
	LLM      LLMConfig      `yaml:"llm" mapstructure:"llm"`
	Billing  BillingConfig  `yaml:"billing" mapstructure:"billing"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Jobs     JobsConfig     `yaml:"jobs" mapstructure:"jobs"`
	Report   ReportConfig   `yaml:"report" mapstructure:"report"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// StoreConfig configures the durable database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // postgres | sqlite
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// RedisConfig configures the fast cache tier.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// CacheConfig configures cascade tier TTLs and the local tier directory.
type CacheConfig struct {
	FastTTL    time.Duration `yaml:"fast_ttl" mapstructure:"fast_ttl"`
	DurableTTL time.Duration `yaml:"durable_ttl" mapstructure:"durable_ttl"`
	LocalTTL   time.Duration `yaml:"local_ttl" mapstructure:"local_ttl"`
	LocalDir   string        `yaml:"local_dir" mapstructure:"local_dir"`
	CacheFirst bool          `yaml:"cache_first" mapstructure:"cache_first"`
}

// SourcesConfig configures the upstream procurement sources.
type SourcesConfig struct {
	FetchDeadline    time.Duration `yaml:"fetch_deadline" mapstructure:"fetch_deadline"`
	RequestTimeout   time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	BreakerThreshold int           `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown" mapstructure:"breaker_cooldown"`
	RatePerSecond    float64       `yaml:"rate_per_second" mapstructure:"rate_per_second"`

	PNCP       PNCPConfig       `yaml:"pncp" mapstructure:"pncp"`
	ComprasNet ComprasNetConfig `yaml:"comprasnet" mapstructure:"comprasnet"`
	Gazette    GazetteConfig    `yaml:"gazette" mapstructure:"gazette"`
}

// PNCPConfig configures the PNCP REST source.
type PNCPConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	PageSize int    `yaml:"page_size" mapstructure:"page_size"`
	MaxPages int    `yaml:"max_pages" mapstructure:"max_pages"`
}

// ComprasNetConfig configures the ComprasNet REST source.
type ComprasNetConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// GazetteConfig configures the FTP bulk-gazette source.
type GazetteConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr     string `yaml:"addr" mapstructure:"addr"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Dir      string `yaml:"dir" mapstructure:"dir"`
}

// ClassifyConfig configures the relevance classifier.
type ClassifyConfig struct {
	ProfilesPath    string  `yaml:"profiles_path" mapstructure:"profiles_path"`
	ProximityWindow int     `yaml:"proximity_window" mapstructure:"proximity_window"`
	AcceptDensity   float64 `yaml:"accept_density" mapstructure:"accept_density"`
	StandardDensity float64 `yaml:"standard_density" mapstructure:"standard_density"`
	MinDensity      float64 `yaml:"min_density" mapstructure:"min_density"`
	MaxConcurrency  int     `yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// LLMConfig configures the arbitration and summary model.
type LLMConfig struct {
	Key       string        `yaml:"key" mapstructure:"key"`
	Model     string        `yaml:"model" mapstructure:"model"`
	MaxTokens int64         `yaml:"max_tokens" mapstructure:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// BillingConfig points at the auth/billing collaborator.
type BillingConfig struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// PipelineConfig configures pipeline-wide budgets.
type PipelineConfig struct {
	Deadline         time.Duration `yaml:"deadline" mapstructure:"deadline"`
	ResultsRetention time.Duration `yaml:"results_retention" mapstructure:"results_retention"`
	MaxPartialEvents int           `yaml:"max_partial_events" mapstructure:"max_partial_events"`
}

// JobsConfig configures the background job runner.
type JobsConfig struct {
	Workers         int           `yaml:"workers" mapstructure:"workers"`
	JobTimeout      time.Duration `yaml:"job_timeout" mapstructure:"job_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// ReportConfig configures generated artifacts.
type ReportConfig struct {
	ArtifactDir string `yaml:"artifact_dir" mapstructure:"artifact_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml and RADAR_-prefixed environment
// variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "radar.db")
	v.SetDefault("redis.addr", "")
	v.SetDefault("cache.fast_ttl", "5m")
	v.SetDefault("cache.durable_ttl", "24h")
	v.SetDefault("cache.local_ttl", "24h")
	v.SetDefault("cache.local_dir", ".cache/searches")
	v.SetDefault("cache.cache_first", true)
	v.SetDefault("sources.fetch_deadline", "25s")
	v.SetDefault("sources.request_timeout", "10s")
	v.SetDefault("sources.breaker_threshold", 3)
	v.SetDefault("sources.breaker_cooldown", "30s")
	v.SetDefault("sources.rate_per_second", 5)
	v.SetDefault("sources.pncp.enabled", true)
	v.SetDefault("sources.pncp.base_url", "https://pncp.gov.br/api/consulta/v1")
	v.SetDefault("sources.pncp.page_size", 50)
	v.SetDefault("sources.pncp.max_pages", 10)
	v.SetDefault("sources.comprasnet.enabled", true)
	v.SetDefault("sources.comprasnet.base_url", "https://compras.dados.gov.br/licitacoes/v1")
	v.SetDefault("sources.gazette.enabled", false)
	v.SetDefault("sources.gazette.dir", "/pub/licitacoes")
	v.SetDefault("classify.profiles_path", "sectors.yaml")
	v.SetDefault("classify.proximity_window", 5)
	v.SetDefault("classify.accept_density", 0.05)
	v.SetDefault("classify.standard_density", 0.02)
	v.SetDefault("classify.min_density", 0.01)
	v.SetDefault("classify.max_concurrency", 8)
	v.SetDefault("llm.model", "claude-haiku-4-5-20251001")
	v.SetDefault("llm.max_tokens", 256)
	v.SetDefault("llm.timeout", "20s")
	v.SetDefault("billing.timeout", "5s")
	v.SetDefault("pipeline.deadline", "60s")
	v.SetDefault("pipeline.results_retention", "10m")
	v.SetDefault("pipeline.max_partial_events", 10)
	v.SetDefault("jobs.workers", 4)
	v.SetDefault("jobs.job_timeout", "2m")
	v.SetDefault("jobs.shutdown_timeout", "10s")
	v.SetDefault("report.artifact_dir", ".artifacts")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
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
