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
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Apify    ApifyConfig    `yaml:"apify" mapstructure:"apify"`
	Scrape   ScrapeConfig   `yaml:"scrape" mapstructure:"scrape"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	OpenAI   OpenAIConfig   `yaml:"openai" mapstructure:"openai"`
	Qdrant   QdrantConfig   `yaml:"qdrant" mapstructure:"qdrant"`
	Jina     JinaConfig     `yaml:"jina" mapstructure:"jina"`
	Reranker RerankerConfig `yaml:"reranker" mapstructure:"reranker"`
	Export   ExportConfig   `yaml:"export" mapstructure:"export"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ApifyConfig holds the scraping provider credentials and actor selection.
type ApifyConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	ActorID string `yaml:"actor_id" mapstructure:"actor_id"`
}

// ScrapeConfig configures profile scrape batching and retry behavior.
type ScrapeConfig struct {
	GroupSize       int           `yaml:"group_size" mapstructure:"group_size"`
	Concurrency     int           `yaml:"concurrency" mapstructure:"concurrency"`
	Cooldown        time.Duration `yaml:"cooldown" mapstructure:"cooldown"`
	JobTimeout      time.Duration `yaml:"job_timeout" mapstructure:"job_timeout"`
	MaxAttempts     int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	DatasetSettleMS int           `yaml:"dataset_settle_ms" mapstructure:"dataset_settle_ms"`
}

// CacheConfig configures the scraped profile cache.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// OpenAIConfig holds OpenAI settings for embeddings and classification.
type OpenAIConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	EmbeddingModel string `yaml:"embedding_model" mapstructure:"embedding_model"`
	EmbeddingDims  int    `yaml:"embedding_dims" mapstructure:"embedding_dims"`
	ClassifyModel  string `yaml:"classify_model" mapstructure:"classify_model"`
}

// QdrantConfig holds vector database connection settings.
type QdrantConfig struct {
	Host       string `yaml:"host" mapstructure:"host"`
	Port       int    `yaml:"port" mapstructure:"port"`
	APIKey     string `yaml:"api_key" mapstructure:"api_key"`
	UseTLS     bool   `yaml:"use_tls" mapstructure:"use_tls"`
	Collection string `yaml:"collection" mapstructure:"collection"`
}

// JinaConfig holds Jina reranker API settings.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// RerankerConfig selects the reranking backend.
type RerankerConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"`
	TopN    int    `yaml:"top_n" mapstructure:"top_n"`
}

// ExportConfig configures qualified lead export.
type ExportConfig struct {
	MinScore int    `yaml:"min_score" mapstructure:"min_score"`
	Dir      string `yaml:"dir" mapstructure:"dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ICP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("apify.base_url", "https://api.apify.com/v2")
	v.SetDefault("apify.actor_id", "curious_coder~linkedin-profile-scraper")
	v.SetDefault("scrape.group_size", 5)
	v.SetDefault("scrape.concurrency", 20)
	v.SetDefault("scrape.cooldown", 10*time.Second)
	v.SetDefault("scrape.job_timeout", 30*time.Minute)
	v.SetDefault("scrape.max_attempts", 3)
	v.SetDefault("scrape.dataset_settle_ms", 2000)
	v.SetDefault("cache.ttl", 30*24*time.Hour)
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("openai.embedding_dims", 1536)
	v.SetDefault("openai.classify_model", "gpt-4o-mini")
	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "lead_profiles")
	v.SetDefault("jina.base_url", "https://api.jina.ai")
	v.SetDefault("jina.model", "jina-reranker-v2-base-multilingual")
	v.SetDefault("reranker.backend", "jina")
	v.SetDefault("reranker.top_n", 0)
	v.SetDefault("export.min_score", 0)
	v.SetDefault("export.dir", ".")

	// Read config file (optional)
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

// Validate checks that the configuration required for the given command mode
// is present and within bounds.
func (c *Config) Validate(mode string) error {
	var errs []string

	need := func(val, name string) {
		if val == "" {
			errs = append(errs, name+" is required")
		}
	}

	// SQLite falls back to a local file when no URL is set.
	needDB := func() {
		if c.Store.Driver != "sqlite" {
			need(c.Store.DatabaseURL, "store.database_url")
		}
	}

	checkBounds := func() {
		if c.Scrape.GroupSize < 1 || c.Scrape.GroupSize > 10 {
			errs = append(errs, "scrape.group_size must be between 1 and 10")
		}
		if c.Scrape.Concurrency < 1 || c.Scrape.Concurrency > 50 {
			errs = append(errs, "scrape.concurrency must be between 1 and 50")
		}
		if c.Cache.TTL <= 0 {
			errs = append(errs, "cache.ttl must be > 0")
		}
	}

	switch mode {
	case "ingest", "icp", "export", "status", "migrate", "cache":
		needDB()
	case "enrich":
		needDB()
		need(c.Apify.Token, "apify.token")
		need(c.OpenAI.Key, "openai.key")
		checkBounds()
	case "qualify":
		needDB()
		need(c.OpenAI.Key, "openai.key")
		need(c.Qdrant.Host, "qdrant.host")
		if c.Reranker.Backend == "jina" {
			need(c.Jina.Key, "jina.key")
		}
	case "run":
		needDB()
		need(c.Apify.Token, "apify.token")
		need(c.OpenAI.Key, "openai.key")
		need(c.Qdrant.Host, "qdrant.host")
		if c.Reranker.Backend == "jina" {
			need(c.Jina.Key, "jina.key")
		}
		checkBounds()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
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
