package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Hermes   HermesConfig   `yaml:"hermes"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Search   SearchConfig   `yaml:"search"`
	Reembed  ReembedConfig  `yaml:"reembed"`
	Segments SegmentsConfig `yaml:"segments"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port              int    `yaml:"port"`
	MetricsPort       int    `yaml:"metrics_port"`
	AdminToken        string `yaml:"admin_token"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// DatabaseConfig selects Postgres when URL is set and the in-memory store otherwise.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig enables the query embedding cache when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	TTLHours int    `yaml:"ttl_hours"`
}

type HermesConfig struct {
	URL string `yaml:"url"`
}

type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	EmbeddingModel string `yaml:"embedding_model"`
	Dimensions     int    `yaml:"dimensions"`
	ChatModel      string `yaml:"chat_model"`
	TimeoutMs      int    `yaml:"timeout_ms"`
	MaxRetries     int    `yaml:"max_retries"`
}

type SearchConfig struct {
	Threshold        float64 `yaml:"threshold"`
	SimilarThreshold float64 `yaml:"similar_threshold"`
	DefaultLimit     int     `yaml:"default_limit"`
	MaxLimit         int     `yaml:"max_limit"`
	EmbedTimeoutMs   int     `yaml:"embed_timeout_ms"`
}

type ReembedConfig struct {
	BatchSize       int    `yaml:"batch_size"`
	BatchDelayMs    int    `yaml:"batch_delay_ms"`
	MaxArticles     int    `yaml:"max_articles"`
	StaleAfterHours int    `yaml:"stale_after_hours"`
	Schedule        string `yaml:"schedule"`
}

type SegmentsConfig struct {
	TTLHours        int     `yaml:"ttl_hours"`
	DominanceMargin float64 `yaml:"dominance_margin"`
	HighRating      float64 `yaml:"high_rating"`
	MediumRating    float64 `yaml:"medium_rating"`
	Schedule        string  `yaml:"schedule"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) OpenAITimeout() time.Duration {
	return time.Duration(c.OpenAI.TimeoutMs) * time.Millisecond
}

func (c *Config) EmbedTimeout() time.Duration {
	return time.Duration(c.Search.EmbedTimeoutMs) * time.Millisecond
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Redis.TTLHours) * time.Hour
}

func (c *Config) BatchDelay() time.Duration {
	return time.Duration(c.Reembed.BatchDelayMs) * time.Millisecond
}

func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Reembed.StaleAfterHours) * time.Hour
}

func (c *Config) SegmentsTTL() time.Duration {
	return time.Duration(c.Segments.TTLHours) * time.Hour
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:              8700,
			MetricsPort:       8701,
			RequestsPerMinute: 120,
		},
		Redis: RedisConfig{
			TTLHours: 168,
		},
		Hermes: HermesConfig{
			URL: "nats://localhost:4222",
		},
		OpenAI: OpenAIConfig{
			EmbeddingModel: "text-embedding-3-small",
			Dimensions:     1536,
			ChatModel:      "gpt-4o-mini",
			TimeoutMs:      30000,
			MaxRetries:     3,
		},
		Search: SearchConfig{
			Threshold:        0.5,
			SimilarThreshold: 0.6,
			DefaultLimit:     10,
			MaxLimit:         50,
			EmbedTimeoutMs:   5000,
		},
		Reembed: ReembedConfig{
			BatchSize:       5,
			BatchDelayMs:    1000,
			MaxArticles:     100,
			StaleAfterHours: 720,
			Schedule:        "0 * * * *",
		},
		Segments: SegmentsConfig{
			TTLHours:        24,
			DominanceMargin: 15,
			HighRating:      4.0,
			MediumRating:    3.0,
			Schedule:        "30 3 * * *",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// Validate rejects values the services cannot run with.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(c.Search.Threshold >= 0 && c.Search.Threshold <= 1, "search.threshold %v outside [0,1]", c.Search.Threshold)
	check(c.Search.SimilarThreshold >= 0 && c.Search.SimilarThreshold <= 1, "search.similar_threshold %v outside [0,1]", c.Search.SimilarThreshold)
	check(c.Search.DefaultLimit > 0, "search.default_limit must be positive")
	check(c.Search.MaxLimit >= c.Search.DefaultLimit, "search.max_limit must be >= default_limit")
	check(c.OpenAI.Dimensions > 0, "openai.dimensions must be positive")
	check(c.OpenAI.MaxRetries >= 0, "openai.max_retries must not be negative")
	check(c.Reembed.BatchSize > 0, "reembed.batch_size must be positive")
	check(c.Reembed.MaxArticles > 0, "reembed.max_articles must be positive")
	check(c.Reembed.BatchDelayMs >= 0, "reembed.batch_delay_ms must not be negative")
	check(c.Segments.TTLHours > 0, "segments.ttl_hours must be positive")
	check(c.Segments.HighRating >= c.Segments.MediumRating, "segments.high_rating must be >= medium_rating")
	check(c.Server.RequestsPerMinute > 0, "server.requests_per_minute must be positive")
	return errors.Join(errs...)
}

func applyEnv(cfg *Config) {
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setFloat := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setInt("PULSE_PORT", &cfg.Server.Port)
	setInt("PULSE_METRICS_PORT", &cfg.Server.MetricsPort)
	setString("PULSE_ADMIN_TOKEN", &cfg.Server.AdminToken)
	setInt("PULSE_REQUESTS_PER_MINUTE", &cfg.Server.RequestsPerMinute)
	setString("PULSE_DATABASE_URL", &cfg.Database.URL)
	setString("PULSE_REDIS_ADDR", &cfg.Redis.Addr)
	setString("PULSE_REDIS_PASSWORD", &cfg.Redis.Password)
	setString("PULSE_HERMES_URL", &cfg.Hermes.URL)
	setString("PULSE_OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	setString("PULSE_OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)
	setString("PULSE_EMBEDDING_MODEL", &cfg.OpenAI.EmbeddingModel)
	setInt("PULSE_EMBEDDING_DIMENSIONS", &cfg.OpenAI.Dimensions)
	setString("PULSE_CHAT_MODEL", &cfg.OpenAI.ChatModel)
	setFloat("PULSE_SEARCH_THRESHOLD", &cfg.Search.Threshold)
	setInt("PULSE_REEMBED_BATCH_SIZE", &cfg.Reembed.BatchSize)
	setInt("PULSE_REEMBED_BATCH_DELAY_MS", &cfg.Reembed.BatchDelayMs)
	setString("PULSE_LOG_LEVEL", &cfg.Logging.Level)
	setString("PULSE_LOG_FORMAT", &cfg.Logging.Format)

	// The conventional variable works when the prefixed one is unset.
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}
