package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP HTTPConfig `yaml:"http"`
	LLM  LLMConfig  `yaml:"llm"`
	FAQ  FAQConfig  `yaml:"faq"`
	Chat ChatConfig `yaml:"chat"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address            string          `yaml:"address"`
	ReadTimeout        time.Duration   `yaml:"readTimeout"`
	WriteTimeout       time.Duration   `yaml:"writeTimeout"`
	RateLimit          RateLimitConfig `yaml:"rateLimit"`
	CORSAllowedOrigins []string        `yaml:"corsAllowedOrigins"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// LLMConfig contains OpenAI-compatible provider settings.
type LLMConfig struct {
	APIKey         string        `yaml:"apiKey"`
	BaseURL        string        `yaml:"baseUrl"`
	Model          string        `yaml:"model"`
	EmbeddingModel string        `yaml:"embeddingModel"`
	Temperature    float32       `yaml:"temperature"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

// FAQConfig controls the knowledge base: source files, embedding cache and
// retrieval behavior.
type FAQConfig struct {
	SourcePath       string `yaml:"sourcePath"`
	CommonSourcePath string `yaml:"commonSourcePath"`
	CachePath        string `yaml:"cachePath"`
	EmbeddingDim     int    `yaml:"embeddingDim"`
	// DegradeOnEmbedError keeps a load alive when the provider fails for
	// individual entries, marking them as never-matching sentinels.
	DegradeOnEmbedError bool `yaml:"degradeOnEmbedError"`
	// SimilarityThreshold drops matches scoring below it; negative disables
	// the floor and keeps pure argmax selection.
	SimilarityThreshold float64        `yaml:"similarityThreshold"`
	Postgres            PostgresConfig `yaml:"postgres"`
	Valkey              ValkeyConfig   `yaml:"valkey"`
}

// PostgresConfig contains DSN and pooling settings for the optional
// pgvector index.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// ValkeyConfig contains connection information for the shared answer cache.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ChatConfig controls the conversation pipeline.
type ChatConfig struct {
	Prompt           string        `yaml:"prompt"`
	SummaryPrompt    string        `yaml:"summaryPrompt"`
	FallbackAnswer   string        `yaml:"fallbackAnswer"`
	HistoryTurns     int           `yaml:"historyTurns"`
	MaxHistoryTokens int           `yaml:"maxHistoryTokens"`
	MaxSessionTurns  int           `yaml:"maxSessionTurns"`
	AnswerCacheTTL   time.Duration `yaml:"answerCacheTtl"`
	CommonFaqCount   int           `yaml:"commonFaqCount"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = isTruthy(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_EMBEDDING_MODEL"); v != "" {
		cfg.LLM.EmbeddingModel = v
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}
	if v := os.Getenv("LLM_REQUEST_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.LLM.RequestTimeout = parsed
		}
	}
	if v := os.Getenv("FAQ_SOURCE_PATH"); v != "" {
		cfg.FAQ.SourcePath = v
	}
	if v := os.Getenv("FAQ_COMMON_SOURCE_PATH"); v != "" {
		cfg.FAQ.CommonSourcePath = v
	}
	if v := os.Getenv("FAQ_CACHE_PATH"); v != "" {
		cfg.FAQ.CachePath = v
	}
	if v := os.Getenv("FAQ_EMBEDDING_DIM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.FAQ.EmbeddingDim = parsed
		}
	}
	if v := os.Getenv("FAQ_DEGRADE_ON_EMBED_ERROR"); v != "" {
		cfg.FAQ.DegradeOnEmbedError = isTruthy(v)
	}
	if v := os.Getenv("FAQ_SIMILARITY_THRESHOLD"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.FAQ.SimilarityThreshold = parsed
		}
	}
	if v := os.Getenv("FAQ_POSTGRES_DSN"); v != "" {
		cfg.FAQ.Postgres.DSN = v
	}
	if v := os.Getenv("FAQ_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.FAQ.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("FAQ_POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.FAQ.Postgres.MinConns = int32(parsed)
		}
	}
	if v := os.Getenv("FAQ_VALKEY_ENABLED"); v != "" {
		cfg.FAQ.Valkey.Enabled = isTruthy(v)
	}
	if v := os.Getenv("FAQ_VALKEY_ADDR"); v != "" {
		cfg.FAQ.Valkey.Addr = v
	}
	if v := os.Getenv("CHAT_PROMPT"); v != "" {
		cfg.Chat.Prompt = v
	}
	if v := os.Getenv("CHAT_SUMMARY_PROMPT"); v != "" {
		cfg.Chat.SummaryPrompt = v
	}
	if v := os.Getenv("CHAT_FALLBACK_ANSWER"); v != "" {
		cfg.Chat.FallbackAnswer = v
	}
	if v := os.Getenv("CHAT_HISTORY_TURNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Chat.HistoryTurns = parsed
		}
	}
	if v := os.Getenv("CHAT_MAX_HISTORY_TOKENS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Chat.MaxHistoryTokens = parsed
		}
	}
	if v := os.Getenv("CHAT_ANSWER_CACHE_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Chat.AnswerCacheTTL = parsed
		}
	}
}

func isTruthy(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 90 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
			},
		},
		LLM: LLMConfig{
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			Temperature:    0.3,
			RequestTimeout: 60 * time.Second,
		},
		FAQ: FAQConfig{
			SourcePath:          "data/faq_all.csv",
			CommonSourcePath:    "data/faq_common.csv",
			CachePath:           "data/faq_embeddings.cache",
			EmbeddingDim:        1536,
			DegradeOnEmbedError: true,
			SimilarityThreshold: -1,
			Postgres: PostgresConfig{
				MaxConns: 4,
			},
		},
		Chat: ChatConfig{
			Prompt:           "You are a support specialist for the LRAD far-infrared pyrolysis system. Ground your answer in the reference FAQ below and keep it under 200 characters.",
			SummaryPrompt:    "Summarize the key points of the following conversation in 200 characters or less.",
			FallbackAnswer:   "Sorry, no related FAQ could be found for your question.",
			HistoryTurns:     5,
			MaxHistoryTokens: 2000,
			MaxSessionTurns:  20,
			AnswerCacheTTL:   6 * time.Hour,
			CommonFaqCount:   3,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model cannot be empty")
	}
	if strings.TrimSpace(c.LLM.EmbeddingModel) == "" {
		return errors.New("llm.embeddingModel cannot be empty")
	}
	if strings.TrimSpace(c.FAQ.SourcePath) == "" {
		return errors.New("faq.sourcePath cannot be empty")
	}
	if strings.TrimSpace(c.FAQ.CachePath) == "" {
		return errors.New("faq.cachePath cannot be empty")
	}
	if c.FAQ.EmbeddingDim < 0 {
		return errors.New("faq.embeddingDim cannot be negative")
	}
	if c.FAQ.SimilarityThreshold > 1 {
		return errors.New("faq.similarityThreshold cannot exceed 1")
	}
	if c.FAQ.Valkey.Enabled && strings.TrimSpace(c.FAQ.Valkey.Addr) == "" {
		return errors.New("faq.valkey.addr cannot be empty when the valkey cache is enabled")
	}
	if c.Chat.HistoryTurns < 0 {
		return errors.New("chat.historyTurns cannot be negative")
	}
	if c.Chat.MaxHistoryTokens < 0 {
		return errors.New("chat.maxHistoryTokens cannot be negative")
	}
	if c.Chat.AnswerCacheTTL < 0 {
		return errors.New("chat.answerCacheTtl cannot be negative")
	}
	if strings.TrimSpace(c.Chat.FallbackAnswer) == "" {
		return errors.New("chat.fallbackAnswer cannot be empty")
	}
	return nil
}
