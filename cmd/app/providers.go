package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/obara/supportdesk/internal/domain/chat"
	"github.com/obara/supportdesk/internal/domain/kb"
	"github.com/obara/supportdesk/internal/infra/answercache"
	"github.com/obara/supportdesk/internal/infra/config"
	"github.com/obara/supportdesk/internal/infra/embedcache"
	"github.com/obara/supportdesk/internal/infra/embedder"
	"github.com/obara/supportdesk/internal/infra/faqsource"
	"github.com/obara/supportdesk/internal/infra/kbrepo"
	"github.com/obara/supportdesk/internal/infra/llm/chatgpt"
)

func provideChatConfig(cfg *config.Config) chat.Config {
	return chat.Config{
		Model:            cfg.LLM.Model,
		Temperature:      cfg.LLM.Temperature,
		Prompt:           cfg.Chat.Prompt,
		SummaryPrompt:    cfg.Chat.SummaryPrompt,
		FallbackAnswer:   cfg.Chat.FallbackAnswer,
		HistoryTurns:     cfg.Chat.HistoryTurns,
		MaxHistoryTokens: cfg.Chat.MaxHistoryTokens,
		MaxSessionTurns:  cfg.Chat.MaxSessionTurns,
		AnswerCacheTTL:   cfg.Chat.AnswerCacheTTL,
		CommonFaqCount:   cfg.Chat.CommonFaqCount,
	}
}

func provideChatGPTClient(cfg *config.Config) (*chatgpt.Client, error) {
	return chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.RequestTimeout)
}

func provideEmbedder(cfg *config.Config, client *chatgpt.Client, logger *slog.Logger) kb.Embedder {
	return embedder.NewChatGPTEmbedder(client, cfg.LLM.EmbeddingModel, logger)
}

func provideFaqSource(cfg *config.Config) kb.Source {
	return faqsource.NewCSVSource(cfg.FAQ.SourcePath)
}

func provideCommonFaqSource(cfg *config.Config) kb.Source {
	if strings.TrimSpace(cfg.FAQ.CommonSourcePath) == "" {
		return nil
	}
	return faqsource.NewCSVSource(cfg.FAQ.CommonSourcePath)
}

func provideEmbeddingCache(cfg *config.Config) kb.Cache {
	return embedcache.NewFileCache(cfg.FAQ.CachePath)
}

func provideNearestIndex(cfg *config.Config, logger *slog.Logger) kb.NearestIndex {
	dsn := strings.TrimSpace(cfg.FAQ.Postgres.DSN)
	if dsn == "" {
		logger.Info("faq postgres dsn not set, ranking in process")
		return nil
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, ranking in process", "error", err)
		return nil
	}
	if cfg.FAQ.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.FAQ.Postgres.MaxConns
	}
	if cfg.FAQ.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.FAQ.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, ranking in process", "error", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, ranking in process", "error", err)
		pool.Close()
		return nil
	}
	logger.Info("faq pgvector index enabled")
	return kbrepo.NewPostgresIndex(pool)
}

func provideStore(cfg *config.Config, source kb.Source, cache kb.Cache, embed kb.Embedder, index kb.NearestIndex, logger *slog.Logger) *kb.Store {
	return kb.NewStore(kb.StoreConfig{
		Dimension:           cfg.FAQ.EmbeddingDim,
		DegradeOnEmbedError: cfg.FAQ.DegradeOnEmbedError,
	}, source, cache, embed, index, logger)
}

func provideRetriever(cfg *config.Config, store *kb.Store, index kb.NearestIndex, logger *slog.Logger) *kb.Retriever {
	return kb.NewRetriever(kb.RetrieverConfig{
		SimilarityThreshold: cfg.FAQ.SimilarityThreshold,
	}, store, index, logger)
}

func provideChatService(cfg *config.Config, retriever *kb.Retriever, store *kb.Store, answers chat.AnswerStore, client *chatgpt.Client, logger *slog.Logger) chat.Service {
	return chat.NewService(provideChatConfig(cfg), retriever, store, provideCommonFaqSource(cfg), answers, client, logger)
}

func provideAnswerStore(cfg *config.Config, logger *slog.Logger) chat.AnswerStore {
	if cfg.FAQ.Valkey.Enabled {
		opt, err := buildValkeyOptions(cfg)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back to memory cache", "error", err)
			return answercache.NewMemoryStore()
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to create valkey client, falling back to memory cache", "error", err)
			return answercache.NewMemoryStore()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			logger.Error("valkey ping failed, falling back to memory cache", "error", err)
			client.Close()
		} else {
			logger.Info("valkey answer cache enabled", "addr", cfg.FAQ.Valkey.Addr)
			return answercache.NewValkeyStore(client, "faq")
		}
	}
	return answercache.NewMemoryStore()
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	if strings.Contains(cfg.FAQ.Valkey.Addr, "://") {
		return valkey.ParseURL(cfg.FAQ.Valkey.Addr)
	}
	return valkey.ClientOption{InitAddress: []string{cfg.FAQ.Valkey.Addr}}, nil
}
