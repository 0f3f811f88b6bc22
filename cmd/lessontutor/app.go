package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lessontutor/internal/config"
	"github.com/kailas-cloud/lessontutor/internal/db"
	dbRedis "github.com/kailas-cloud/lessontutor/internal/db/redis"
	"github.com/kailas-cloud/lessontutor/internal/db/sqlite"
	"github.com/kailas-cloud/lessontutor/internal/domain"
	"github.com/kailas-cloud/lessontutor/internal/metrics"
	"github.com/kailas-cloud/lessontutor/internal/repository/embcache"
	lessonrepo "github.com/kailas-cloud/lessontutor/internal/repository/lesson"
	sessionrepo "github.com/kailas-cloud/lessontutor/internal/repository/session"
	"github.com/kailas-cloud/lessontutor/internal/transport/ollama"
	"github.com/kailas-cloud/lessontutor/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/lessontutor/internal/usecase/embedding"
	"github.com/kailas-cloud/lessontutor/internal/usecase/gateway"
	healthuc "github.com/kailas-cloud/lessontutor/internal/usecase/health"
	lessonuc "github.com/kailas-cloud/lessontutor/internal/usecase/lesson"
	"github.com/kailas-cloud/lessontutor/internal/usecase/planner"
	"github.com/kailas-cloud/lessontutor/internal/usecase/retrieval"
	sessionuc "github.com/kailas-cloud/lessontutor/internal/usecase/session"
)

// app is the composition root shared by every command.
type app struct {
	store        db.Store
	lessons      *lessonuc.Service
	sessions     *sessionuc.Service
	sessionStore *sessionrepo.MemoryStore
	health       *healthuc.Service
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	store, err := openStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}
	readiness := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, readiness); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database", zap.String("driver", cfg.Database.Driver))

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterLLMMetrics()
	metrics.RegisterGenerationMetrics()

	embedder := buildEmbedder(cfg.Embedding, store, cfg.Storage.KeyPrefix, logger)
	retriever := retrieval.New(withInstruction(embedder, cfg.Embedding.DocumentInstruction), retrieval.Config{
		InitialK:        cfg.Planning.InitialK,
		MinContextChars: cfg.Planning.MinContextChars,
	}).WithQueryEmbedder(withInstruction(embedder, cfg.Embedding.QueryInstruction))
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Bool("cache", cfg.Embedding.Cache.Enabled),
	)

	llm := gateway.New(buildChatClient(cfg.LLM, logger), gatewayConfig(cfg.LLM), logger)

	plans := planner.New(llm, retriever, planner.Config{
		Throttle:    time.Duration(cfg.Planning.ThrottleMS) * time.Millisecond,
		Parallelism: cfg.Planning.Parallelism,
	}, logger)

	lessons := lessonuc.New(lessonrepo.New(store, cfg.Storage.KeyPrefix), retriever, plans, lessonuc.Config{
		ChunkSize:    cfg.Chunking.Size,
		ChunkOverlap: cfg.Chunking.Overlap,
	}, logger)

	sessionStore := sessionrepo.NewMemoryStore()
	sessions := sessionuc.New(lessons, sessionStore, retriever, llm, sessionuc.Config{
		QATopK: cfg.Session.QATopK,
	}, logger)

	checks := map[string]healthuc.Checker{
		"database": healthuc.PingChecker(store),
		"llm":      llm,
	}
	if hc, ok := embedder.(domain.HealthChecker); ok {
		checks["embedding"] = hc
	}

	return &app{
		store:        store,
		lessons:      lessons,
		sessions:     sessions,
		sessionStore: sessionStore,
		health:       healthuc.New(checks, 0, logger),
	}, nil
}

func (a *app) Close() {
	a.store.Close()
}

func openStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// buildEmbedder assembles the decorator chain: provider -> cache -> instrumented.
func buildEmbedder(cfg config.EmbeddingConfig, store db.Store, prefix string, logger *zap.Logger) domain.Embedder {
	var base domain.Embedder
	switch cfg.Provider {
	case config.ProviderOpenAI:
		base = openai.NewEmbedder(&openai.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.Provider,
			Logger:     logger,
		})
	default:
		base = ollama.NewEmbedder(ollama.Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Logger:  logger,
		})
	}

	embedder := base
	if cfg.Cache.Enabled && store != nil {
		embedder = embcache.New(base, store, embcache.Config{
			Prefix: prefix,
			Model:  cfg.Model,
			TTL:    time.Duration(cfg.Cache.TTLDays) * 24 * time.Hour,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	return embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, cfg.MaxBatchSize, logger)
}

// withInstruction prefixes texts for asymmetric models. The prefix sits
// outside the cache so cached vectors are keyed by the prefixed text.
func withInstruction(e domain.Embedder, instruction string) domain.Embedder {
	if instruction == "" {
		return e
	}
	return domain.NewInstructionEmbedder(e, instruction)
}

func buildChatClient(cfg config.LLMConfig, logger *zap.Logger) gateway.ChatClient {
	if cfg.Provider == config.ProviderOpenAI {
		return openai.NewChat(&openai.Config{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Model:    cfg.Model,
			Provider: cfg.Provider,
			Logger:   logger,
		})
	}
	return ollama.NewChat(ollama.Config{
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Logger:  logger,
	})
}

func gatewayConfig(cfg config.LLMConfig) gateway.Config {
	stream := true
	if cfg.Stream != nil {
		stream = *cfg.Stream
	}
	return gateway.Config{
		Provider:       cfg.Provider,
		Model:          cfg.Model,
		MaxConcurrent:  cfg.MaxConcurrent,
		MaxPromptChars: cfg.MaxPromptChars,
		Timeout:        time.Duration(cfg.TimeoutSec) * time.Second,
		Stream:         stream,
		Retry: gateway.RetryPolicy{
			Retries: cfg.Retries,
			Backoff: time.Duration(cfg.BackoffMS) * time.Millisecond,
		},
	}
}
