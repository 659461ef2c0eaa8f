package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/MikeSquared-Agency/Pulse/internal/analyzer"
	"github.com/MikeSquared-Agency/Pulse/internal/config"
	"github.com/MikeSquared-Agency/Pulse/internal/embedding"
	"github.com/MikeSquared-Agency/Pulse/internal/feed"
	"github.com/MikeSquared-Agency/Pulse/internal/hermes"
	"github.com/MikeSquared-Agency/Pulse/internal/ingest"
	"github.com/MikeSquared-Agency/Pulse/internal/scoring"
	"github.com/MikeSquared-Agency/Pulse/internal/search"
	"github.com/MikeSquared-Agency/Pulse/internal/segments"
	"github.com/MikeSquared-Agency/Pulse/internal/store"
)

// app holds the wired services shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  store.Store
	hermes hermes.Client

	resolver *scoring.Resolver
	feed     *feed.Service
	engine   *search.Engine
	search   *search.Controller
	segments *segments.Analyzer
	ingest   *ingest.Service

	closers []func()
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	// Store
	if cfg.Database.URL == "" {
		logger.Warn("no database url configured, using in-memory store")
		a.store = store.NewMemoryStore()
	} else {
		db, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		a.store = db
		a.closers = append(a.closers, func() { db.Close() })
		logger.Info("connected to database")
	}

	// Hermes (optional)
	a.hermes = hermes.NopClient{}
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			a.hermes = hc
			a.closers = append(a.closers, hc.Close)
			logger.Info("connected to hermes")
		}
	}

	// Providers. Without an API key every embedding call reports
	// ErrEmbeddingUnavailable and search runs in lexical mode.
	var embedder, queryEmbedder embedding.Embedder
	var contentAnalyzer analyzer.Analyzer = analyzer.Disabled{}
	if cfg.OpenAI.APIKey != "" {
		oe := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.EmbeddingModel,
			Dimensions: cfg.OpenAI.Dimensions,
			Logger:     logger,
		})
		embedder, queryEmbedder = oe, oe
		contentAnalyzer = analyzer.NewOpenAIAnalyzer(analyzer.Config{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.ChatModel,
			MaxRetries: cfg.OpenAI.MaxRetries,
			Timeout:    cfg.OpenAITimeout(),
			Logger:     logger,
		})

		if cfg.Redis.Addr != "" {
			kv, err := embedding.NewRedisKV(cfg.Redis.Addr, cfg.Redis.Password)
			if err != nil {
				logger.Warn("failed to connect to redis, embedding cache disabled", "error", err)
			} else {
				a.closers = append(a.closers, kv.Close)
				queryEmbedder = embedding.NewCachedEmbedder(oe, kv, oe.Model(), cfg.CacheTTL(), logger)
				logger.Info("embedding cache enabled", "addr", cfg.Redis.Addr)
			}
		}
	} else {
		logger.Warn("no openai api key configured, embeddings and analysis disabled")
	}

	dims := cfg.OpenAI.Dimensions
	ingestGateway := embedding.NewGateway(embedder, dims, cfg.OpenAITimeout(), logger)
	queryGateway := embedding.NewGateway(queryEmbedder, dims, cfg.EmbedTimeout(), logger)

	a.resolver = scoring.NewResolver(a.store, logger)
	a.feed = feed.NewService(a.store, a.resolver, scoring.NewScorer(logger), logger)
	a.engine = search.NewEngine(a.store, cfg.Search.SimilarThreshold)
	a.search = search.NewController(queryGateway, a.engine, a.store, a.hermes, search.ControllerConfig{
		Threshold:    cfg.Search.Threshold,
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxLimit:     cfg.Search.MaxLimit,
	}, logger)
	a.segments = segments.NewAnalyzer(a.store, a.hermes, segments.Config{
		TTL:             cfg.SegmentsTTL(),
		DominanceMargin: cfg.Segments.DominanceMargin,
		HighRating:      cfg.Segments.HighRating,
		MediumRating:    cfg.Segments.MediumRating,
	}, logger)
	a.ingest = ingest.NewService(a.store, contentAnalyzer, ingestGateway,
		ingest.NewURLFetcher(cfg.OpenAITimeout()), a.hermes, logger)

	return a, nil
}

func (a *app) reembedOptions() ingest.ReembedOptions {
	return ingest.ReembedOptions{
		BatchSize:   a.cfg.Reembed.BatchSize,
		BatchDelay:  a.cfg.BatchDelay(),
		MaxArticles: a.cfg.Reembed.MaxArticles,
		StaleAfter:  a.cfg.StaleAfter(),
	}
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
