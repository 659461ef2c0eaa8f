package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/Pulse/internal/domain"
	"github.com/MikeSquared-Agency/Pulse/internal/hermes"
	"github.com/MikeSquared-Agency/Pulse/internal/metrics"
	"github.com/MikeSquared-Agency/Pulse/internal/store"
)

const (
	pathVector   = "vector"
	pathFallback = "fallback"
	pathEmpty    = "empty"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type LexicalStore interface {
	LexicalSearch(ctx context.Context, query string, limit int) ([]*store.Article, error)
}

type ControllerConfig struct {
	Threshold    float64
	DefaultLimit int
	MaxLimit     int
}

// Controller answers free-text queries: vector search when an embedding is
// available, lexical matching otherwise.
type Controller struct {
	embedder Embedder
	engine   *Engine
	lexical  LexicalStore
	hermes   hermes.Client
	cfg      ControllerConfig
	logger   *slog.Logger
}

func NewController(embedder Embedder, engine *Engine, lexical LexicalStore, h hermes.Client, cfg ControllerConfig, logger *slog.Logger) *Controller {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultCount
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = cfg.DefaultLimit
	}
	if h == nil {
		h = hermes.NopClient{}
	}
	return &Controller{embedder: embedder, engine: engine, lexical: lexical, hermes: h, cfg: cfg, logger: logger}
}

// SearchArticles never returns an error for embedding provider failures; it
// degrades to lexical results instead. Store failures surface as
// domain.ErrSearchFailed. Each call logs exactly one "search" event.
func (c *Controller) SearchArticles(ctx context.Context, query string, limit int) ([]Result, error) {
	query = strings.TrimSpace(query)
	limit = c.clampLimit(limit)

	if query == "" {
		c.record(pathEmpty, query, 0, nil)
		return []Result{}, nil
	}

	vec, err := c.embedder.Embed(ctx, query)
	switch {
	case err == nil && !zeroVector(vec):
		threshold := c.cfg.Threshold
		results, err := c.engine.Search(ctx, vec, Options{Threshold: &threshold, Count: limit})
		if err != nil {
			c.record(pathVector, query, 0, err)
			return nil, err
		}
		c.record(pathVector, query, len(results), nil)
		return results, nil

	case err == nil, errors.Is(err, domain.ErrEmbeddingUnavailable):
		reason := "zero vector"
		if err != nil {
			reason = err.Error()
		}
		results, lexErr := c.lexicalSearch(ctx, query, limit)
		if lexErr != nil {
			c.record(pathFallback, query, 0, lexErr)
			return nil, lexErr
		}
		c.record(pathFallback, query, len(results), nil, "reason", reason)
		c.publishDegraded(query, len(results), reason)
		return results, nil

	default:
		c.record(pathVector, query, 0, err)
		return nil, err
	}
}

func (c *Controller) lexicalSearch(ctx context.Context, query string, limit int) ([]Result, error) {
	articles, err := c.lexical.LexicalSearch(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchFailed, err)
	}
	if len(articles) > limit {
		articles = articles[:limit]
	}
	results := make([]Result, 0, len(articles))
	for _, a := range articles {
		results = append(results, Result{Article: a})
	}
	return results, nil
}

func (c *Controller) clampLimit(limit int) int {
	if limit <= 0 {
		return c.cfg.DefaultLimit
	}
	if limit > c.cfg.MaxLimit {
		return c.cfg.MaxLimit
	}
	return limit
}

func (c *Controller) record(path, query string, results int, err error, extra ...any) {
	attrs := append([]any{"path", path, "results", results, "query_len", len(query)}, extra...)
	label := path
	if err != nil {
		attrs = append(attrs, "error", err)
		label = "error"
	}
	metrics.SearchRequestsTotal.WithLabelValues(label).Inc()
	if err != nil {
		c.logger.Error("search", attrs...)
		return
	}
	c.logger.Info("search", attrs...)
}

func (c *Controller) publishDegraded(query string, results int, reason string) {
	ev := hermes.SearchDegradedEvent{
		QueryLen:  len(query),
		Results:   results,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
	if err := c.hermes.Publish(hermes.SubjectSearchDegraded, ev); err != nil {
		c.logger.Warn("failed to publish search degraded event", "error", err)
	}
}

func zeroVector(v []float32) bool {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	return norm == 0 || math.IsNaN(norm)
}
