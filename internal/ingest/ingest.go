package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Pulse/internal/analyzer"
	"github.com/MikeSquared-Agency/Pulse/internal/domain"
	"github.com/MikeSquared-Agency/Pulse/internal/hermes"
	"github.com/MikeSquared-Agency/Pulse/internal/metrics"
	"github.com/MikeSquared-Agency/Pulse/internal/store"
)

type Store interface {
	CreateArticle(ctx context.Context, a *store.Article) error
	UpdateArticleEmbedding(ctx context.Context, id uuid.UUID, vector []float32, embeddedAt time.Time) error
	ListArticlesNeedingEmbedding(ctx context.Context, staleBefore time.Time, limit int) ([]*store.Article, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Request describes an article to ingest.
type Request struct {
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Category    string    `json:"category,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	SourceURL   string    `json:"source_url,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// Service runs the ingestion pipeline: analyze, store, embed.
type Service struct {
	store    Store
	analyzer analyzer.Analyzer
	embedder Embedder
	fetcher  Fetcher
	hermes   hermes.Client
	logger   *slog.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewService(s Store, a analyzer.Analyzer, e Embedder, f Fetcher, h hermes.Client, logger *slog.Logger) *Service {
	if h == nil {
		h = hermes.NopClient{}
	}
	return &Service{
		store:    s,
		analyzer: a,
		embedder: e,
		fetcher:  f,
		hermes:   h,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Ingest analyzes and stores an article. Analyzer failures fail the call;
// embedding failures only leave the article without a vector for the
// re-embedding job to pick up.
func (s *Service) Ingest(ctx context.Context, req Request) (*store.Article, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrInvalidArticle)
	}

	analysis, err := s.analyzer.Analyze(ctx, req.Title, req.Content, req.Category)
	if err != nil {
		if errors.Is(err, domain.ErrAnalysisUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrAnalysisUnavailable, err)
	}

	base := analysis.ImpactScore
	a := &store.Article{
		ID:              uuid.New(),
		Title:           req.Title,
		Content:         req.Content,
		Summary:         analysis.Summary,
		Category:        req.Category,
		Tags:            req.Tags,
		SourceURL:       req.SourceURL,
		PublishedAt:     req.PublishedAt,
		BaseImpactScore: &base,
		FinancialImpact: analysis.FinancialImpact,
		CareerImpact:    analysis.CareerImpact,
		PersonalImpact:  analysis.PersonalImpact,
	}
	if a.PublishedAt.IsZero() {
		a.PublishedAt = s.now().UTC()
	}
	if err := s.store.CreateArticle(ctx, a); err != nil {
		return nil, fmt.Errorf("storing article: %w", err)
	}

	embedded := false
	if err := s.embed(ctx, a); err != nil {
		s.logger.Warn("article stored without embedding", "article_id", a.ID, "error", err)
		metrics.ArticlesIngestedTotal.WithLabelValues("missing").Inc()
	} else {
		embedded = true
		metrics.ArticlesIngestedTotal.WithLabelValues("stored").Inc()
	}

	s.logger.Info("article ingested", "article_id", a.ID, "base_impact_score", base, "embedded", embedded)
	s.publish(hermes.SubjectArticleIngested(a.ID.String()), hermes.ArticleIngestedEvent{
		ArticleID:       a.ID.String(),
		Title:           a.Title,
		Category:        a.Category,
		BaseImpactScore: base,
		Embedded:        embedded,
		PublishedAt:     a.PublishedAt,
	})
	return a, nil
}

// IngestURL extracts the readable text of a page and ingests it.
func (s *Service) IngestURL(ctx context.Context, rawURL, category string, tags []string) (*store.Article, error) {
	if s.fetcher == nil {
		return nil, errors.New("url ingestion is not configured")
	}
	page, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArticle, err)
	}
	content := page.Content
	if content == "" {
		content = page.Excerpt
	}
	return s.Ingest(ctx, Request{
		Title:     page.Title,
		Content:   content,
		Category:  category,
		Tags:      tags,
		SourceURL: rawURL,
	})
}

func (s *Service) embed(ctx context.Context, a *store.Article) error {
	if s.embedder == nil {
		return domain.ErrEmbeddingUnavailable
	}
	vec, err := s.embedder.Embed(ctx, a.EmbeddingText())
	if err != nil {
		return err
	}
	at := s.now().UTC()
	if err := s.store.UpdateArticleEmbedding(ctx, a.ID, vec, at); err != nil {
		return fmt.Errorf("storing embedding: %w", err)
	}
	a.Embedding = vec
	a.LastEmbeddedAt = &at

	s.publish(hermes.SubjectArticleEmbedded(a.ID.String()), hermes.ArticleEmbeddedEvent{
		ArticleID:  a.ID.String(),
		Dimensions: len(vec),
		EmbeddedAt: at,
	})
	return nil
}

func (s *Service) publish(subject string, ev interface{}) {
	if err := s.hermes.Publish(subject, ev); err != nil {
		s.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}
