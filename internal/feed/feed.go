package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Pulse/internal/domain"
	"github.com/MikeSquared-Agency/Pulse/internal/scoring"
	"github.com/MikeSquared-Agency/Pulse/internal/store"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	// candidateFactor sizes the recency window that is re-ranked by score.
	candidateFactor = 5
	maxCandidates   = 500
)

// Item is an article with the reader's personalized score. When scoring fails
// the stored base score is shown instead and Personalized is false; Score is
// nil when there is no base score either.
type Item struct {
	*store.Article
	Score        *int               `json:"score"`
	Personalized bool               `json:"personalized"`
	Factors      map[string]float64 `json:"factors,omitempty"`
}

type Options struct {
	Limit    int
	Category string
	Since    *time.Time
}

type ArticleLister interface {
	ListArticles(ctx context.Context, filter store.ArticleFilter) ([]*store.Article, error)
}

type WeightResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (scoring.WeightMap, error)
}

type Service struct {
	articles ArticleLister
	resolver WeightResolver
	scorer   *scoring.Scorer
	logger   *slog.Logger
}

func NewService(articles ArticleLister, resolver WeightResolver, scorer *scoring.Scorer, logger *slog.Logger) *Service {
	return &Service{articles: articles, resolver: resolver, scorer: scorer, logger: logger}
}

// Feed ranks recent articles by the user's personalized score, newest first on ties.
func (s *Service) Feed(ctx context.Context, userID uuid.UUID, opts Options) ([]Item, error) {
	weights, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	candidates := limit * candidateFactor
	if candidates > maxCandidates {
		candidates = maxCandidates
	}

	articles, err := s.articles.ListArticles(ctx, store.ArticleFilter{
		Category: opts.Category,
		Since:    opts.Since,
		Limit:    candidates,
	})
	if err != nil {
		return nil, fmt.Errorf("listing articles: %w", err)
	}

	items := make([]Item, 0, len(articles))
	for _, a := range articles {
		items = append(items, s.score(a, weights))
	}

	sort.SliceStable(items, func(i, j int) bool {
		si, sj := items[i].Score, items[j].Score
		switch {
		case si == nil && sj != nil:
			return false
		case si != nil && sj == nil:
			return true
		case si != nil && *si != *sj:
			return *si > *sj
		}
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// ScoreArticle scores one article for the user.
func (s *Service) ScoreArticle(ctx context.Context, userID uuid.UUID, a *store.Article) (*scoring.ScoreResult, error) {
	weights, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.scorer.Score(a, weights)
}

func (s *Service) score(a *store.Article, weights scoring.WeightMap) Item {
	res, err := s.scorer.Score(a, weights)
	if err == nil {
		overall := res.Overall
		return Item{Article: a, Score: &overall, Personalized: true, Factors: res.PerFactor}
	}
	if !errors.Is(err, domain.ErrInvalidArticle) {
		s.logger.Error("unexpected scoring failure", "article_id", a.ID, "error", err)
	}

	item := Item{Article: a}
	if b := a.BaseImpactScore; b != nil && !math.IsNaN(*b) && !math.IsInf(*b, 0) {
		base := int(math.Round(math.Max(0, math.Min(100, *b))))
		item.Score = &base
	}
	return item
}
