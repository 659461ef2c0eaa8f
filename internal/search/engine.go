package search

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Pulse/internal/domain"
	"github.com/MikeSquared-Agency/Pulse/internal/store"
)

const (
	DefaultThreshold        = 0.5
	DefaultSimilarThreshold = 0.6
	DefaultCount            = 10
)

// Result is an article annotated with its cosine similarity. Similarity is
// nil for lexical matches.
type Result struct {
	*store.Article
	Similarity *float64 `json:"similarity,omitempty"`
}

// Options control a vector search. A nil Threshold means DefaultThreshold
// and a zero Count means DefaultCount, so Options{} behaves like
// DefaultOptions().
type Options struct {
	Threshold *float64
	Count     int
	Category  string
	MinScore  *float64
	ExcludeID uuid.UUID
}

// DefaultOptions returns threshold 0.5 and count 10.
func DefaultOptions() Options {
	t := DefaultThreshold
	return Options{Threshold: &t, Count: DefaultCount}
}

// VectorStore is the subset of store.Store the engine needs.
type VectorStore interface {
	GetArticle(ctx context.Context, id uuid.UUID) (*store.Article, error)
	SimilaritySearch(ctx context.Context, q store.SimilarityQuery) ([]store.ScoredArticle, error)
}

// Engine runs similarity queries and enforces the result contract itself:
// similarity >= threshold, excluded ids absent, at most Count results,
// ordered by similarity then recency.
type Engine struct {
	store            VectorStore
	similarThreshold float64
}

func NewEngine(s VectorStore, similarThreshold float64) *Engine {
	return &Engine{store: s, similarThreshold: similarThreshold}
}

func (e *Engine) Search(ctx context.Context, vector []float32, opts Options) ([]Result, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", domain.ErrInvalidQuery)
	}
	threshold := DefaultThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold %v outside [0,1]", domain.ErrInvalidQuery, threshold)
	}
	if opts.Count <= 0 {
		opts.Count = DefaultCount
	}

	rows, err := e.store.SimilaritySearch(ctx, store.SimilarityQuery{
		Vector:    vector,
		Threshold: threshold,
		Count:     opts.Count,
		Category:  opts.Category,
		MinScore:  opts.MinScore,
		ExcludeID: opts.ExcludeID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchFailed, err)
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		if row.Article == nil || (opts.ExcludeID != uuid.Nil && row.Article.ID == opts.ExcludeID) {
			continue
		}
		sim := clampSimilarity(row.Similarity)
		if sim < threshold {
			continue
		}
		results = append(results, Result{Article: row.Article, Similarity: &sim})
	}

	sort.SliceStable(results, func(i, j int) bool {
		si, sj := *results[i].Similarity, *results[j].Similarity
		if si != sj {
			return si > sj
		}
		return results[i].PublishedAt.After(results[j].PublishedAt)
	})
	if len(results) > opts.Count {
		results = results[:opts.Count]
	}
	return results, nil
}

// FindSimilar searches with the stored vector of articleID, never returning
// the article itself.
func (e *Engine) FindSimilar(ctx context.Context, articleID uuid.UUID, count int) ([]Result, error) {
	a, err := e.store.GetArticle(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchFailed, err)
	}
	if a == nil {
		return nil, domain.ErrArticleNotFound
	}
	if !a.HasEmbedding() {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoEmbedding, articleID)
	}
	threshold := e.similarThreshold
	return e.Search(ctx, a.Embedding, Options{
		Threshold: &threshold,
		Count:     count,
		ExcludeID: articleID,
	})
}

func clampSimilarity(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
