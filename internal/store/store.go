package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Article struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Summary     string    `json:"summary,omitempty"`
	Category    string    `json:"category,omitempty"`
	Tags        []string  `json:"tags"`
	SourceURL   string    `json:"source_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`

	// Analyzer output. BaseImpactScore is nil until the article has been analyzed.
	BaseImpactScore *float64 `json:"base_impact_score,omitempty"`
	FinancialImpact float64  `json:"financial_impact"`
	CareerImpact    float64  `json:"career_impact"`
	PersonalImpact  float64  `json:"personal_impact"`

	// Embedding is only loaded by GetArticle. A nil embedding excludes the
	// article from vector search until it is re-embedded.
	Embedding      []float32  `json:"-"`
	LastEmbeddedAt *time.Time `json:"last_embedded_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasEmbedding reports whether the article carries a stored vector.
func (a *Article) HasEmbedding() bool {
	return len(a.Embedding) > 0
}

// EmbeddingText is the text the embedding gateway vectorizes for an article.
func (a *Article) EmbeddingText() string {
	if a.Content == "" {
		return a.Title
	}
	return a.Title + "\n\n" + a.Content
}

type ArticleFilter struct {
	Category string
	Since    *time.Time
	Limit    int
	Offset   int
}

// SimilarityQuery is the input of the vector-similarity primitive.
type SimilarityQuery struct {
	Vector    []float32
	Threshold float64
	Count     int
	Category  string
	MinScore  *float64
	ExcludeID uuid.UUID
}

// ScoredArticle is one row of a similarity search.
type ScoredArticle struct {
	Article    *Article
	Similarity float64
}

type Store interface {
	CreateArticle(ctx context.Context, a *Article) error
	GetArticle(ctx context.Context, id uuid.UUID) (*Article, error)
	ListArticles(ctx context.Context, filter ArticleFilter) ([]*Article, error)
	UpdateArticleEmbedding(ctx context.Context, id uuid.UUID, vector []float32, embeddedAt time.Time) error
	ListArticlesNeedingEmbedding(ctx context.Context, staleBefore time.Time, limit int) ([]*Article, error)

	SimilaritySearch(ctx context.Context, q SimilarityQuery) ([]ScoredArticle, error)
	LexicalSearch(ctx context.Context, query string, limit int) ([]*Article, error)

	GetPreferences(ctx context.Context, userID uuid.UUID) (*Preferences, error)
	SavePreferences(ctx context.Context, userID uuid.UUID, prefs *Preferences) error
	ListPreferences(ctx context.Context) ([]UserPreferences, error)

	GetSetting(ctx context.Context, key string) ([]byte, error)
	PutSetting(ctx context.Context, key string, value []byte) error

	Close() error
}

// NormalizeTags lowercases, trims and de-duplicates tags, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
