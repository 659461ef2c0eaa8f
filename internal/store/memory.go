package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used for local development and tests.
// Similarity search is a brute-force cosine scan.
type MemoryStore struct {
	mu       sync.RWMutex
	articles map[uuid.UUID]*Article
	prefs    map[uuid.UUID][]byte
	settings map[string][]byte
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		articles: make(map[uuid.UUID]*Article),
		prefs:    make(map[uuid.UUID][]byte),
		settings: make(map[string][]byte),
		now:      time.Now,
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreateArticle(_ context.Context, a *Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if _, exists := m.articles[a.ID]; exists {
		return fmt.Errorf("article %s already exists", a.ID)
	}
	now := m.now().UTC()
	if a.PublishedAt.IsZero() {
		a.PublishedAt = now
	}
	a.Tags = NormalizeTags(a.Tags)
	a.CreatedAt = now
	a.UpdatedAt = now
	m.articles[a.ID] = copyArticle(a, true)
	return nil
}

func (m *MemoryStore) GetArticle(_ context.Context, id uuid.UUID) (*Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.articles[id]
	if !ok {
		return nil, nil
	}
	return copyArticle(a, true), nil
}

func (m *MemoryStore) ListArticles(_ context.Context, filter ArticleFilter) ([]*Article, error) {
	m.mu.RLock()
	var out []*Article
	for _, a := range m.articles {
		if filter.Category != "" && a.Category != filter.Category {
			continue
		}
		if filter.Since != nil && a.PublishedAt.Before(*filter.Since) {
			continue
		}
		out = append(out, copyArticle(a, false))
	}
	m.mu.RUnlock()

	sortByRecency(out)
	return page(out, filter.Offset, defaultLimit(filter.Limit)), nil
}

func (m *MemoryStore) UpdateArticleEmbedding(_ context.Context, id uuid.UUID, vector []float32, embeddedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[id]
	if !ok {
		return fmt.Errorf("update embedding: article %s not found", id)
	}
	a.Embedding = append([]float32(nil), vector...)
	t := embeddedAt
	a.LastEmbeddedAt = &t
	a.UpdatedAt = m.now().UTC()
	return nil
}

func (m *MemoryStore) ListArticlesNeedingEmbedding(_ context.Context, staleBefore time.Time, limit int) ([]*Article, error) {
	m.mu.RLock()
	var out []*Article
	for _, a := range m.articles {
		if len(a.Embedding) == 0 || a.LastEmbeddedAt == nil || a.LastEmbeddedAt.Before(staleBefore) {
			out = append(out, copyArticle(a, false))
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		li, lj := out[i].LastEmbeddedAt, out[j].LastEmbeddedAt
		switch {
		case li == nil && lj != nil:
			return true
		case li != nil && lj == nil:
			return false
		case li != nil && lj != nil && !li.Equal(*lj):
			return li.Before(*lj)
		}
		return newerFirst(out[i], out[j])
	})
	return page(out, 0, defaultLimit(limit)), nil
}

func (m *MemoryStore) SimilaritySearch(_ context.Context, q SimilarityQuery) ([]ScoredArticle, error) {
	m.mu.RLock()
	var out []ScoredArticle
	for _, a := range m.articles {
		if len(a.Embedding) == 0 || a.ID == q.ExcludeID {
			continue
		}
		if q.Category != "" && a.Category != q.Category {
			continue
		}
		if q.MinScore != nil && (a.BaseImpactScore == nil || *a.BaseImpactScore < *q.MinScore) {
			continue
		}
		sim := CosineSimilarity(q.Vector, a.Embedding)
		if sim < q.Threshold {
			continue
		}
		out = append(out, ScoredArticle{Article: copyArticle(a, false), Similarity: sim})
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return newerFirst(out[i].Article, out[j].Article)
	})
	if q.Count > 0 && len(out) > q.Count {
		out = out[:q.Count]
	}
	return out, nil
}

func (m *MemoryStore) LexicalSearch(_ context.Context, query string, limit int) ([]*Article, error) {
	needle := strings.ToLower(query)
	m.mu.RLock()
	var out []*Article
	for _, a := range m.articles {
		if strings.Contains(strings.ToLower(a.Title), needle) || strings.Contains(strings.ToLower(a.Content), needle) {
			out = append(out, copyArticle(a, false))
		}
	}
	m.mu.RUnlock()

	sortByRecency(out)
	return page(out, 0, defaultLimit(limit)), nil
}

func (m *MemoryStore) GetPreferences(_ context.Context, userID uuid.UUID) (*Preferences, error) {
	m.mu.RLock()
	raw, ok := m.prefs[userID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return DecodePreferences(raw)
}

func (m *MemoryStore) SavePreferences(_ context.Context, userID uuid.UUID, prefs *Preferences) error {
	raw, err := EncodePreferences(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	m.mu.Lock()
	m.prefs[userID] = raw
	m.mu.Unlock()
	return nil
}

// PutRawPreferences stores an unvalidated blob, as a legacy writer would.
func (m *MemoryStore) PutRawPreferences(userID uuid.UUID, raw []byte) {
	m.mu.Lock()
	m.prefs[userID] = append([]byte(nil), raw...)
	m.mu.Unlock()
}

func (m *MemoryStore) ListPreferences(_ context.Context) ([]UserPreferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]UserPreferences, 0, len(m.prefs))
	for id, raw := range m.prefs {
		p, err := DecodePreferences(raw)
		if err != nil {
			continue
		}
		out = append(out, UserPreferences{UserID: id, Preferences: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID.String() < out[j].UserID.String() })
	return out, nil
}

func (m *MemoryStore) GetSetting(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.settings[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) PutSetting(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	m.settings[key] = append([]byte(nil), value...)
	m.mu.Unlock()
	return nil
}

// CosineSimilarity returns 0 for mismatched lengths or zero-norm vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func copyArticle(a *Article, withEmbedding bool) *Article {
	c := *a
	c.Tags = append([]string{}, a.Tags...)
	if a.BaseImpactScore != nil {
		v := *a.BaseImpactScore
		c.BaseImpactScore = &v
	}
	if a.LastEmbeddedAt != nil {
		t := *a.LastEmbeddedAt
		c.LastEmbeddedAt = &t
	}
	c.Embedding = nil
	if withEmbedding && len(a.Embedding) > 0 {
		c.Embedding = append([]float32(nil), a.Embedding...)
	}
	return &c
}

func newerFirst(a, b *Article) bool {
	if !a.PublishedAt.Equal(b.PublishedAt) {
		return a.PublishedAt.After(b.PublishedAt)
	}
	return a.ID.String() < b.ID.String()
}

func sortByRecency(articles []*Article) {
	sort.Slice(articles, func(i, j int) bool { return newerFirst(articles[i], articles[j]) })
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

func page(articles []*Article, offset, limit int) []*Article {
	if offset >= len(articles) {
		return nil
	}
	articles = articles[offset:]
	if len(articles) > limit {
		articles = articles[:limit]
	}
	return articles
}
