package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float64Ptr(v float64) *float64 { return &v }

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Bitcoin", "ETF", "bitcoin", "", "etf ", "DeFi"})
	assert.Equal(t, []string{"bitcoin", "etf", "defi"}, got)
}

func TestArticleEmbeddingText(t *testing.T) {
	a := &Article{Title: "Title"}
	assert.Equal(t, "Title", a.EmbeddingText())
	a.Content = "Body"
	assert.Equal(t, "Title\n\nBody", a.EmbeddingText())
}

func TestDecodePreferences(t *testing.T) {
	t.Run("versioned", func(t *testing.T) {
		p, err := DecodePreferences([]byte(`{"version":1,"impact_factors":{"portfolio_relevance":40},"feedback":[{"article_id":"` + uuid.NewString() + `","rating":4}]}`))
		require.NoError(t, err)
		assert.Equal(t, 40, p.ImpactFactors["portfolio_relevance"])
		avg, ok := p.AverageRating()
		assert.True(t, ok)
		assert.Equal(t, 4.0, avg)
	})

	t.Run("legacy camelCase", func(t *testing.T) {
		p, err := DecodePreferences([]byte(`{"impactFactors":{"market_volatility":55.6},"aiRecommendations":{}}`))
		require.NoError(t, err)
		assert.Equal(t, 56, p.ImpactFactors["market_volatility"])
		assert.Equal(t, PreferencesVersion, p.Version)
	})

	t.Run("empty object", func(t *testing.T) {
		p, err := DecodePreferences([]byte(`{}`))
		require.NoError(t, err)
		assert.Nil(t, p.ImpactFactors)
		_, ok := p.AverageRating()
		assert.False(t, ok)
	})

	malformed := map[string]string{
		"not json":        `{"impact_factors":`,
		"wrong type":      `{"impact_factors":{"market_volatility":"high"}}`,
		"out of range":    `{"impact_factors":{"market_volatility":140}}`,
		"negative":        `{"impact_factors":{"market_volatility":-1}}`,
		"future version":  `{"version":7}`,
		"rating too high": `{"feedback":[{"rating":9}]}`,
	}
	for name, raw := range malformed {
		t.Run(name, func(t *testing.T) {
			_, err := DecodePreferences([]byte(raw))
			assert.True(t, errors.Is(err, ErrMalformedPreferences), "got %v", err)
		})
	}
}

func TestEncodePreferencesStampsVersion(t *testing.T) {
	raw, err := EncodePreferences(&Preferences{ImpactFactors: map[string]int{"trading_volume": 10}})
	require.NoError(t, err)
	p, err := DecodePreferences(raw)
	require.NoError(t, err)
	assert.Equal(t, PreferencesVersion, p.Version)
	assert.Equal(t, 10, p.ImpactFactors["trading_volume"])
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 1}))
}

func TestMemoryStoreSimilaritySearch(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Now().UTC()

	older := &Article{Title: "older twin", Category: "market", PublishedAt: now.Add(-time.Hour), BaseImpactScore: float64Ptr(40)}
	newer := &Article{Title: "newer twin", Category: "market", PublishedAt: now, BaseImpactScore: float64Ptr(90)}
	far := &Article{Title: "orthogonal", Category: "tech", PublishedAt: now, BaseImpactScore: float64Ptr(90)}
	missing := &Article{Title: "not embedded", PublishedAt: now}
	for _, a := range []*Article{older, newer, far, missing} {
		require.NoError(t, m.CreateArticle(ctx, a))
	}
	require.NoError(t, m.UpdateArticleEmbedding(ctx, older.ID, []float32{1, 0}, now))
	require.NoError(t, m.UpdateArticleEmbedding(ctx, newer.ID, []float32{2, 0}, now))
	require.NoError(t, m.UpdateArticleEmbedding(ctx, far.ID, []float32{0, 1}, now))

	res, err := m.SimilaritySearch(ctx, SimilarityQuery{Vector: []float32{1, 0}, Threshold: 0.5, Count: 10})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, newer.ID, res[0].Article.ID, "ties break on recency")
	assert.Equal(t, older.ID, res[1].Article.ID)
	assert.Nil(t, res[0].Article.Embedding, "search rows do not carry vectors")

	res, err = m.SimilaritySearch(ctx, SimilarityQuery{Vector: []float32{1, 0}, Threshold: 0.5, Count: 10, MinScore: float64Ptr(50)})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, newer.ID, res[0].Article.ID)

	res, err = m.SimilaritySearch(ctx, SimilarityQuery{Vector: []float32{1, 0}, Threshold: 0, Count: 10, Category: "tech"})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, far.ID, res[0].Article.ID)

	res, err = m.SimilaritySearch(ctx, SimilarityQuery{Vector: []float32{1, 0}, Threshold: 0.5, Count: 10, ExcludeID: newer.ID})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, older.ID, res[0].Article.ID)
}

func TestMemoryStoreLexicalSearch(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Now().UTC()
	require.NoError(t, m.CreateArticle(ctx, &Article{Title: "Bitcoin rallies", PublishedAt: now.Add(-2 * time.Hour)}))
	require.NoError(t, m.CreateArticle(ctx, &Article{Title: "Markets", Content: "BITCOIN and ether", PublishedAt: now}))
	require.NoError(t, m.CreateArticle(ctx, &Article{Title: "Solana", Content: "nothing here", PublishedAt: now}))

	res, err := m.LexicalSearch(ctx, "bitcoin", 5)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "Markets", res[0].Title)
	assert.Equal(t, "Bitcoin rallies", res[1].Title)

	res, err = m.LexicalSearch(ctx, "bitcoin", 1)
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

func TestMemoryStoreNeedingEmbedding(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Now().UTC()

	fresh := &Article{Title: "fresh"}
	stale := &Article{Title: "stale"}
	never := &Article{Title: "never"}
	for _, a := range []*Article{fresh, stale, never} {
		require.NoError(t, m.CreateArticle(ctx, a))
	}
	require.NoError(t, m.UpdateArticleEmbedding(ctx, fresh.ID, []float32{1}, now))
	require.NoError(t, m.UpdateArticleEmbedding(ctx, stale.ID, []float32{1}, now.Add(-60*24*time.Hour)))

	got, err := m.ListArticlesNeedingEmbedding(ctx, now.Add(-30*24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, never.ID, got[0].ID, "never-embedded articles come first")
	assert.Equal(t, stale.ID, got[1].ID)
}

func TestMemoryStorePreferencesAndSettings(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	user := uuid.New()

	p, err := m.GetPreferences(ctx, user)
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, m.SavePreferences(ctx, user, &Preferences{ImpactFactors: map[string]int{"industry_impact": 12}}))
	p, err = m.GetPreferences(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 12, p.ImpactFactors["industry_impact"])

	broken := uuid.New()
	m.PutRawPreferences(broken, []byte(`not json`))
	_, err = m.GetPreferences(ctx, broken)
	assert.ErrorIs(t, err, ErrMalformedPreferences)

	all, err := m.ListPreferences(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "malformed rows are skipped")

	v, err := m.GetSetting(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, v)
	require.NoError(t, m.PutSetting(ctx, "k", []byte(`{"a":1}`)))
	v, err = m.GetSetting(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(v))
}
