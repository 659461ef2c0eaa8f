//go:build integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func setupTestDB(t *testing.T) *PostgresStore {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := s.Migrate(ctx, 3); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, "TRUNCATE articles, user_preferences, settings")
		s.Close()
	})

	return s
}

func TestCreateAndGetArticle(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	base := 72.0
	a := &Article{
		Title:           "ETF inflows hit record",
		Content:         "Spot bitcoin ETF inflows...",
		Category:        "market",
		Tags:            []string{"ETF", "bitcoin"},
		BaseImpactScore: &base,
	}
	if err := s.CreateArticle(ctx, a); err != nil {
		t.Fatalf("CreateArticle failed: %v", err)
	}
	if a.ID == uuid.Nil {
		t.Fatal("expected id after create")
	}

	got, err := s.GetArticle(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetArticle failed: %v", err)
	}
	if got == nil || got.Title != a.Title {
		t.Fatalf("unexpected article: %+v", got)
	}
	if got.HasEmbedding() {
		t.Error("expected no embedding before UpdateArticleEmbedding")
	}
	if got.BaseImpactScore == nil || *got.BaseImpactScore != base {
		t.Errorf("expected base score %v, got %v", base, got.BaseImpactScore)
	}

	if err := s.UpdateArticleEmbedding(ctx, a.ID, []float32{1, 0, 0}, time.Now()); err != nil {
		t.Fatalf("UpdateArticleEmbedding failed: %v", err)
	}
	got, _ = s.GetArticle(ctx, a.ID)
	if len(got.Embedding) != 3 {
		t.Errorf("expected 3-dim embedding, got %d", len(got.Embedding))
	}

	missing, err := s.GetArticle(ctx, uuid.New())
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for missing article, got %v, %v", missing, err)
	}
}

func TestSimilarityAndLexicalSearch(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	near := &Article{Title: "Bitcoin halving", Content: "supply shock", PublishedAt: now}
	far := &Article{Title: "Ethereum upgrade", Content: "mentions bitcoin once", PublishedAt: now.Add(-time.Hour)}
	for _, a := range []*Article{near, far} {
		if err := s.CreateArticle(ctx, a); err != nil {
			t.Fatal(err)
		}
	}
	_ = s.UpdateArticleEmbedding(ctx, near.ID, []float32{1, 0, 0}, now)
	_ = s.UpdateArticleEmbedding(ctx, far.ID, []float32{0, 1, 0}, now)

	res, err := s.SimilaritySearch(ctx, SimilarityQuery{Vector: []float32{1, 0, 0}, Threshold: 0.5, Count: 10})
	if err != nil {
		t.Fatalf("SimilaritySearch failed: %v", err)
	}
	if len(res) != 1 || res[0].Article.ID != near.ID {
		t.Fatalf("expected only the near article, got %+v", res)
	}
	if res[0].Similarity < 0.99 {
		t.Errorf("expected similarity ~1, got %f", res[0].Similarity)
	}

	res, _ = s.SimilaritySearch(ctx, SimilarityQuery{Vector: []float32{1, 0, 0}, Threshold: 0.5, Count: 10, ExcludeID: near.ID})
	if len(res) != 0 {
		t.Errorf("expected excluded article to be absent, got %d rows", len(res))
	}

	lex, err := s.LexicalSearch(ctx, "BITCOIN", 5)
	if err != nil {
		t.Fatalf("LexicalSearch failed: %v", err)
	}
	if len(lex) != 2 || lex[0].ID != near.ID {
		t.Errorf("expected both articles newest first, got %d", len(lex))
	}

	lex, _ = s.LexicalSearch(ctx, "100%", 5)
	if len(lex) != 0 {
		t.Errorf("expected LIKE wildcards to be escaped, got %d rows", len(lex))
	}
}

func TestPreferencesAndSettingsRoundTrip(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	user := uuid.New()

	if p, err := s.GetPreferences(ctx, user); err != nil || p != nil {
		t.Fatalf("expected nil preferences, got %v, %v", p, err)
	}
	if err := s.SavePreferences(ctx, user, &Preferences{ImpactFactors: map[string]int{"portfolio_relevance": 33}}); err != nil {
		t.Fatal(err)
	}
	p, err := s.GetPreferences(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if p.ImpactFactors["portfolio_relevance"] != 33 {
		t.Errorf("expected 33, got %d", p.ImpactFactors["portfolio_relevance"])
	}

	if err := s.PutSetting(ctx, "user_segments", []byte(`[]`)); err != nil {
		t.Fatal(err)
	}
	v, err := s.GetSetting(ctx, "user_segments")
	if err != nil || string(v) != "[]" {
		t.Errorf("unexpected setting %q, %v", v, err)
	}
}
