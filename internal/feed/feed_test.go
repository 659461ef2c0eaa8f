package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Pulse/internal/domain"
	"github.com/MikeSquared-Agency/Pulse/internal/scoring"
	"github.com/MikeSquared-Agency/Pulse/internal/store"
)

var epoch = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func float64Ptr(v float64) *float64 { return &v }

func seed(t *testing.T, s *store.MemoryStore, title string, base *float64, age time.Duration) *store.Article {
	t.Helper()
	a := &store.Article{Title: title, BaseImpactScore: base, PublishedAt: epoch.Add(-age), Category: "markets"}
	require.NoError(t, s.CreateArticle(context.Background(), a))
	return a
}

func newService(ms *store.MemoryStore) *Service {
	return NewService(ms, scoring.NewResolver(ms, discardLogger()), scoring.NewScorer(discardLogger()), discardLogger())
}

func TestFeedRanksByPersonalizedScore(t *testing.T) {
	ms := store.NewMemoryStore()
	low := seed(t, ms, "Quarterly note", float64Ptr(20), 0)
	high := seed(t, ms, "Quarterly review", float64Ptr(90), 3*time.Hour)
	tieOld := seed(t, ms, "Weekly note", float64Ptr(60), 2*time.Hour)
	tieNew := seed(t, ms, "Daily note", float64Ptr(60), time.Hour)

	items, err := newService(ms).Feed(context.Background(), uuid.New(), Options{})
	require.NoError(t, err)
	require.Len(t, items, 4)

	assert.Equal(t, high.ID, items[0].ID)
	assert.Equal(t, tieNew.ID, items[1].ID)
	assert.Equal(t, tieOld.ID, items[2].ID)
	assert.Equal(t, low.ID, items[3].ID)
	for _, it := range items {
		assert.True(t, it.Personalized)
		assert.Len(t, it.Factors, 9)
	}
}

func TestFeedKeepsUnscorableArticles(t *testing.T) {
	ms := store.NewMemoryStore()
	seed(t, ms, "Quarterly note", float64Ptr(50), 0)
	unanalyzed := seed(t, ms, "Fresh", nil, 0)
	broken := seed(t, ms, "Broken", float64Ptr(math.NaN()), 0)
	outOfRange := seed(t, ms, "Overflow", float64Ptr(140), time.Hour)

	items, err := newService(ms).Feed(context.Background(), uuid.New(), Options{})
	require.NoError(t, err)
	require.Len(t, items, 4)

	byID := map[uuid.UUID]Item{}
	for _, it := range items {
		byID[it.ID] = it
	}
	assert.False(t, byID[unanalyzed.ID].Personalized)
	assert.Nil(t, byID[unanalyzed.ID].Score)
	assert.Nil(t, byID[broken.ID].Score)
	require.NotNil(t, byID[outOfRange.ID].Score)
	assert.Equal(t, 100, *byID[outOfRange.ID].Score)
	assert.False(t, byID[outOfRange.ID].Personalized)

	// Scoreless items sort last.
	assert.Nil(t, items[2].Score)
	assert.Nil(t, items[3].Score)
}

func TestFeedUsesUserWeights(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	hack := seed(t, ms, "Exchange hack", float64Ptr(50), time.Hour)
	seed(t, ms, "Bitcoin price", float64Ptr(52), 0)

	user := uuid.New()
	r := scoring.NewResolver(ms, discardLogger())
	w := scoring.WeightMap{}
	for _, f := range scoring.ListFactors() {
		w[f.ID] = 0
	}
	w["security_incidents"] = 100
	require.NoError(t, r.Save(ctx, user, w))

	items, err := newService(ms).Feed(ctx, user, Options{})
	require.NoError(t, err)
	assert.Equal(t, hack.ID, items[0].ID)
}

func TestFeedLimitAndCategory(t *testing.T) {
	ms := store.NewMemoryStore()
	for i := 0; i < 30; i++ {
		seed(t, ms, "note", float64Ptr(float64(i)), time.Duration(i)*time.Minute)
	}
	require.NoError(t, ms.CreateArticle(context.Background(), &store.Article{Title: "other", Category: "policy", BaseImpactScore: float64Ptr(99)}))

	svc := newService(ms)
	items, err := svc.Feed(context.Background(), uuid.New(), Options{})
	require.NoError(t, err)
	assert.Len(t, items, DefaultLimit)

	items, err = svc.Feed(context.Background(), uuid.New(), Options{Limit: 3, Category: "policy"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "other", items[0].Title)
}

func TestFeedRequiresUser(t *testing.T) {
	_, err := newService(store.NewMemoryStore()).Feed(context.Background(), uuid.Nil, Options{})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

type failingLister struct{}

func (failingLister) ListArticles(context.Context, store.ArticleFilter) ([]*store.Article, error) {
	return nil, errors.New("db down")
}

func TestFeedStoreErrorPropagates(t *testing.T) {
	ms := store.NewMemoryStore()
	svc := NewService(failingLister{}, scoring.NewResolver(ms, discardLogger()), scoring.NewScorer(discardLogger()), discardLogger())
	_, err := svc.Feed(context.Background(), uuid.New(), Options{})
	assert.Error(t, err)
}

func TestScoreArticle(t *testing.T) {
	ms := store.NewMemoryStore()
	a := seed(t, ms, "Quarterly note", float64Ptr(80), 0)
	res, err := newService(ms).ScoreArticle(context.Background(), uuid.New(), a)
	require.NoError(t, err)
	assert.Equal(t, 78, res.Overall)
}
