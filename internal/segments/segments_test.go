package segments

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Pulse/internal/hermes"
	"github.com/MikeSquared-Agency/Pulse/internal/scoring"
	"github.com/MikeSquared-Agency/Pulse/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func savePrefs(t *testing.T, s *store.MemoryStore, weights map[string]int, ratings ...int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	p := &store.Preferences{ImpactFactors: weights}
	for _, r := range ratings {
		p.Feedback = append(p.Feedback, store.FeedbackRecord{ArticleID: uuid.New(), Rating: r})
	}
	require.NoError(t, s.SavePreferences(context.Background(), id, p))
	return id
}

func marketHeavy() map[string]int {
	return map[string]int{
		"market_volatility": 100, "trading_volume": 100, "regulatory_news": 100,
		"technology_updates": 40, "security_incidents": 40, "adoption_metrics": 40,
		"portfolio_relevance": 50, "industry_impact": 50, "geographic_relevance": 50,
	}
}

func newAnalyzer(s *store.MemoryStore, h hermes.Client) (*Analyzer, *clock) {
	c := &clock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	a := NewAnalyzer(s, h, DefaultConfig(), discardLogger())
	a.now = c.now
	return a, c
}

func TestIdentifySegments(t *testing.T) {
	ms := store.NewMemoryStore()
	m1 := savePrefs(t, ms, marketHeavy(), 5, 4)
	m2 := savePrefs(t, ms, marketHeavy(), 4)
	b1 := savePrefs(t, ms, nil, 2)
	savePrefs(t, ms, marketHeavy()) // no feedback: excluded

	rec := &hermes.Recorder{}
	a, _ := newAnalyzer(ms, rec)
	segs, err := a.IdentifySegments(context.Background())
	require.NoError(t, err)
	require.Len(t, segs, 2)

	market := segs[0]
	assert.Equal(t, "market-high", market.ID)
	assert.Equal(t, "market", market.Focus)
	assert.Equal(t, SatisfactionHigh, market.Satisfaction)
	assert.Equal(t, 2, market.UserCount)
	assert.ElementsMatch(t, []uuid.UUID{m1, m2}, market.UserIDs)
	assert.InDelta(t, 4.25, market.AverageRating, 1e-9)
	assert.Equal(t, "Market-focused, highly satisfied", market.Name)
	assert.Equal(t, "Readers who weight market factors above the other categories and rate articles highly.", market.Description)
	assert.Equal(t, []FactorWeight{
		{FactorID: "market_volatility", AvgWeight: 100},
		{FactorID: "regulatory_news", AvgWeight: 100},
		{FactorID: "trading_volume", AvgWeight: 100},
		{FactorID: "geographic_relevance", AvgWeight: 50},
		{FactorID: "industry_impact", AvgWeight: 50},
	}, market.TopFactors)

	balanced := segs[1]
	assert.Equal(t, "balanced-low", balanced.ID)
	assert.Equal(t, []uuid.UUID{b1}, balanced.UserIDs)
	assert.Equal(t, "Balanced, less satisfied", balanced.Name)
	require.Len(t, balanced.TopFactors, 5)
	assert.Equal(t, FactorWeight{FactorID: "portfolio_relevance", AvgWeight: 90}, balanced.TopFactors[0])

	assert.Equal(t, []string{hermes.SubjectSegmentsComputed}, rec.Subjects())
}

func TestSatisfactionBuckets(t *testing.T) {
	a := NewAnalyzer(store.NewMemoryStore(), nil, DefaultConfig(), discardLogger())
	assert.Equal(t, SatisfactionHigh, a.satisfaction(4))
	assert.Equal(t, SatisfactionMedium, a.satisfaction(3.99))
	assert.Equal(t, SatisfactionMedium, a.satisfaction(3))
	assert.Equal(t, SatisfactionLow, a.satisfaction(2.99))
}

func TestFocusNeedsMarginOverBothOthers(t *testing.T) {
	a := NewAnalyzer(store.NewMemoryStore(), nil, DefaultConfig(), discardLogger())
	assert.Equal(t, FocusBalanced, a.focus(scoring.DefaultWeights()))
	assert.Equal(t, "market", a.focus(marketHeavy()))

	// Technical beats personal by 15 exactly: not dominant.
	w := scoring.WeightMap{
		"market_volatility": 0, "trading_volume": 0, "regulatory_news": 0,
		"technology_updates": 65, "security_incidents": 65, "adoption_metrics": 65,
		"portfolio_relevance": 50, "industry_impact": 50, "geographic_relevance": 50,
	}
	assert.Equal(t, FocusBalanced, a.focus(w))
	w["security_incidents"] = 67
	assert.Equal(t, "technical", a.focus(w))
}

func TestGetSegmentsCacheFreshness(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	savePrefs(t, ms, marketHeavy(), 5)

	a, c := newAnalyzer(ms, &hermes.Recorder{})
	first, err := a.GetSegments(ctx)
	require.NoError(t, err)
	firstJSON, _ := json.Marshal(first)

	// New data inside the TTL is not visible.
	savePrefs(t, ms, nil, 1)
	c.advance(23 * time.Hour)
	second, err := a.GetSegments(ctx)
	require.NoError(t, err)
	secondJSON, _ := json.Marshal(second)
	assert.Equal(t, string(firstJSON), string(secondJSON))

	c.advance(2 * time.Hour)
	third, err := a.GetSegments(ctx)
	require.NoError(t, err)
	assert.Len(t, third, 2)

	at, err := a.LastComputed(ctx)
	require.NoError(t, err)
	assert.True(t, at.Equal(c.t))
}

func TestGetSegmentsRecomputesCorruptCache(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	savePrefs(t, ms, marketHeavy(), 5)

	a, _ := newAnalyzer(ms, nil)
	_, err := a.IdentifySegments(ctx)
	require.NoError(t, err)
	require.NoError(t, ms.PutSetting(ctx, SettingSegments, []byte("{broken")))

	segs, err := a.GetSegments(ctx)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "market-high", segs[0].ID)
}

func TestIdentifySegmentsDeterministic(t *testing.T) {
	ms := store.NewMemoryStore()
	for i := 0; i < 10; i++ {
		savePrefs(t, ms, marketHeavy(), 1+i%5)
		savePrefs(t, ms, nil, 1+i%5)
	}
	a, _ := newAnalyzer(ms, nil)
	first, err := a.IdentifySegments(context.Background())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := a.IdentifySegments(context.Background())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestDescribe(t *testing.T) {
	name, desc := describe("technical", SatisfactionMedium)
	assert.Equal(t, "Technical-focused, moderately satisfied", name)
	assert.Contains(t, desc, "technical factors")

	name, _ = describe(FocusBalanced, SatisfactionHigh)
	assert.Equal(t, "Balanced, highly satisfied", name)
}
