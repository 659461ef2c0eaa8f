package segments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Pulse/internal/hermes"
	"github.com/MikeSquared-Agency/Pulse/internal/metrics"
	"github.com/MikeSquared-Agency/Pulse/internal/scoring"
	"github.com/MikeSquared-Agency/Pulse/internal/store"
)

const (
	SettingSegments     = "user_segments"
	SettingLastComputed = "user_segments_last_computed"

	FocusBalanced = "balanced"

	SatisfactionHigh   = "high"
	SatisfactionMedium = "medium"
	SatisfactionLow    = "low"

	topFactorCount = 5
)

// Segment groups users with the same preference focus and satisfaction level.
type Segment struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Focus         string         `json:"focus"`
	Satisfaction  string         `json:"satisfaction"`
	UserIDs       []uuid.UUID    `json:"user_ids"`
	UserCount     int            `json:"user_count"`
	AverageRating float64        `json:"average_rating"`
	TopFactors    []FactorWeight `json:"top_factors"`
}

// FactorWeight is one factor's average weight across a segment. TopFactors
// lists them highest first.
type FactorWeight struct {
	FactorID  string  `json:"factor_id"`
	AvgWeight float64 `json:"avg_weight"`
}

type Store interface {
	ListPreferences(ctx context.Context) ([]store.UserPreferences, error)
	GetSetting(ctx context.Context, key string) ([]byte, error)
	PutSetting(ctx context.Context, key string, value []byte) error
}

type Config struct {
	TTL             time.Duration
	DominanceMargin float64
	HighRating      float64
	MediumRating    float64
}

func DefaultConfig() Config {
	return Config{TTL: 24 * time.Hour, DominanceMargin: 15, HighRating: 4, MediumRating: 3}
}

// Analyzer clusters users by preference focus and stores the result in the
// settings table.
type Analyzer struct {
	store  Store
	hermes hermes.Client
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func NewAnalyzer(s Store, h hermes.Client, cfg Config, logger *slog.Logger) *Analyzer {
	if h == nil {
		h = hermes.NopClient{}
	}
	return &Analyzer{store: s, hermes: h, cfg: cfg, logger: logger, now: time.Now}
}

// GetSegments returns the cached segments when younger than the TTL and
// recomputes otherwise.
func (a *Analyzer) GetSegments(ctx context.Context) ([]Segment, error) {
	cached, ok, err := a.cached(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return cached, nil
	}
	return a.IdentifySegments(ctx)
}

// LastComputed returns when segments were last written, or the zero time.
func (a *Analyzer) LastComputed(ctx context.Context) (time.Time, error) {
	raw, err := a.store.GetSetting(ctx, SettingLastComputed)
	if err != nil {
		return time.Time{}, fmt.Errorf("reading %s: %w", SettingLastComputed, err)
	}
	if raw == nil {
		return time.Time{}, nil
	}
	var at time.Time
	if err := json.Unmarshal(raw, &at); err != nil {
		a.logger.Warn("ignoring unreadable segment timestamp", "error", err)
		return time.Time{}, nil
	}
	return at, nil
}

func (a *Analyzer) cached(ctx context.Context) ([]Segment, bool, error) {
	at, err := a.LastComputed(ctx)
	if err != nil {
		return nil, false, err
	}
	if at.IsZero() || a.now().Sub(at) >= a.cfg.TTL {
		return nil, false, nil
	}
	raw, err := a.store.GetSetting(ctx, SettingSegments)
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", SettingSegments, err)
	}
	if raw == nil {
		return nil, false, nil
	}
	var segs []Segment
	if err := json.Unmarshal(raw, &segs); err != nil {
		a.logger.Warn("recomputing segments after unreadable cache", "error", err)
		return nil, false, nil
	}
	return segs, true, nil
}

// IdentifySegments recomputes segments from every user with at least one
// feedback rating and overwrites the cache.
func (a *Analyzer) IdentifySegments(ctx context.Context) ([]Segment, error) {
	prefs, err := a.store.ListPreferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing preferences: %w", err)
	}

	segs := a.cluster(prefs)

	payload, err := json.Marshal(segs)
	if err != nil {
		return nil, fmt.Errorf("encoding segments: %w", err)
	}
	computedAt := a.now().UTC()
	stamp, _ := json.Marshal(computedAt)
	if err := a.store.PutSetting(ctx, SettingSegments, payload); err != nil {
		return nil, fmt.Errorf("writing %s: %w", SettingSegments, err)
	}
	if err := a.store.PutSetting(ctx, SettingLastComputed, stamp); err != nil {
		return nil, fmt.Errorf("writing %s: %w", SettingLastComputed, err)
	}

	users := 0
	metrics.SegmentUsers.Reset()
	for _, s := range segs {
		users += s.UserCount
		metrics.SegmentUsers.WithLabelValues(s.ID).Set(float64(s.UserCount))
	}
	a.logger.Info("segments computed", "segments", len(segs), "users", users)
	if err := a.hermes.Publish(hermes.SubjectSegmentsComputed, hermes.SegmentsComputedEvent{
		Segments: len(segs), Users: users, ComputedAt: computedAt,
	}); err != nil {
		a.logger.Warn("failed to publish segments event", "error", err)
	}

	// Round-trip so callers see exactly what GetSegments will later return.
	var out []Segment
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decoding segments: %w", err)
	}
	return out, nil
}

type member struct {
	id      uuid.UUID
	weights scoring.WeightMap
	rating  float64
}

func (a *Analyzer) cluster(prefs []store.UserPreferences) []Segment {
	groups := map[string][]member{}
	for _, up := range prefs {
		rating, ok := up.Preferences.AverageRating()
		if !ok {
			continue
		}
		weights := scoring.DefaultWeights().Merge(up.Preferences.ImpactFactors)
		focus := a.focus(weights)
		sat := a.satisfaction(rating)
		id := focus + "-" + sat
		groups[id] = append(groups[id], member{id: up.UserID, weights: weights, rating: rating})
	}

	segs := make([]Segment, 0, len(groups))
	for id, members := range groups {
		segs = append(segs, aggregate(id, members))
	}
	sort.Slice(segs, func(i, j int) bool {
		if segs[i].UserCount != segs[j].UserCount {
			return segs[i].UserCount > segs[j].UserCount
		}
		return segs[i].ID < segs[j].ID
	})
	return segs
}

// focus returns the category whose average weight beats both others by more
// than the dominance margin, or FocusBalanced.
func (a *Analyzer) focus(w scoring.WeightMap) string {
	cats := scoring.Categories()
	avg := make(map[scoring.Category]float64, len(cats))
	for _, cat := range cats {
		factors := scoring.ListByCategory(cat)
		var sum float64
		for _, f := range factors {
			sum += float64(w.Get(f.ID))
		}
		avg[cat] = sum / float64(len(factors))
	}
	for _, cat := range cats {
		dominant := true
		for _, other := range cats {
			if other != cat && avg[cat]-avg[other] <= a.cfg.DominanceMargin {
				dominant = false
				break
			}
		}
		if dominant {
			return string(cat)
		}
	}
	return FocusBalanced
}

func (a *Analyzer) satisfaction(rating float64) string {
	switch {
	case rating >= a.cfg.HighRating:
		return SatisfactionHigh
	case rating >= a.cfg.MediumRating:
		return SatisfactionMedium
	default:
		return SatisfactionLow
	}
}

func aggregate(id string, members []member) Segment {
	sort.Slice(members, func(i, j int) bool { return members[i].id.String() < members[j].id.String() })

	seg := Segment{ID: id, UserCount: len(members), UserIDs: make([]uuid.UUID, 0, len(members))}
	seg.Focus, seg.Satisfaction, _ = strings.Cut(id, "-")
	seg.Name, seg.Description = describe(seg.Focus, seg.Satisfaction)

	sums := map[string]float64{}
	var ratingSum float64
	for _, m := range members {
		seg.UserIDs = append(seg.UserIDs, m.id)
		ratingSum += m.rating
		for fid, v := range m.weights {
			sums[fid] += float64(v)
		}
	}
	seg.AverageRating = round2(ratingSum / float64(len(members)))

	avgs := make([]FactorWeight, 0, len(sums))
	for fid, sum := range sums {
		avgs = append(avgs, FactorWeight{FactorID: fid, AvgWeight: round2(sum / float64(len(members)))})
	}
	sort.Slice(avgs, func(i, j int) bool {
		if avgs[i].AvgWeight != avgs[j].AvgWeight {
			return avgs[i].AvgWeight > avgs[j].AvgWeight
		}
		return avgs[i].FactorID < avgs[j].FactorID
	})
	if len(avgs) > topFactorCount {
		avgs = avgs[:topFactorCount]
	}
	seg.TopFactors = avgs
	return seg
}

var satisfactionLabels = map[string][2]string{
	SatisfactionHigh:   {"highly satisfied", "rate articles highly"},
	SatisfactionMedium: {"moderately satisfied", "give mid-range ratings"},
	SatisfactionLow:    {"less satisfied", "rate articles poorly"},
}

// describe builds the display name and description of a segment, e.g.
// "Market-focused, highly satisfied".
func describe(focus, satisfaction string) (name, description string) {
	sat := satisfactionLabels[satisfaction]
	if focus == FocusBalanced {
		return "Balanced, " + sat[0],
			fmt.Sprintf("Readers with no dominant factor category who %s.", sat[1])
	}
	return strings.ToUpper(focus[:1]) + focus[1:] + "-focused, " + sat[0],
		fmt.Sprintf("Readers who weight %s factors above the other categories and %s.", focus, sat[1])
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
