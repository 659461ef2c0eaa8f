package scoring

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/MikeSquared-Agency/Pulse/internal/domain"
	"github.com/MikeSquared-Agency/Pulse/internal/store"
)

// ScoreResult is the personalized impact score for one article.
type ScoreResult struct {
	Overall   int                `json:"overall"`
	PerFactor map[string]float64 `json:"per_factor"`
	Factors   []FactorResult     `json:"factors"`
}

// Scorer computes weighted impact scores.
type Scorer struct {
	logger *slog.Logger
}

func NewScorer(logger *slog.Logger) *Scorer {
	return &Scorer{logger: logger}
}

// Score derives every factor sub-score from the article and combines them with
// weights. A nil weight map scores with the registry defaults.
func (s *Scorer) Score(a *store.Article, weights WeightMap) (*ScoreResult, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil article", domain.ErrInvalidArticle)
	}
	if !validBase(a.BaseImpactScore) {
		return nil, fmt.Errorf("%w: article %s has no usable base impact score", domain.ErrInvalidArticle, a.ID)
	}
	if weights == nil {
		weights = DefaultWeights()
	}

	base := *a.BaseImpactScore
	text := newArticleText(a)

	result := &ScoreResult{
		PerFactor: make(map[string]float64, len(registry)),
		Factors:   make([]FactorResult, 0, len(registry)),
	}

	var weighted, totalWeight, plain float64
	for _, f := range registry {
		fr := factorScore(f, base, text)
		fr.Weight = weights.Get(f.ID)
		fr.Weighted = fr.Score * float64(fr.Weight)

		weighted += fr.Weighted
		totalWeight += float64(fr.Weight)
		plain += fr.Score

		result.PerFactor[f.ID] = fr.Score
		result.Factors = append(result.Factors, fr)
	}

	// All-zero weights degrade to the unweighted mean.
	var overall float64
	if totalWeight == 0 {
		overall = plain / float64(len(registry))
	} else {
		overall = weighted / totalWeight
	}
	result.Overall = int(clamp(math.Round(overall), 0, 100))

	if s.logger != nil {
		s.logger.Debug("article scored", "article_id", a.ID, "overall", result.Overall, "base", base)
	}
	return result, nil
}
