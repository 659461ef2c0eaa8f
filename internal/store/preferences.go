package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// PreferencesVersion is the schema version written by EncodePreferences.
const PreferencesVersion = 1

// ErrMalformedPreferences signals a stored preferences blob that cannot be parsed.
var ErrMalformedPreferences = errors.New("malformed preferences")

type FeedbackRecord struct {
	ArticleID uuid.UUID `json:"article_id"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

// Preferences is the typed form of the per-user preferences blob.
type Preferences struct {
	Version       int              `json:"version"`
	ImpactFactors map[string]int   `json:"impact_factors,omitempty"`
	Feedback      []FeedbackRecord `json:"feedback,omitempty"`
}

type UserPreferences struct {
	UserID      uuid.UUID
	Preferences *Preferences
}

// AverageRating returns the mean feedback rating and whether any feedback exists.
func (p *Preferences) AverageRating() (float64, bool) {
	if p == nil || len(p.Feedback) == 0 {
		return 0, false
	}
	var sum int
	for _, f := range p.Feedback {
		sum += f.Rating
	}
	return float64(sum) / float64(len(p.Feedback)), true
}

// wirePreferences accepts both the versioned layout and the legacy
// camelCase layout ({"impactFactors": {...}}).
type wirePreferences struct {
	Version             int                `json:"version"`
	ImpactFactors       map[string]float64 `json:"impact_factors"`
	LegacyImpactFactors map[string]float64 `json:"impactFactors"`
	Feedback            []FeedbackRecord   `json:"feedback"`
}

// DecodePreferences parses a stored blob. Weights must be finite and within
// [0,100]; ratings must be within 1..5.
func DecodePreferences(raw []byte) (*Preferences, error) {
	var w wirePreferences
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPreferences, err)
	}
	if w.Version > PreferencesVersion || w.Version < 0 {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedPreferences, w.Version)
	}

	weights := w.ImpactFactors
	if weights == nil {
		weights = w.LegacyImpactFactors
	}

	p := &Preferences{Version: PreferencesVersion}
	if weights != nil {
		p.ImpactFactors = make(map[string]int, len(weights))
		for id, v := range weights {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 100 {
				return nil, fmt.Errorf("%w: weight %s=%v out of range", ErrMalformedPreferences, id, v)
			}
			p.ImpactFactors[id] = int(math.Round(v))
		}
	}
	for _, f := range w.Feedback {
		if f.Rating < 1 || f.Rating > 5 {
			return nil, fmt.Errorf("%w: rating %d out of range", ErrMalformedPreferences, f.Rating)
		}
	}
	p.Feedback = w.Feedback
	return p, nil
}

// EncodePreferences serializes preferences at the current schema version.
func EncodePreferences(p *Preferences) ([]byte, error) {
	out := *p
	out.Version = PreferencesVersion
	return json.Marshal(out)
}
