package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Pulse/internal/domain"
	"github.com/MikeSquared-Agency/Pulse/internal/store"
)

const (
	MinRating = 1
	MaxRating = 5
)

// PreferenceStore is the subset of store.Store the resolver needs.
type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID uuid.UUID) (*store.Preferences, error)
	SavePreferences(ctx context.Context, userID uuid.UUID, prefs *store.Preferences) error
}

// Resolver reads and writes per-user weight preferences and feedback.
type Resolver struct {
	store  PreferenceStore
	logger *slog.Logger
	now    func() time.Time
}

func NewResolver(s PreferenceStore, logger *slog.Logger) *Resolver {
	return &Resolver{store: s, logger: logger, now: time.Now}
}

// Resolve returns the user's effective weights: stored values over registry
// defaults. Absent or malformed preferences resolve to the defaults.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID) (WeightMap, error) {
	prefs, err := r.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	defaults := DefaultWeights()
	if prefs == nil || len(prefs.ImpactFactors) == 0 {
		return defaults, nil
	}
	return defaults.Merge(prefs.ImpactFactors), nil
}

// Save validates and persists the full weight map verbatim. Existing feedback
// is preserved.
func (r *Resolver) Save(ctx context.Context, userID uuid.UUID, weights WeightMap) error {
	if err := weights.Validate(); err != nil {
		return err
	}
	prefs, err := r.load(ctx, userID)
	if err != nil {
		return err
	}
	if prefs == nil {
		prefs = &store.Preferences{}
	}
	prefs.ImpactFactors = weights.Clone()
	if err := r.store.SavePreferences(ctx, userID, prefs); err != nil {
		return fmt.Errorf("saving preferences: %w", err)
	}
	return nil
}

// Reset stores the registry defaults and returns them.
func (r *Resolver) Reset(ctx context.Context, userID uuid.UUID) (WeightMap, error) {
	defaults := DefaultWeights()
	if err := r.Save(ctx, userID, defaults); err != nil {
		return nil, err
	}
	return defaults, nil
}

// RecordFeedback stores a 1..5 rating for an article. A newer rating for the
// same article replaces the older one.
func (r *Resolver) RecordFeedback(ctx context.Context, userID, articleID uuid.UUID, rating int) error {
	if articleID == uuid.Nil {
		return fmt.Errorf("%w: missing article id", domain.ErrInvalidFeedback)
	}
	if rating < MinRating || rating > MaxRating {
		return fmt.Errorf("%w: rating %d outside [%d,%d]", domain.ErrInvalidFeedback, rating, MinRating, MaxRating)
	}
	prefs, err := r.load(ctx, userID)
	if err != nil {
		return err
	}
	if prefs == nil {
		prefs = &store.Preferences{}
	}

	rec := store.FeedbackRecord{ArticleID: articleID, Rating: rating, CreatedAt: r.now().UTC()}
	replaced := false
	for i := range prefs.Feedback {
		if prefs.Feedback[i].ArticleID == articleID {
			prefs.Feedback[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		prefs.Feedback = append(prefs.Feedback, rec)
	}

	if err := r.store.SavePreferences(ctx, userID, prefs); err != nil {
		return fmt.Errorf("saving feedback: %w", err)
	}
	return nil
}

// load returns nil preferences when absent or malformed.
func (r *Resolver) load(ctx context.Context, userID uuid.UUID) (*store.Preferences, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrUnauthenticated
	}
	prefs, err := r.store.GetPreferences(ctx, userID)
	if errors.Is(err, store.ErrMalformedPreferences) {
		r.logger.Warn("discarding malformed preferences", "user_id", userID, "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading preferences: %w", err)
	}
	return prefs, nil
}
