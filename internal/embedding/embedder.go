package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/Pulse/internal/domain"
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Gateway normalizes every embedder failure into domain.ErrEmbeddingUnavailable
// and enforces a per-call timeout and the configured dimensionality.
// It never falls back; that is the caller's decision.
type Gateway struct {
	inner      Embedder
	dimensions int
	timeout    time.Duration
	logger     *slog.Logger
}

// NewGateway wraps inner. A zero timeout disables the gateway's own deadline;
// a zero dimensions value accepts any non-empty vector.
func NewGateway(inner Embedder, dimensions int, timeout time.Duration, logger *slog.Logger) *Gateway {
	return &Gateway{inner: inner, dimensions: dimensions, timeout: timeout, logger: logger}
}

func (g *Gateway) Dimensions() int { return g.dimensions }

func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty input", domain.ErrEmbeddingUnavailable)
	}
	if g.inner == nil {
		return nil, fmt.Errorf("%w: no provider configured", domain.ErrEmbeddingUnavailable)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	vec, err := g.inner.Embed(ctx, text)
	if err != nil {
		// Debug only: callers that recover from the failure log it themselves.
		g.logger.Debug("embedding failed", "error", err, "text_len", len(text))
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty vector", domain.ErrEmbeddingUnavailable)
	}
	if g.dimensions > 0 && len(vec) != g.dimensions {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", domain.ErrEmbeddingUnavailable, len(vec), g.dimensions)
	}
	return vec, nil
}
