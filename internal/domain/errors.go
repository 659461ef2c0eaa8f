package domain

import "errors"

var (
	// ErrUnauthenticated signals a missing user identity where one is required.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized signals an identity without the required role.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidArticle signals an article that cannot be scored.
	ErrInvalidArticle = errors.New("invalid article")
	// ErrArticleNotFound signals a missing article.
	ErrArticleNotFound = errors.New("article not found")
	// ErrInvalidWeights signals a weight map with unknown factors or out-of-range values.
	ErrInvalidWeights = errors.New("invalid weights")
	// ErrInvalidFeedback signals a rating outside 1..5.
	ErrInvalidFeedback = errors.New("invalid feedback")

	// ErrEmbeddingUnavailable signals an embedding provider failure, timeout, or empty input.
	// The search fallback controller recovers from it; everything else propagates it.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrNoEmbedding signals that the base article of a similarity query has no vector.
	ErrNoEmbedding = errors.New("article has no embedding")
	// ErrInvalidQuery signals malformed search parameters.
	ErrInvalidQuery = errors.New("invalid search query")
	// ErrSearchFailed signals an underlying store error during search.
	ErrSearchFailed = errors.New("search failed")

	// ErrAnalysisUnavailable signals a content analyzer failure.
	ErrAnalysisUnavailable = errors.New("content analysis unavailable")
)
