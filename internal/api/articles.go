package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Pulse/internal/domain"
	"github.com/MikeSquared-Agency/Pulse/internal/feed"
	"github.com/MikeSquared-Agency/Pulse/internal/search"
	"github.com/MikeSquared-Agency/Pulse/internal/store"
)

type ArticleGetter interface {
	GetArticle(ctx context.Context, id uuid.UUID) (*store.Article, error)
}

type ArticlesHandler struct {
	articles ArticleGetter
	feed     *feed.Service
	engine   *search.Engine
}

func NewArticlesHandler(a ArticleGetter, f *feed.Service, e *search.Engine) *ArticlesHandler {
	return &ArticlesHandler{articles: a, feed: f, engine: e}
}

func (h *ArticlesHandler) Feed(w http.ResponseWriter, r *http.Request) {
	userID, err := domain.UserFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	limit, ok := queryInt(r, "limit", feed.DefaultLimit)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		return
	}
	opts := feed.Options{Limit: limit, Category: r.URL.Query().Get("category")}
	if s := r.URL.Query().Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC3339"})
			return
		}
		opts.Since = &since
	}

	items, err := h.feed.Feed(r.Context(), userID, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []feed.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ArticlesHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.load(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Score returns the reader's personalized score with the per-factor breakdown.
func (h *ArticlesHandler) Score(w http.ResponseWriter, r *http.Request) {
	userID, err := domain.UserFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	a, err := h.load(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := h.feed.ScoreArticle(r.Context(), userID, a)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ArticlesHandler) Similar(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid article id"})
		return
	}
	count, ok := queryInt(r, "count", search.DefaultCount)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid count"})
		return
	}
	results, err := h.engine.FindSimilar(r.Context(), id, count)
	if err != nil {
		writeError(w, err)
		return
	}
	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *ArticlesHandler) load(r *http.Request) (*store.Article, error) {
	id, ok := articleID(r)
	if !ok {
		return nil, fmt.Errorf("%w: invalid article id", domain.ErrInvalidQuery)
	}
	a, err := h.articles.GetArticle(r.Context(), id)
	if err != nil {
		return nil, fmt.Errorf("loading article: %w", err)
	}
	if a == nil {
		return nil, domain.ErrArticleNotFound
	}
	return a, nil
}
