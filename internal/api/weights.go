package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Pulse/internal/domain"
	"github.com/MikeSquared-Agency/Pulse/internal/hermes"
	"github.com/MikeSquared-Agency/Pulse/internal/scoring"
)

type WeightsHandler struct {
	resolver *scoring.Resolver
	articles ArticleGetter
	hermes   hermes.Client
}

func NewWeightsHandler(res *scoring.Resolver, a ArticleGetter, h hermes.Client) *WeightsHandler {
	return &WeightsHandler{resolver: res, articles: a, hermes: h}
}

type factorsResponse struct {
	Categories []scoring.Category `json:"categories"`
	Factors    []scoring.Factor   `json:"factors"`
}

func (h *WeightsHandler) Factors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, factorsResponse{
		Categories: scoring.Categories(),
		Factors:    scoring.ListFactors(),
	})
}

func (h *WeightsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := domain.UserFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	weights, err := h.resolver.Resolve(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, weights)
}

// Put stores the body as the user's weight overrides and returns the resolved map.
func (h *WeightsHandler) Put(w http.ResponseWriter, r *http.Request) {
	userID, err := domain.UserFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var body scoring.WeightMap
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := h.resolver.Save(r.Context(), userID, body); err != nil {
		writeError(w, err)
		return
	}
	weights, err := h.resolver.Resolve(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = h.hermes.Publish(hermes.SubjectWeightsUpdated(userID.String()), hermes.WeightsUpdatedEvent{
		UserID:  userID.String(),
		Weights: weights,
	})
	writeJSON(w, http.StatusOK, weights)
}

func (h *WeightsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	userID, err := domain.UserFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	weights, err := h.resolver.Reset(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = h.hermes.Publish(hermes.SubjectWeightsUpdated(userID.String()), hermes.WeightsUpdatedEvent{
		UserID:  userID.String(),
		Weights: weights,
		Reset:   true,
	})
	writeJSON(w, http.StatusOK, weights)
}

type feedbackRequest struct {
	ArticleID string `json:"article_id"`
	Rating    int    `json:"rating"`
}

func (h *WeightsHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	userID, err := domain.UserFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	articleID, err := uuid.Parse(req.ArticleID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid article_id"})
		return
	}
	a, err := h.articles.GetArticle(r.Context(), articleID)
	if err != nil {
		writeError(w, err)
		return
	}
	if a == nil {
		writeError(w, domain.ErrArticleNotFound)
		return
	}
	if err := h.resolver.RecordFeedback(r.Context(), userID, articleID, req.Rating); err != nil {
		writeError(w, err)
		return
	}
	_ = h.hermes.Publish(hermes.SubjectFeedbackRecorded(userID.String()), hermes.FeedbackRecordedEvent{
		UserID:    userID.String(),
		ArticleID: articleID.String(),
		Rating:    req.Rating,
	})
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"article_id": articleID,
		"rating":     req.Rating,
	})
}
