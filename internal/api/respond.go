package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Pulse/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrArticleNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoEmbedding):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidArticle), errors.Is(err, domain.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidWeights), errors.Is(err, domain.ErrInvalidFeedback):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrAnalysisUnavailable),
		errors.Is(err, domain.ErrSearchFailed),
		errors.Is(err, domain.ErrEmbeddingUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func articleID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

// queryInt returns def when the parameter is absent and false when it is not an integer.
func queryInt(r *http.Request, key string, def int) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
