package api

import (
	"net/http"

	"github.com/MikeSquared-Agency/Pulse/internal/search"
)

type SearchHandler struct {
	controller *search.Controller
}

func NewSearchHandler(c *search.Controller) *SearchHandler {
	return &SearchHandler{controller: c}
}

// Search always answers with a list. Degraded lexical results carry no similarity.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", 0)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		return
	}
	results, err := h.controller.SearchArticles(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, http.StatusOK, results)
}
