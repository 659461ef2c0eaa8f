package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MikeSquared-Agency/Pulse/internal/ingest"
	"github.com/MikeSquared-Agency/Pulse/internal/segments"
)

type AdminHandler struct {
	ingest   *ingest.Service
	segments *segments.Analyzer
	reembed  ingest.ReembedOptions
}

func NewAdminHandler(i *ingest.Service, s *segments.Analyzer, reembed ingest.ReembedOptions) *AdminHandler {
	return &AdminHandler{ingest: i, segments: s, reembed: reembed}
}

func (h *AdminHandler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	var req ingest.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	a, err := h.ingest.Ingest(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

type urlRequest struct {
	URL      string   `json:"url"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

func (h *AdminHandler) CreateArticleFromURL(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url required"})
		return
	}
	a, err := h.ingest.IngestURL(r.Context(), req.URL, req.Category, req.Tags)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// Reembed runs one re-embedding pass synchronously. max_articles in the query
// lowers the configured cap for this run.
func (h *AdminHandler) Reembed(w http.ResponseWriter, r *http.Request) {
	opts := h.reembed
	limit, ok := queryInt(r, "max_articles", opts.MaxArticles)
	if !ok || limit < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid max_articles"})
		return
	}
	if limit > 0 && (opts.MaxArticles == 0 || limit < opts.MaxArticles) {
		opts.MaxArticles = limit
	}
	report, err := h.ingest.Reembed(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type segmentsResponse struct {
	Segments     []segments.Segment `json:"segments"`
	LastComputed *time.Time         `json:"last_computed,omitempty"`
}

func (h *AdminHandler) Segments(w http.ResponseWriter, r *http.Request) {
	segs, err := h.segments.GetSegments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeSegments(w, r, segs)
}

func (h *AdminHandler) RecomputeSegments(w http.ResponseWriter, r *http.Request) {
	segs, err := h.segments.IdentifySegments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeSegments(w, r, segs)
}

func (h *AdminHandler) writeSegments(w http.ResponseWriter, r *http.Request, segs []segments.Segment) {
	resp := segmentsResponse{Segments: segs}
	if resp.Segments == nil {
		resp.Segments = []segments.Segment{}
	}
	if at, err := h.segments.LastComputed(r.Context()); err == nil && !at.IsZero() {
		resp.LastComputed = &at
	}
	writeJSON(w, http.StatusOK, resp)
}
