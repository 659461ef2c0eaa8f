package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/Pulse/internal/feed"
	"github.com/MikeSquared-Agency/Pulse/internal/hermes"
	"github.com/MikeSquared-Agency/Pulse/internal/ingest"
	"github.com/MikeSquared-Agency/Pulse/internal/scoring"
	"github.com/MikeSquared-Agency/Pulse/internal/search"
	"github.com/MikeSquared-Agency/Pulse/internal/segments"
)

// Deps are the services the HTTP layer fronts.
type Deps struct {
	Articles ArticleGetter
	Resolver *scoring.Resolver
	Feed     *feed.Service
	Search   *search.Controller
	Engine   *search.Engine
	Segments *segments.Analyzer
	Ingest   *ingest.Service
	Hermes   hermes.Client

	Reembed ingest.ReembedOptions
}

// Options configure authentication and throttling.
type Options struct {
	AdminToken        string
	RequestsPerMinute int
}

func NewRouter(d Deps, opts Options, logger *slog.Logger) http.Handler {
	if d.Hermes == nil {
		d.Hermes = hermes.NopClient{}
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 120
	}

	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(MetricsMiddleware)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(opts.RequestsPerMinute))

	articles := NewArticlesHandler(d.Articles, d.Feed, d.Engine)
	searchH := NewSearchHandler(d.Search)
	weights := NewWeightsHandler(d.Resolver, d.Articles, d.Hermes)
	admin := NewAdminHandler(d.Ingest, d.Segments, d.Reembed)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/factors", weights.Factors)

		r.Group(func(r chi.Router) {
			r.Use(UserMiddleware)

			r.Get("/feed", articles.Feed)
			r.Get("/search", searchH.Search)
			r.Get("/articles/{id}", articles.Get)
			r.Get("/articles/{id}/score", articles.Score)
			r.Get("/articles/{id}/similar", articles.Similar)

			r.Get("/weights", weights.Get)
			r.Put("/weights", weights.Put)
			r.Post("/weights/reset", weights.Reset)
			r.Post("/feedback", weights.Feedback)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuthMiddleware(opts.AdminToken))
			r.Post("/articles", admin.CreateArticle)
			r.Post("/articles/url", admin.CreateArticleFromURL)
			r.Post("/reembed", admin.Reembed)
			r.Get("/segments", admin.Segments)
			r.Post("/segments/recompute", admin.RecomputeSegments)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
