package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dgallion1/taxindex/internal/catalog"
	"github.com/dgallion1/taxindex/internal/config"
	"github.com/dgallion1/taxindex/internal/metrics"
	"github.com/dgallion1/taxindex/internal/pipeline"
	"github.com/dgallion1/taxindex/internal/stats"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for taxindex.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	catalog      *catalog.Catalog
	metrics      *metrics.Metrics
	queries      *stats.Queries
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, m *metrics.Metrics, q *stats.Queries, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		catalog:      orch.Catalog(),
		metrics:      m,
		queries:      q,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Get("/api/taxonomies", s.handleListTaxonomies)
		r.Route("/api/taxonomies/{dialect}", func(r chi.Router) {
			r.Get("/codes/{code}", s.handleCode)
			r.Get("/search", s.handleSearch)
			r.Get("/path", s.handlePath)
			r.Get("/organisms", s.handleOrganisms)
			r.Get("/clade", s.handleClade)
			r.Get("/nested", s.handleNested)
			r.Post("/load", s.handleLoad)
		})

		r.Get("/api/jobs/{jobID}", s.handleJobStatus)
		r.Get("/api/stats/queries", s.handleQueryStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	loaded := make([]string, 0, 2)
	for _, e := range s.catalog.List() {
		loaded = append(loaded, e.Dialect)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"loaded": loaded,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
