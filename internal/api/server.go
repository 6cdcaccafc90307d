package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dgallion1/docsplit/internal/config"
	"github.com/dgallion1/docsplit/internal/metrics"
	"github.com/dgallion1/docsplit/internal/pipeline"
)

// Server is the HTTP API server for docsplit.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	conv         *pipeline.Converter
	metrics      *metrics.Metrics
	gatherer     prometheus.Gatherer
	log          zerolog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. m and gatherer may be
// nil, in which case requests are not counted and /metrics is not served.
func NewServer(orch *pipeline.Orchestrator, m *metrics.Metrics, gatherer prometheus.Gatherer, log zerolog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		conv:         orch.Converter(),
		metrics:      m,
		gatherer:     gatherer,
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
	if s.metrics != nil {
		r.Use(CountRequests(s.metrics))
	}

	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/render", s.handleRender)
		r.Post("/split", s.handleSplit)
		r.Post("/estimate", s.handleEstimate)
		r.Get("/lark/preview", s.handleLarkPreview)

		r.Post("/ingest", s.handleIngest)
		r.Post("/ingest/batch", s.handleBatchIngest)
		r.Post("/ingest/lark", s.handleLarkIngest)
		r.Get("/ingest/{jobID}/status", s.handleIngestStatus)
		r.Get("/ingest/{jobID}/chunks", s.handleIngestChunks)

		r.Get("/stats/jobs", s.handleJobStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"lark":   s.cfg.LarkEnabled(),
	})
}
