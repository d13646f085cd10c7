// Package api exposes queries, federated search and graph administration
// over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	gocache "github.com/patrickmn/go-cache"

	"github.com/roach88/claimgraph/internal/federation"
	"github.com/roach88/claimgraph/internal/graph"
	"github.com/roach88/claimgraph/internal/query"
	"github.com/roach88/claimgraph/internal/rebuild"
	"github.com/roach88/claimgraph/internal/resync"
)

// DefaultStatusTTL is how long a graph status assessment is reused.
const DefaultStatusTTL = 5 * time.Second

// maxBodyBytes caps query and statement bodies.
const maxBodyBytes = 1 << 20

const statusCacheKey = "graph-status"

// Querier executes client queries. *query.Service implements it.
type Querier interface {
	Query(ctx context.Context, req query.Request) (graph.Results, error)
	Info() query.Info
}

// Searcher answers federated searches. *federation.Gateway implements it.
type Searcher interface {
	Search(ctx context.Context, st *federation.Statement) (graph.Results, error)
}

// Rebuilder starts and reports graph rebuilds. *rebuild.Orchestrator
// implements it.
type Rebuilder interface {
	Trigger(ctx context.Context, opts resync.Options) (bool, error)
	Status() rebuild.Snapshot
	Assess(ctx context.Context) rebuild.GraphStatus
}

// Server holds the handlers' dependencies.
type Server struct {
	queries  Querier
	searcher Searcher
	rebuilds Rebuilder
	metrics  http.Handler
	defaults resync.Options
	status   *gocache.Cache
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics serves h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithRebuildDefaults sets the options used for fields a rebuild request
// leaves out.
func WithRebuildDefaults(opts resync.Options) Option {
	return func(s *Server) { s.defaults = opts }
}

// WithStatusTTL sets how long /admin/graph/status and /health reuse an
// assessment.
func WithStatusTTL(d time.Duration) Option {
	return func(s *Server) { s.status = gocache.New(d, 2*d) }
}

// New creates a server.
func New(q Querier, search Searcher, rb Rebuilder, opts ...Option) *Server {
	s := &Server{
		queries:  q,
		searcher: search,
		rebuilds: rb,
		defaults: resync.DefaultOptions(),
		status:   gocache.New(DefaultStatusTTL, 2*DefaultStatusTTL),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/query", func(r chi.Router) {
		r.Post("/", s.handleQuery)
		r.Get("/info", s.handleQueryInfo)
		r.Post("/search", s.handleSearch)
	})

	r.Route("/admin/graph", func(r chi.Router) {
		r.Get("/status", s.handleGraphStatus)
		r.Post("/rebuild", s.handleRebuild)
		r.Get("/rebuild/status", s.handleRebuildStatus)
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// graphStatus returns the cached assessment, refreshing it when stale.
func (s *Server) graphStatus(ctx context.Context) rebuild.GraphStatus {
	if v, ok := s.status.Get(statusCacheKey); ok {
		return v.(rebuild.GraphStatus)
	}
	st := s.rebuilds.Assess(ctx)
	s.status.SetDefault(statusCacheKey, st)
	return st
}
