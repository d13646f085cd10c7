package query

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/claimgraph/internal/graph"
)

// Observer receives one event per executed query.
type Observer interface {
	QueryObserved(lang graph.Language, outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) QueryObserved(graph.Language, string, time.Duration) {}

// Request is a raw client query; the language comes from ContentType.
type Request struct {
	Body           string
	ContentType    string
	Timeout        time.Duration
	WithTotalCount bool
}

// Info describes how to query the active backend.
type Info struct {
	Backend  graph.BackendType   `json:"backend"`
	Enabled  bool                `json:"enabled"`
	Language *graph.LanguageInfo `json:"queryLanguage,omitempty"`
}

// Service executes client queries against the graph.
type Service struct {
	router         *Router
	store          graph.Store
	defaultTimeout time.Duration
	logger         *slog.Logger
	observer       Observer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithObserver reports query outcomes, typically to metrics.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithDefaultTimeout sets the timeout for queries that do not carry one.
func WithDefaultTimeout(d time.Duration) Option {
	return func(s *Service) { s.defaultTimeout = d }
}

// NewService creates a query service over store.
func NewService(store graph.Store, opts ...Option) *Service {
	s := &Service{
		router:         NewRouter(store),
		store:          store,
		defaultTimeout: graph.DefaultTimeout,
		logger:         slog.Default(),
		observer:       nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the language router the service validates with.
func (s *Service) Router() *Router {
	return s.router
}

// Language returns the backend's query language, if any.
func (s *Service) Language() (graph.Language, bool) {
	return s.router.Language()
}

// Query resolves the request language from its content type, applies the
// default limit and executes it.
func (s *Service) Query(ctx context.Context, req Request) (graph.Results, error) {
	lang, err := graph.LanguageFromContentType(req.ContentType)
	if err != nil {
		return graph.Results{}, err
	}
	return s.Execute(ctx, graph.Query{
		Text:           WithDefaultLimit(req.Body),
		Language:       lang,
		Timeout:        req.Timeout,
		WithTotalCount: req.WithTotalCount,
	})
}

// Execute validates the query language and runs q as given.
func (s *Service) Execute(ctx context.Context, q graph.Query) (graph.Results, error) {
	if err := s.router.Validate(q.Language); err != nil {
		s.observer.QueryObserved(q.Language, outcome(err), 0)
		return graph.Results{}, err
	}
	if q.Timeout <= 0 {
		q.Timeout = s.defaultTimeout
	}

	start := time.Now()
	res, err := s.store.QueryData(ctx, q)
	elapsed := time.Since(start)
	s.observer.QueryObserved(q.Language, outcome(err), elapsed)
	if err != nil {
		s.logger.Warn("query failed", "language", q.Language, "elapsed", elapsed, "error", err)
		return graph.Results{}, err
	}

	s.logger.Debug("query executed", "language", q.Language, "rows", res.TotalCount, "elapsed", elapsed)
	return res, nil
}

// Info reports the backend and, when enabled, its query language.
func (s *Service) Info() Info {
	info := Info{Backend: s.store.BackendType()}
	lang, ok := s.router.Language()
	if !ok {
		return info
	}
	info.Enabled = true
	if li, ok := lang.Info(); ok {
		info.Language = &li
	}
	return info
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case graph.IsTimeout(err):
		return "timeout"
	case graph.IsDisabled(err):
		return "disabled"
	case graph.IsUnsupportedLanguage(err):
		return "unsupported_language"
	default:
		return "error"
	}
}
