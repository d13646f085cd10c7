package cli

import (
	"errors"
	"io"
	"log/slog"

	"github.com/roach88/claimgraph/internal/config"
	"github.com/roach88/claimgraph/internal/extract"
	"github.com/roach88/claimgraph/internal/federation"
	"github.com/roach88/claimgraph/internal/graph"
	"github.com/roach88/claimgraph/internal/metrics"
	"github.com/roach88/claimgraph/internal/query"
	"github.com/roach88/claimgraph/internal/rebuild"
	"github.com/roach88/claimgraph/internal/records"
	"github.com/roach88/claimgraph/internal/resync"
	"github.com/roach88/claimgraph/internal/store"
)

// app is every component a command may need, wired from one Config.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	graph   graph.Store
	records *records.Store
	claims  extract.Source

	queries      *query.Service
	gateway      *federation.Gateway
	orchestrator *rebuild.Orchestrator

	closers []io.Closer
}

// openApp loads the configuration and opens both stores. Callers must Close
// the returned app.
func openApp(opts *RootOptions, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	logger := newLogger(logOut, opts)

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
		claims:  extract.Default(),
	}

	switch cfg.Backend() {
	case graph.BackendNone:
		a.graph = graph.Disabled{}
	default:
		gs, err := store.Open(cfg.Graph.Path, store.WithLogger(logger))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open graph store", err)
		}
		a.graph = gs
		a.closers = append(a.closers, gs)
	}

	rs, err := records.Open(cfg.Records.Path)
	if err != nil {
		a.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open record store", err)
	}
	a.records = rs
	a.closers = append(a.closers, rs)

	a.queries = query.NewService(a.graph,
		query.WithLogger(logger),
		query.WithObserver(a.metrics),
		query.WithDefaultTimeout(cfg.Query.DefaultTimeout),
	)

	limiter := federation.NewLimiter(cfg.Federation.RatePerSecond, cfg.Federation.Burst)
	a.gateway = federation.NewGateway(
		cfg.Federation.Self,
		cfg.Federation.Partners,
		federation.NewHTTPPartner(cfg.Federation.Timeout, limiter),
		a.queries,
		federation.WithLogger(logger),
		federation.WithObserver(a.metrics),
	)

	pipeline := resync.New(rs, a.claims, a.graph, resync.WithLogger(logger))
	a.orchestrator = rebuild.New(a.graph, rs, pipeline,
		rebuild.WithLogger(logger),
		rebuild.WithObserver(a.metrics),
	)

	logger.Debug("components ready",
		"backend", cfg.Backend(),
		"graph_path", cfg.Graph.Path,
		"records_path", cfg.Records.Path,
		"partners", len(cfg.Federation.Partners),
	)
	return a, nil
}

// rebuildOptions returns the configured rebuild defaults for the whole
// keyspace.
func (a *app) rebuildOptions() resync.Options {
	opts := resync.DefaultOptions()
	opts.Threads = a.cfg.Rebuild.Threads
	opts.BatchSize = a.cfg.Rebuild.BatchSize
	return opts
}

// Close closes the stores in reverse open order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *app) closeLogged() {
	if err := a.Close(); err != nil {
		a.logger.Error("error closing stores", "error", err)
	}
}
