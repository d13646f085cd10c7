// Package federation fans queries out to partner servers and merges their
// answers with the local result.
//
// Every hop records itself in the statement's server list; a server never
// forwards to a partner already on that list, so a statement visits each
// server at most once even when partners point at each other.
package federation

import (
	"context"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/claimgraph/internal/graph"
	"github.com/roach88/claimgraph/internal/query"
)

// LimitParameter names the parameter bound to the default limit.
const LimitParameter = "limit"

// Executor runs the local part of a federated query.
type Executor interface {
	Execute(ctx context.Context, q graph.Query) (graph.Results, error)
	Language() (graph.Language, bool)
}

// Observer is told about partners that failed to answer.
type Observer interface {
	PartnerFailed(partner string)
}

type nopObserver struct{}

func (nopObserver) PartnerFailed(string) {}

// Gateway answers federated searches.
type Gateway struct {
	self        string
	partners    []string
	client      Partner
	exec        Executor
	logger      *slog.Logger
	observer    Observer
	maxParallel int
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithObserver reports partner failures, typically to metrics.
func WithObserver(o Observer) Option {
	return func(g *Gateway) { g.observer = o }
}

// WithMaxParallel bounds concurrent partner requests; zero means unbounded.
func WithMaxParallel(n int) Option {
	return func(g *Gateway) { g.maxParallel = n }
}

// NewGateway creates a gateway for the server identified by self.
func NewGateway(self string, partners []string, client Partner, exec Executor, opts ...Option) *Gateway {
	g := &Gateway{
		self:     self,
		partners: slices.Clone(partners),
		client:   client,
		exec:     exec,
		logger:   slog.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Search executes st locally and on every partner not yet visited, then
// merges the answers. Partner failures are logged and left out of the
// result; a local failure fails the search.
//
// st is updated in place: the default limit is applied and the server list
// is extended with the partners and this server.
func (g *Gateway) Search(ctx context.Context, st *Statement) (graph.Results, error) {
	if err := st.validate(); err != nil {
		return graph.Results{}, err
	}

	if text, added := query.WithLimitParameter(st.Statement, LimitParameter); added {
		st.Statement = text
		if st.Parameters == nil {
			st.Parameters = map[string]any{}
		}
		st.Parameters[LimitParameter] = query.DefaultLimit
	}

	first := len(st.Servers) == 0
	route := append(slices.Clone(st.Servers), g.self)
	st.Servers = appendUnique(st.Servers, append(slices.Clone(g.partners), g.self)...)

	var targets []string
	for _, p := range g.partners {
		if !slices.Contains(route, p) {
			targets = append(targets, p)
		}
	}

	fallback, _ := g.exec.Language()
	q, err := st.Query(fallback)
	if err != nil {
		return graph.Results{}, err
	}

	g.logger.Debug("federated search",
		"first", first,
		"route", route,
		"targets", targets,
	)

	pctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outgoing := *st
	results := make([]*graph.Results, len(targets))
	var eg errgroup.Group
	if g.maxParallel > 0 {
		eg.SetLimit(g.maxParallel)
	}
	for i, partner := range targets {
		eg.Go(func() error {
			res, err := g.client.Search(pctx, partner, outgoing)
			if err != nil {
				g.logger.Warn("partner search failed", "partner", partner, "error", err)
				g.observer.PartnerFailed(partner)
				return nil
			}
			results[i] = &res
			return nil
		})
	}

	local, err := g.exec.Execute(ctx, q)
	if err != nil {
		cancel()
		eg.Wait()
		return graph.Results{}, err
	}
	eg.Wait()

	return Merge(first, g.self, local, results), nil
}

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(list, v) {
			list = append(list, v)
		}
	}
	return list
}
