// Package query checks that queries match the active backend's language and
// executes them with default paging.
package query

import (
	"github.com/roach88/claimgraph/internal/graph"
)

// Backend describes the language capabilities of a graph store.
type Backend interface {
	SupportedLanguage() (graph.Language, bool)
	BackendType() graph.BackendType
}

// Router validates requested languages against the backend.
type Router struct {
	backend Backend
}

// NewRouter creates a router for backend.
func NewRouter(backend Backend) *Router {
	return &Router{backend: backend}
}

// Validate returns nil when the backend executes queries in requested.
func (r *Router) Validate(requested graph.Language) error {
	supported, ok := r.backend.SupportedLanguage()
	if !ok {
		return graph.NewDisabledError("graph store is disabled, queries are not available")
	}
	if requested != supported {
		return graph.NewUnsupportedLanguageError(r.backend.BackendType(), supported, requested)
	}
	return nil
}

// Language returns the backend's language, if any.
func (r *Router) Language() (graph.Language, bool) {
	return r.backend.SupportedLanguage()
}
