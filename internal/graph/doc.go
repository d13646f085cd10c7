// Package graph defines the backend-agnostic contract of the derived claims
// graph.
//
// A Store persists provenance-wrapped claims and answers queries in exactly
// one query language. The package also owns the closed sets of backend types
// and query languages, the content-type mapping between them, and the error
// taxonomy shared by every backend:
//
//   - *Error with Code BACKEND_DISABLED, TIMEOUT or SERVER_ERROR
//   - *UnsupportedLanguageError when a query is sent in the wrong language
//   - ErrUnknownContentType when a content type names no known language
//
// Disabled is the NONE backend used when no graph store is configured.
package graph
