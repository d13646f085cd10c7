package store

import (
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/roach88/claimgraph/internal/claim"
)

const (
	credential1 = "http://example.org/credential1"
	credential2 = "http://example.org/credential2"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// personClaims builds name/age claims for a person IRI.
func personClaims(iri, name string, age int) []claim.Claim {
	return []claim.Claim{
		claim.New("<"+iri+">", "<http://schema.org/name>", `"`+name+`"`),
		claim.New("<"+iri+">", "<http://schema.org/age>",
			`"`+strconv.Itoa(age)+`"^^<http://www.w3.org/2001/XMLSchema#integer>`),
	}
}

// noShuffle keeps storage order so tests can assert on it.
func noShuffle(int, func(i, j int)) {}
