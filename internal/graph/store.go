package graph

import (
	"context"
	"time"

	"github.com/roach88/claimgraph/internal/claim"
)

// CredentialSubjectRelation links every stored fact to the credential
// subject that asserted it.
const CredentialSubjectRelation = "https://www.w3.org/2018/credentials#credentialSubject"

// DefaultTimeout bounds a query when the caller gives no timeout.
const DefaultTimeout = 5 * time.Second

// BackendType tags the concrete graph backend.
type BackendType string

const (
	BackendSQLite BackendType = "SQLITE"
	BackendNone   BackendType = "NONE"
)

// Query is a single graph query.
type Query struct {
	Text           string
	Language       Language
	Timeout        time.Duration
	Parameters     map[string]any
	WithTotalCount bool
}

// Results is one page of query rows plus the total number of rows.
type Results struct {
	TotalCount int              `json:"totalCount"`
	Items      []map[string]any `json:"items"`
}

// NewResults wraps rows, counting them as the total.
func NewResults(items []map[string]any) Results {
	if items == nil {
		items = []map[string]any{}
	}
	return Results{TotalCount: len(items), Items: items}
}

// Store is the derived claims graph.
//
// AddClaims wraps every claim in a provenance edge pointing at the credential
// subject; two subjects asserting the same triple produce two facts.
// DeleteClaims removes exactly the facts owned by one subject.
type Store interface {
	AddClaims(ctx context.Context, claims []claim.Claim, credentialSubject string) error
	DeleteClaims(ctx context.Context, credentialSubject string) error
	QueryData(ctx context.Context, q Query) (Results, error)

	// SupportedLanguage reports the backend's query language; false means the
	// backend accepts no queries at all.
	SupportedLanguage() (Language, bool)
	BackendType() BackendType
	Healthy(ctx context.Context) bool
	ClaimCount(ctx context.Context) (int64, error)
}
