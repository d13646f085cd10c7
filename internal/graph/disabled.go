package graph

import (
	"context"

	"github.com/roach88/claimgraph/internal/claim"
)

// Disabled is the NONE backend. Writes are discarded, queries return no rows
// and no query language is supported.
type Disabled struct{}

var _ Store = Disabled{}

func (Disabled) AddClaims(context.Context, []claim.Claim, string) error { return nil }

func (Disabled) DeleteClaims(context.Context, string) error { return nil }

func (Disabled) QueryData(context.Context, Query) (Results, error) {
	return NewResults(nil), nil
}

func (Disabled) SupportedLanguage() (Language, bool) { return "", false }

func (Disabled) BackendType() BackendType { return BackendNone }

func (Disabled) Healthy(context.Context) bool { return true }

func (Disabled) ClaimCount(context.Context) (int64, error) { return 0, nil }
