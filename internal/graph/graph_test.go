package graph

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/claimgraph/internal/claim"
)

func TestLanguageFromContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        Language
	}{
		{"application/sql", LanguageSQL},
		{"application/sparql-query", LanguageSPARQL},
		{"application/opencypher-query", LanguageOpenCypher},
		{"Application/SPARQL-Query; charset=utf-8", LanguageSPARQL},
		{"  application/sql ;charset=UTF-8", LanguageSQL},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			got, err := LanguageFromContentType(tt.contentType)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLanguageFromContentType_Unknown(t *testing.T) {
	for _, ct := range []string{"", "application/json", "text/plain; charset=utf-8"} {
		_, err := LanguageFromContentType(ct)
		assert.ErrorIs(t, err, ErrUnknownContentType, ct)
	}
}

func TestLanguageInfo_OneToOne(t *testing.T) {
	seen := map[string]Language{}
	for _, l := range Languages() {
		info, ok := l.Info()
		require.True(t, ok)
		assert.Equal(t, l, info.Language)
		assert.NotEmpty(t, info.ExampleQuery)
		assert.NotEmpty(t, info.DocumentationURL)

		prev, dup := seen[info.ContentType]
		assert.False(t, dup, "content type %s shared by %s and %s", info.ContentType, prev, l)
		seen[info.ContentType] = l

		back, err := LanguageFromContentType(info.ContentType)
		require.NoError(t, err)
		assert.Equal(t, l, back)
	}
}

func TestParseLanguage(t *testing.T) {
	l, err := ParseLanguage("opencypher")
	require.NoError(t, err)
	assert.Equal(t, LanguageOpenCypher, l)

	_, err = ParseLanguage("gremlin")
	assert.Error(t, err)
}

func TestUnsupportedLanguageError(t *testing.T) {
	err := NewUnsupportedLanguageError(BackendSQLite, LanguageSQL, LanguageSPARQL)

	assert.Equal(t, "application/sql", err.ContentType)
	assert.Equal(t, "Please use SQL queries with Content-Type: application/sql", err.Hint)
	assert.Contains(t, err.Error(), "SQLITE")
	assert.Contains(t, err.Error(), "SPARQL")

	wrapped := fmt.Errorf("query: %w", err)
	assert.True(t, IsUnsupportedLanguage(wrapped))
	assert.False(t, IsDisabled(wrapped))
}

func TestErrorHelpers(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name     string
		err      error
		disabled bool
		timeout  bool
		server   bool
	}{
		{"disabled", NewDisabledError("no backend"), true, false, false},
		{"timeout", NewTimeoutError("too slow", cause), false, true, false},
		{"server", NewServerError("failed", cause), false, false, true},
		{"wrapped", fmt.Errorf("outer: %w", NewTimeoutError("slow", cause)), false, true, false},
		{"plain", cause, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.disabled, IsDisabled(tt.err))
			assert.Equal(t, tt.timeout, IsTimeout(tt.err))
			assert.Equal(t, tt.server, IsServerError(tt.err))
		})
	}

	assert.ErrorIs(t, NewServerError("failed", cause), cause)
}

func TestDisabled(t *testing.T) {
	ctx := context.Background()
	var s Store = Disabled{}

	require.NoError(t, s.AddClaims(ctx, []claim.Claim{claim.New("<http://a.org/s>", "<http://a.org/p>", `"o"`)}, "subj"))
	require.NoError(t, s.DeleteClaims(ctx, "subj"))

	res, err := s.QueryData(ctx, Query{Text: "anything"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalCount)
	assert.NotNil(t, res.Items)

	_, ok := s.SupportedLanguage()
	assert.False(t, ok)
	assert.Equal(t, BackendNone, s.BackendType())
	assert.True(t, s.Healthy(ctx))

	n, err := s.ClaimCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
