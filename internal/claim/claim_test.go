package claim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTerm(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Term
	}{
		{"iri", "<http://example.org/alice>", Term{Kind: KindIRI, Value: "http://example.org/alice"}},
		{"urn", "<urn:uuid:1234>", Term{Kind: KindIRI, Value: "urn:uuid:1234"}},
		{"blank", "_:b0", Term{Kind: KindBlank, Value: "b0"}},
		{"plain literal", `"Alice"`, Term{Kind: KindLiteral, Value: "Alice"}},
		{"lang literal", `"chat"@fr`, Term{Kind: KindLiteral, Value: "chat", Lang: "fr"}},
		{"typed literal", `"42"^^<http://www.w3.org/2001/XMLSchema#integer>`,
			Term{Kind: KindLiteral, Value: "42", Datatype: XSD + "integer"}},
		{"escapes", `"a\"b\\c\né"`, Term{Kind: KindLiteral, Value: "a\"b\\c\né"}},
		{"surrounding space", "  <http://example.org/x>  ", Term{Kind: KindIRI, Value: "http://example.org/x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTerm(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTerm_Malformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"<__http://example.org/broken__>",
		"<http://example.org/unterminated",
		"<http://exa mple.org/space>",
		"plain",
		`"unterminated`,
		`"bad"@`,
		`"bad"^^"x"`,
		`"bad\q"`,
		"_:",
		"<http://example.org/a> trailing",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseTerm(raw)
			assert.Error(t, err)
		})
	}
}

func TestTerm_StringRoundTrip(t *testing.T) {
	for _, raw := range []string{
		"<http://example.org/a>",
		"_:node1",
		`"line\nbreak \"quoted\""`,
		`"hello"@en`,
		`"3.5"^^<http://www.w3.org/2001/XMLSchema#decimal>`,
	} {
		term, err := ParseTerm(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, term.String())
	}
}

func TestTerm_Normalize(t *testing.T) {
	// "e" followed by a combining acute accent composes to a single rune.
	term, err := ParseTerm("\"Cafe\u0301\"@EN")
	require.NoError(t, err)

	n := term.Normalize()
	assert.Equal(t, "Caf\u00e9", n.Value)
	assert.Equal(t, "en", n.Lang)
}

func TestNaturalValue(t *testing.T) {
	tests := []struct {
		lexical string
		want    any
	}{
		{`"Alice"`, "Alice"},
		{`"Alice"@en`, "Alice"},
		{`"42"^^<http://www.w3.org/2001/XMLSchema#integer>`, int64(42)},
		{`"-7"^^<http://www.w3.org/2001/XMLSchema#long>`, int64(-7)},
		{`"2.5"^^<http://www.w3.org/2001/XMLSchema#double>`, 2.5},
		{`"true"^^<http://www.w3.org/2001/XMLSchema#boolean>`, true},
		{`"0"^^<http://www.w3.org/2001/XMLSchema#boolean>`, false},
		{`"2024-01-01"^^<http://www.w3.org/2001/XMLSchema#date>`, "2024-01-01"},
		{`"abc"^^<http://www.w3.org/2001/XMLSchema#integer>`, "abc"},
		{`"NaN"^^<http://www.w3.org/2001/XMLSchema#double>`, "NaN"},
		{`"x"^^<http://example.org/custom>`, "x"},
		{"<http://example.org/alice>", "http://example.org/alice"},
		{"_:b1", "_:b1"},
		{"http://example.org/credential1", "http://example.org/credential1"},
		{"", ""},
		{"<broken", "<broken"},
	}
	for _, tt := range tests {
		t.Run(tt.lexical, func(t *testing.T) {
			assert.Equal(t, tt.want, NaturalValue(tt.lexical))
		})
	}
}

func TestCanonicalize_ReportsPosition(t *testing.T) {
	good := New("<http://example.org/s>", "<http://example.org/p>", `"o"`)
	broken := "<__http://example.org/broken__>"

	tests := []struct {
		name   string
		claims []Claim
		pos    Position
		index  int
		prefix string
	}{
		{"subject", []Claim{good, New(broken, good.Predicate, good.Object)}, PositionSubject, 1, "Subject in triple 2"},
		{"predicate", []Claim{New(good.Subject, broken, good.Object)}, PositionPredicate, 0, "Predicate in triple 1"},
		{"object", []Claim{good, good, New(good.Subject, good.Predicate, broken)}, PositionObject, 2, "Object in triple 3"},
		{"literal subject", []Claim{New(`"lit"`, good.Predicate, good.Object)}, PositionSubject, 0, "Subject in triple 1"},
		{"blank predicate", []Claim{New(good.Subject, "_:p", good.Object)}, PositionPredicate, 0, "Predicate in triple 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Canonicalize(tt.claims)
			require.Error(t, err)
			assert.Nil(t, out)

			var se *SyntaxError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.pos, se.Position)
			assert.Equal(t, tt.index, se.Index)
			assert.Contains(t, err.Error(), tt.prefix)
		})
	}
}

func TestCanonicalize_Normalizes(t *testing.T) {
	out, err := Canonicalize([]Claim{
		New(" <http://example.org/s> ", "<http://example.org/p>", "\"é\"@FR"),
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "<http://example.org/s>", out[0].Subject)
	assert.Equal(t, "\"é\"@fr", out[0].Object)
}

func TestParseStatement(t *testing.T) {
	c, err := ParseStatement(`<http://example.org/a> <http://schema.org/name> "A b"@en . # comment`)
	require.NoError(t, err)
	assert.Equal(t, "<http://example.org/a>", c.Subject)
	assert.Equal(t, "<http://schema.org/name>", c.Predicate)
	assert.Equal(t, `"A b"@en`, c.Object)

	c, err = ParseStatement(`_:x <http://example.org/p> _:y.`)
	require.NoError(t, err)
	assert.Equal(t, "_:y", c.Object)
	assert.Equal(t, "_:x <http://example.org/p> _:y .", c.String())

	_, err = ParseStatement(`<http://example.org/a> <http://example.org/p> "o"`)
	assert.Error(t, err)

	_, err = ParseStatement(`"lit" <http://example.org/p> "o" .`)
	var se *SyntaxError
	assert.True(t, errors.As(err, &se))
}

