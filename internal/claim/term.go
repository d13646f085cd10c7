package claim

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// TermKind distinguishes the three RDF term forms.
type TermKind int

const (
	KindIRI TermKind = iota + 1
	KindBlank
	KindLiteral
)

func (k TermKind) String() string {
	switch k {
	case KindIRI:
		return "IRI"
	case KindBlank:
		return "blank node"
	case KindLiteral:
		return "literal"
	default:
		return "unknown term"
	}
}

// XSD is the namespace of the XML Schema datatypes.
const XSD = "http://www.w3.org/2001/XMLSchema#"

// Term is a parsed RDF term.
//
// Value holds the IRI without angle brackets, the blank node label without
// the "_:" prefix, or the unescaped lexical form of a literal.
type Term struct {
	Kind     TermKind
	Value    string
	Datatype string
	Lang     string
}

var (
	iriPattern   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*:[^\s<>"{}|^` + "`" + `\\]*$`)
	blankPattern = regexp.MustCompile(`^[A-Za-z0-9_](?:[A-Za-z0-9_\-.]*[A-Za-z0-9_\-])?$`)
	langPattern  = regexp.MustCompile(`^[A-Za-z]+(?:-[A-Za-z0-9]+)*$`)
)

// ParseTerm parses a single term in N-Triples lexical form.
func ParseTerm(raw string) (Term, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Term{}, errors.New("empty term")
	}
	t, rest, err := readTerm(s)
	if err != nil {
		return Term{}, err
	}
	if rest != "" {
		return Term{}, fmt.Errorf("unexpected trailing content %q", rest)
	}
	return t, nil
}

// scanTerm splits the leading term off s and returns its raw text.
func scanTerm(s string) (raw, rest string, err error) {
	if s == "" {
		return "", "", errors.New("missing term")
	}
	if _, rest, err = readTerm(s); err != nil {
		return "", "", err
	}
	return s[:len(s)-len(rest)], rest, nil
}

func readTerm(s string) (Term, string, error) {
	switch {
	case s[0] == '<':
		end := strings.IndexByte(s, '>')
		if end < 0 {
			return Term{}, "", errors.New("unterminated IRI")
		}
		iri := s[1:end]
		if !iriPattern.MatchString(iri) {
			return Term{}, "", errors.New("not an absolute IRI")
		}
		return Term{Kind: KindIRI, Value: iri}, s[end+1:], nil

	case strings.HasPrefix(s, "_:"):
		end := strings.IndexAny(s, " \t\r\n")
		if end < 0 {
			end = len(s)
		}
		label := strings.TrimRight(s[2:end], ".")
		if !blankPattern.MatchString(label) {
			return Term{}, "", errors.New("invalid blank node label")
		}
		return Term{Kind: KindBlank, Value: label}, s[2+len(label):], nil

	case s[0] == '"':
		return readLiteral(s)

	default:
		return Term{}, "", errors.New("not an IRI, blank node or literal")
	}
}

func readLiteral(s string) (Term, string, error) {
	var b strings.Builder
	i := 1
	for {
		if i >= len(s) {
			return Term{}, "", errors.New("unterminated literal")
		}
		c := s[i]
		if c == '"' {
			i++
			break
		}
		if c != '\\' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(s) {
			return Term{}, "", errors.New("unterminated escape sequence")
		}
		n, err := unescape(&b, s[i+1:])
		if err != nil {
			return Term{}, "", err
		}
		i += 1 + n
	}

	t := Term{Kind: KindLiteral, Value: b.String()}
	if !utf8.ValidString(t.Value) {
		return Term{}, "", errors.New("literal is not valid UTF-8")
	}
	rest := s[i:]
	switch {
	case strings.HasPrefix(rest, "@"):
		end := strings.IndexAny(rest, " \t\r\n")
		if end < 0 {
			end = len(rest)
		}
		lang := strings.TrimRight(rest[1:end], ".")
		if !langPattern.MatchString(lang) {
			return Term{}, "", errors.New("invalid language tag")
		}
		t.Lang = lang
		rest = rest[1+len(lang):]
	case strings.HasPrefix(rest, "^^"):
		dt, tail, err := readTerm(rest[2:])
		if err != nil || dt.Kind != KindIRI {
			return Term{}, "", errors.New("invalid datatype IRI")
		}
		t.Datatype = dt.Value
		rest = tail
	}
	return t, rest, nil
}

// unescape decodes one escape sequence at the start of s (after the
// backslash) and reports how many bytes it consumed.
func unescape(b *strings.Builder, s string) (int, error) {
	switch s[0] {
	case 't':
		b.WriteByte('\t')
	case 'b':
		b.WriteByte('\b')
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 'f':
		b.WriteByte('\f')
	case '"', '\'', '\\':
		b.WriteByte(s[0])
	case 'u', 'U':
		width := 4
		if s[0] == 'U' {
			width = 8
		}
		if len(s) < 1+width {
			return 0, errors.New("truncated unicode escape")
		}
		r, err := strconv.ParseUint(s[1:1+width], 16, 32)
		if err != nil || !utf8.ValidRune(rune(r)) {
			return 0, errors.New("invalid unicode escape")
		}
		b.WriteRune(rune(r))
		return 1 + width, nil
	default:
		return 0, fmt.Errorf("invalid escape sequence \\%c", s[0])
	}
	return 1, nil
}

// String serializes the term in N-Triples lexical form.
func (t Term) String() string {
	switch t.Kind {
	case KindIRI:
		return "<" + t.Value + ">"
	case KindBlank:
		return "_:" + t.Value
	case KindLiteral:
		s := `"` + literalEscaper.Replace(t.Value) + `"`
		if t.Lang != "" {
			return s + "@" + t.Lang
		}
		if t.Datatype != "" {
			return s + "^^<" + t.Datatype + ">"
		}
		return s
	default:
		return ""
	}
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// Normalize returns the term with NFC-normalized text and a lowercased
// language tag.
func (t Term) Normalize() Term {
	t.Value = norm.NFC.String(t.Value)
	t.Datatype = norm.NFC.String(t.Datatype)
	t.Lang = strings.ToLower(t.Lang)
	return t
}

// Natural converts the term to the scalar a client expects: literals by
// XSD datatype (lexical form when unparsable), IRIs as bare strings and
// blank nodes as "_:label".
func (t Term) Natural() any {
	switch t.Kind {
	case KindIRI:
		return t.Value
	case KindBlank:
		return "_:" + t.Value
	}

	lexical := strings.TrimSpace(t.Value)
	switch strings.TrimPrefix(t.Datatype, XSD) {
	case "integer", "int", "long", "short", "byte",
		"nonNegativeInteger", "positiveInteger", "negativeInteger", "nonPositiveInteger",
		"unsignedInt", "unsignedShort", "unsignedByte":
		if n, err := strconv.ParseInt(lexical, 10, 64); err == nil {
			return n
		}
	case "decimal", "double", "float":
		if f, err := strconv.ParseFloat(lexical, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f
		}
	case "boolean":
		switch lexical {
		case "true", "1":
			return true
		case "false", "0":
			return false
		}
	}
	return t.Value
}

// NaturalValue parses a stored lexical term and returns its natural scalar.
// Values that are not terms are returned unchanged.
func NaturalValue(lexical string) any {
	if lexical == "" || !strings.ContainsAny(lexical[:1], `<"_`) {
		return lexical
	}
	t, err := ParseTerm(lexical)
	if err != nil {
		return lexical
	}
	return t.Natural()
}
