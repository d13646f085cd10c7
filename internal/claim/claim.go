package claim

import (
	"fmt"
	"strings"
)

// Claim is a single base fact in N-Triples lexical form.
type Claim struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// New builds a claim from already-serialized terms.
func New(subject, predicate, object string) Claim {
	return Claim{Subject: subject, Predicate: predicate, Object: object}
}

// String renders the claim as an N-Triples statement.
func (c Claim) String() string {
	return c.Subject + " " + c.Predicate + " " + c.Object + " ."
}

// Position identifies which term of a triple is malformed.
type Position string

const (
	PositionSubject   Position = "Subject"
	PositionPredicate Position = "Predicate"
	PositionObject    Position = "Object"
)

// SyntaxError reports a malformed term inside a batch of claims.
//
// Index is zero-based; the message numbers triples from one.
type SyntaxError struct {
	Position Position
	Index    int
	Term     string
	Reason   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s in triple %d is malformed: %s (%q)", e.Position, e.Index+1, e.Reason, e.Term)
}

// Terms parses the three terms of the claim and checks their roles: the
// subject must be an IRI or blank node and the predicate must be an IRI.
func (c Claim) Terms() (subject, predicate, object Term, err error) {
	if subject, err = parseRole(PositionSubject, c.Subject, KindIRI, KindBlank); err != nil {
		return
	}
	if predicate, err = parseRole(PositionPredicate, c.Predicate, KindIRI); err != nil {
		return
	}
	object, err = parseRole(PositionObject, c.Object, KindIRI, KindBlank, KindLiteral)
	return
}

func parseRole(pos Position, raw string, allowed ...TermKind) (Term, error) {
	t, err := ParseTerm(raw)
	if err != nil {
		return Term{}, &SyntaxError{Position: pos, Term: raw, Reason: err.Error()}
	}
	for _, k := range allowed {
		if t.Kind == k {
			return t, nil
		}
	}
	return Term{}, &SyntaxError{
		Position: pos,
		Term:     raw,
		Reason:   fmt.Sprintf("%s is not allowed here", t.Kind),
	}
}

// Canonicalize validates every claim and returns them re-serialized in NFC
// normal form. Nothing is returned when any claim is malformed, so callers
// can reject the whole batch before touching storage.
func Canonicalize(claims []Claim) ([]Claim, error) {
	out := make([]Claim, 0, len(claims))
	for i, c := range claims {
		s, p, o, err := c.Terms()
		if err != nil {
			if se, ok := err.(*SyntaxError); ok {
				se.Index = i
			}
			return nil, err
		}
		out = append(out, Claim{
			Subject:   s.Normalize().String(),
			Predicate: p.Normalize().String(),
			Object:    o.Normalize().String(),
		})
	}
	return out, nil
}

// Validate reports the first malformed claim, if any.
func Validate(claims []Claim) error {
	_, err := Canonicalize(claims)
	return err
}

// ParseStatement parses one N-Triples statement ("S P O .") into a claim.
// Trailing comments are allowed after the terminating dot.
func ParseStatement(line string) (Claim, error) {
	rest := strings.TrimSpace(line)
	var terms [3]string
	for i := range terms {
		raw, tail, err := scanTerm(rest)
		if err != nil {
			return Claim{}, fmt.Errorf("term %d: %w", i+1, err)
		}
		terms[i] = raw
		rest = strings.TrimLeft(tail, " \t")
	}
	if !strings.HasPrefix(rest, ".") {
		return Claim{}, fmt.Errorf("statement not terminated by '.'")
	}
	rest = strings.TrimSpace(rest[1:])
	if rest != "" && !strings.HasPrefix(rest, "#") {
		return Claim{}, fmt.Errorf("unexpected content after statement: %q", rest)
	}
	c := New(terms[0], terms[1], terms[2])
	if _, _, _, err := c.Terms(); err != nil {
		return Claim{}, err
	}
	return c, nil
}
