// Package claim models the facts extracted from verified documents.
//
// A Claim is a subject/predicate/object triple whose terms are written in
// N-Triples lexical form:
//
//	<http://example.org/alice> <http://schema.org/name> "Alice" .
//
// Terms are parsed into a Term (IRI, blank node or literal) for validation,
// normalization and conversion into natural scalar values. A malformed term
// is reported as a *SyntaxError naming its position in the batch.
package claim
