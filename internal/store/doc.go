// Package store provides the SQLite backend of the claims graph.
//
// Every claim is stored as a base triple plus exactly one provenance edge
// naming the credential subject that asserted it:
//   - triples: the base subject/predicate/object, terms in N-Triples form
//   - provenance: triple_id -> credentialSubject relation -> subject
//   - claims: a view joining both, which client queries run against
//
// # Query Semantics
//
//   - Queries are SQL and execute on a read-only connection pool
//   - Named parameters bind as :name, @name or $name
//   - Results without ORDER BY are shuffled before they are returned
//   - Deadline overruns surface as graph TIMEOUT errors
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Provenance rows cascade with their triple
package store
