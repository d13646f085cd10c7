package store

import (
	"context"
	"fmt"

	"github.com/roach88/claimgraph/internal/claim"
	"github.com/roach88/claimgraph/internal/graph"
)

// AddClaims stores each claim as a fact owned by credentialSubject.
//
// The whole batch is validated first; a malformed term fails the call with a
// *claim.SyntaxError and nothing is written. Valid batches are inserted in a
// single transaction.
func (s *Store) AddClaims(ctx context.Context, claims []claim.Claim, credentialSubject string) error {
	if len(claims) == 0 {
		return nil
	}

	normalized, err := claim.Canonicalize(claims)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return graph.NewServerError("add claims: begin transaction", err)
	}
	defer tx.Rollback()

	insertTriple, err := tx.PrepareContext(ctx,
		`INSERT INTO triples (subject, predicate, object) VALUES (?, ?, ?)`)
	if err != nil {
		return graph.NewServerError("add claims: prepare triple insert", err)
	}
	defer insertTriple.Close()

	insertEdge, err := tx.PrepareContext(ctx,
		`INSERT INTO provenance (triple_id, relation, credential_subject) VALUES (?, ?, ?)`)
	if err != nil {
		return graph.NewServerError("add claims: prepare provenance insert", err)
	}
	defer insertEdge.Close()

	for i, c := range normalized {
		res, err := insertTriple.ExecContext(ctx, c.Subject, c.Predicate, c.Object)
		if err != nil {
			return graph.NewServerError(fmt.Sprintf("add claims: insert triple %d", i+1), err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return graph.NewServerError("add claims: triple id", err)
		}
		if _, err := insertEdge.ExecContext(ctx, id, graph.CredentialSubjectRelation, credentialSubject); err != nil {
			return graph.NewServerError(fmt.Sprintf("add claims: insert provenance %d", i+1), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return graph.NewServerError("add claims: commit", err)
	}

	s.logger.Debug("added claims", "count", len(normalized), "credential_subject", credentialSubject)
	return nil
}

// DeleteClaims removes every fact whose provenance edge names
// credentialSubject. Facts owned by other subjects are untouched, even when
// they carry the same base triple.
func (s *Store) DeleteClaims(ctx context.Context, credentialSubject string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return graph.NewServerError("delete claims: begin transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM triples WHERE id IN (
			SELECT triple_id FROM provenance
			WHERE relation = ? AND credential_subject = ?
		)
	`, graph.CredentialSubjectRelation, credentialSubject)
	if err != nil {
		return graph.NewServerError("delete claims", err)
	}

	if err := tx.Commit(); err != nil {
		return graph.NewServerError("delete claims: commit", err)
	}

	n, _ := res.RowsAffected()
	s.logger.Debug("deleted claims", "count", n, "credential_subject", credentialSubject)
	return nil
}
