// Package extract turns verified documents into claims.
package extract

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/claimgraph/internal/claim"
)

// ErrNoClaims is returned when a document holds no recognizable claims.
var ErrNoClaims = errors.New("document contains no claims")

// Source extracts the claims asserted by a document.
type Source interface {
	ExtractClaims(ctx context.Context, document []byte) ([]claim.Claim, error)
}

// NTriples reads one N-Triples statement per line. Blank lines and comment
// lines are skipped.
type NTriples struct{}

func (NTriples) ExtractClaims(ctx context.Context, document []byte) ([]claim.Claim, error) {
	var claims []claim.Claim
	sc := bufio.NewScanner(bytes.NewReader(document))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		c, err := claim.ParseStatement(text)
		if err != nil {
			return nil, fmt.Errorf("ntriples line %d: %w", line, err)
		}
		claims = append(claims, c)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ntriples: %w", err)
	}
	if len(claims) == 0 {
		return nil, ErrNoClaims
	}
	return claims, nil
}

// JSON reads documents of the form {"claims":[{"s":..,"p":..,"o":..}]}.
// Terms are taken verbatim; validation happens when they are stored.
type JSON struct{}

type jsonDocument struct {
	Claims *[]jsonClaim `json:"claims"`
}

type jsonClaim struct {
	S string `json:"s"`
	P string `json:"p"`
	O string `json:"o"`
}

func (JSON) ExtractClaims(_ context.Context, document []byte) ([]claim.Claim, error) {
	var doc jsonDocument
	if err := json.Unmarshal(document, &doc); err != nil {
		return nil, fmt.Errorf("json claims: %w", err)
	}
	if doc.Claims == nil {
		return nil, fmt.Errorf("json claims: %w", ErrNoClaims)
	}
	claims := make([]claim.Claim, 0, len(*doc.Claims))
	for _, c := range *doc.Claims {
		claims = append(claims, claim.New(c.S, c.P, c.O))
	}
	return claims, nil
}

// Chain tries each source in order and returns the first success.
type Chain []Source

func (c Chain) ExtractClaims(ctx context.Context, document []byte) ([]claim.Claim, error) {
	var errs []error
	for _, src := range c {
		claims, err := src.ExtractClaims(ctx, document)
		if err == nil {
			return claims, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrNoClaims
	}
	return nil, errors.Join(errs...)
}

// Default recognizes JSON claim documents and N-Triples.
func Default() Source {
	return Chain{JSON{}, NTriples{}}
}
