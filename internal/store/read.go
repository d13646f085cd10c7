package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/roach88/claimgraph/internal/claim"
	"github.com/roach88/claimgraph/internal/graph"
)

// QueryData runs a SQL statement against the claims view.
//
// The statement executes on the read-only pool under the query timeout.
// Rows come back as column->value maps with stored terms converted to
// natural scalars. Without an ORDER BY clause the rows are shuffled so that
// no credential subject is systematically favored by storage order.
func (s *Store) QueryData(ctx context.Context, q graph.Query) (graph.Results, error) {
	if q.Language != graph.LanguageSQL {
		return graph.Results{}, graph.NewUnsupportedLanguageError(graph.BackendSQLite, graph.LanguageSQL, q.Language)
	}

	timeout := q.Timeout
	if timeout <= 0 {
		timeout = graph.DefaultTimeout
	}
	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Debug("query data", "timeout", timeout, "params", len(q.Parameters))

	rows, err := s.ro.QueryContext(qctx, q.Text, namedArgs(q.Parameters)...)
	if err != nil {
		return graph.Results{}, classify(qctx, err)
	}
	defer rows.Close()

	items, err := scanRows(rows)
	if err != nil {
		return graph.Results{}, classify(qctx, err)
	}

	if !hasOrderBy(q.Text) {
		s.shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
	}
	return graph.NewResults(items), nil
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	items := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		item := make(map[string]any, len(cols))
		for i, col := range cols {
			item[col] = naturalize(values[i])
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func naturalize(v any) any {
	switch val := v.(type) {
	case []byte:
		return claim.NaturalValue(string(val))
	case string:
		return claim.NaturalValue(val)
	default:
		return val
	}
}

// namedArgs binds parameters by name in a stable order. Integral floats,
// as decoded from JSON, are bound as integers so they work in LIMIT.
func namedArgs(params map[string]any) []any {
	if len(params) == 0 {
		return nil
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]any, 0, len(params))
	for _, name := range names {
		args = append(args, sql.Named(name, bindValue(params[name])))
	}
	return args
}

func bindValue(v any) any {
	switch val := v.(type) {
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return int64(val)
		}
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case int:
		return int64(val)
	}
	return v
}

// classify maps a driver failure to the graph error taxonomy.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return graph.NewTimeoutError("timeout while executing query", err)
	}
	return graph.NewServerError(fmt.Sprintf("error querying data: %v", err), err)
}

// hasOrderBy reports whether text contains ORDER BY outside of quoted
// literals, identifiers and comments.
func hasOrderBy(text string) bool {
	var quote byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
			continue
		case '-':
			if strings.HasPrefix(text[i:], "--") {
				j := strings.IndexByte(text[i:], '\n')
				if j < 0 {
					return false
				}
				i += j
				continue
			}
		case '/':
			if strings.HasPrefix(text[i:], "/*") {
				j := strings.Index(text[i+2:], "*/")
				if j < 0 {
					return false
				}
				i += j + 3
				continue
			}
		}
		if (c == 'o' || c == 'O') && matchOrderBy(text[i:]) {
			return true
		}
	}
	return false
}

func matchOrderBy(s string) bool {
	if len(s) < len("ORDER BY") || !strings.EqualFold(s[:5], "order") {
		return false
	}
	rest := s[5:]
	trimmed := strings.TrimLeftFunc(rest, unicode.IsSpace)
	if len(trimmed) == len(rest) || len(trimmed) < 2 {
		return false
	}
	return strings.EqualFold(trimmed[:2], "by")
}
