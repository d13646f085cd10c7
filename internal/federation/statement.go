package federation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/claimgraph/internal/graph"
)

// Annotation keys understood by the gateway.
const (
	AnnotationQueryLanguage  = "queryLanguage"
	AnnotationTimeout        = "timeout"
	AnnotationWithTotalCount = "withTotalCount"
)

// ErrInvalidStatement is returned for statements that cannot be executed.
var ErrInvalidStatement = errors.New("invalid federated statement")

// Statement is a query propagated between servers.
//
// Servers lists every server the statement has been sent to; it is empty
// when the statement arrives from a client.
type Statement struct {
	Statement   string         `json:"statement"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Annotations map[string]any `json:"annotations,omitempty"`
	Servers     []string       `json:"servers,omitempty"`
}

// Query builds the local graph query. The language annotation defaults to
// fallback, the timeout to graph.DefaultTimeout and withTotalCount to true.
func (s *Statement) Query(fallback graph.Language) (graph.Query, error) {
	q := graph.Query{
		Text:           s.Statement,
		Language:       fallback,
		Timeout:        graph.DefaultTimeout,
		Parameters:     s.Parameters,
		WithTotalCount: true,
	}

	if v, ok := s.Annotations[AnnotationQueryLanguage]; ok && v != nil {
		str, ok := v.(string)
		if !ok {
			return graph.Query{}, fmt.Errorf("%w: %s must be a string", ErrInvalidStatement, AnnotationQueryLanguage)
		}
		lang, err := graph.ParseLanguage(str)
		if err != nil {
			return graph.Query{}, fmt.Errorf("%w: %v", ErrInvalidStatement, err)
		}
		q.Language = lang
	}

	if v, ok := s.Annotations[AnnotationTimeout]; ok && v != nil {
		secs, ok := toFloat(v)
		if !ok || secs <= 0 {
			return graph.Query{}, fmt.Errorf("%w: %s must be a positive number of seconds", ErrInvalidStatement, AnnotationTimeout)
		}
		q.Timeout = time.Duration(secs * float64(time.Second))
	}

	if v, ok := s.Annotations[AnnotationWithTotalCount]; ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return graph.Query{}, fmt.Errorf("%w: %s must be a boolean", ErrInvalidStatement, AnnotationWithTotalCount)
		}
		q.WithTotalCount = b
	}

	return q, nil
}

func (s *Statement) validate() error {
	if s == nil || strings.TrimSpace(s.Statement) == "" {
		return fmt.Errorf("%w: empty statement", ErrInvalidStatement)
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
	}
	return 0
}
