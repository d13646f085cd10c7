package query

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultLimit caps queries that do not limit themselves.
const DefaultLimit = 100

var (
	resultClause = regexp.MustCompile(`(?i)\b(return|select)\b`)
	limitToken   = regexp.MustCompile(`(?im)(^|\s)limit(\s|$)`)
)

// LimitAbsent reports whether text produces results without a LIMIT.
// Comments are ignored.
func LimitAbsent(text string) bool {
	code, _ := scanCode(text)
	return limitAbsent(code)
}

func limitAbsent(code string) bool {
	return resultClause.MatchString(code) && !limitToken.MatchString(code)
}

// WithDefaultLimit appends LIMIT DefaultLimit when the query has none.
func WithDefaultLimit(text string) string {
	return appendLimit(text, strconv.Itoa(DefaultLimit))
}

// WithLimitParameter appends LIMIT $name when the query has none and
// reports whether it did.
func WithLimitParameter(text, name string) (string, bool) {
	if !LimitAbsent(text) {
		return text, false
	}
	return appendLimit(text, "$"+name), true
}

// appendLimit drops trailing comments and semicolons so the clause lands
// in the statement itself.
func appendLimit(text, limit string) string {
	code, end := scanCode(text)
	if !limitAbsent(code) {
		return text
	}
	return text[:end] + " LIMIT " + limit
}

// scanCode blanks out -- and /* */ comments outside quotes. end is the
// offset just past the last byte that is not whitespace, comment or ';'.
func scanCode(text string) (code string, end int) {
	b := []byte(text)
	var quote byte
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			end = i + 1
		case c == '\'' || c == '"' || c == '`':
			quote = c
			end = i + 1
		case c == '-' && i+1 < len(b) && b[i+1] == '-':
			for ; i < len(b) && b[i] != '\n'; i++ {
				b[i] = ' '
			}
		case c == '/' && i+1 < len(b) && b[i+1] == '*':
			stop := len(b)
			if j := strings.Index(text[i+2:], "*/"); j >= 0 {
				stop = i + 2 + j + 2
			}
			for ; i < stop; i++ {
				b[i] = ' '
			}
			i--
		case c == ';' || isSpace(c):
		default:
			end = i + 1
		}
	}
	return string(b), end
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}
