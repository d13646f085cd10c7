package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Language is a graph query language.
type Language string

const (
	LanguageSQL        Language = "SQL"
	LanguageSPARQL     Language = "SPARQL"
	LanguageOpenCypher Language = "OPENCYPHER"
)

// ErrUnknownContentType is returned when a content type maps to no language.
var ErrUnknownContentType = errors.New("unknown query content type")

// LanguageInfo describes how clients submit queries in one language.
type LanguageInfo struct {
	Language         Language `json:"language"`
	DisplayName      string   `json:"displayName"`
	ContentType      string   `json:"contentType"`
	ExampleQuery     string   `json:"exampleQuery"`
	DocumentationURL string   `json:"documentationUrl"`
}

var languages = map[Language]LanguageInfo{
	LanguageSQL: {
		Language:         LanguageSQL,
		DisplayName:      "SQL",
		ContentType:      "application/sql",
		ExampleQuery:     "SELECT subject, predicate, object FROM claims LIMIT 10",
		DocumentationURL: "https://www.sqlite.org/lang_select.html",
	},
	LanguageSPARQL: {
		Language:         LanguageSPARQL,
		DisplayName:      "SPARQL",
		ContentType:      "application/sparql-query",
		ExampleQuery:     "SELECT ?s ?p ?o WHERE { ?s ?p ?o } LIMIT 10",
		DocumentationURL: "https://www.w3.org/TR/sparql11-query/",
	},
	LanguageOpenCypher: {
		Language:         LanguageOpenCypher,
		DisplayName:      "openCypher",
		ContentType:      "application/opencypher-query",
		ExampleQuery:     "MATCH (n) RETURN n LIMIT 10",
		DocumentationURL: "https://opencypher.org/resources/",
	},
}

// Languages lists every known language in a stable order.
func Languages() []Language {
	return []Language{LanguageSQL, LanguageSPARQL, LanguageOpenCypher}
}

// Info returns the descriptor of a language; false for unknown languages.
func (l Language) Info() (LanguageInfo, bool) {
	info, ok := languages[l]
	return info, ok
}

// ContentType returns the media type clients use for the language.
func (l Language) ContentType() string {
	return languages[l].ContentType
}

// DisplayName returns the human name of the language, or the raw tag.
func (l Language) DisplayName() string {
	if info, ok := languages[l]; ok {
		return info.DisplayName
	}
	return string(l)
}

// ParseLanguage accepts a language tag in any letter case.
func ParseLanguage(s string) (Language, error) {
	l := Language(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := languages[l]; !ok {
		return "", fmt.Errorf("unknown query language %q", s)
	}
	return l, nil
}

// LanguageFromContentType maps a request content type to its language.
// Media type parameters such as charset are ignored.
func LanguageFromContentType(contentType string) (Language, error) {
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	for _, l := range Languages() {
		if languages[l].ContentType == mediaType {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownContentType, contentType)
}
