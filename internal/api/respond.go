package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/roach88/claimgraph/internal/claim"
	"github.com/roach88/claimgraph/internal/federation"
	"github.com/roach88/claimgraph/internal/graph"
	"github.com/roach88/claimgraph/internal/resync"
)

// Error codes returned in error bodies, alongside the graph error codes.
const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeUnknownContentType  = "UNKNOWN_CONTENT_TYPE"
	CodeUnsupportedLanguage = "UNSUPPORTED_QUERY_LANGUAGE"
	CodeClaimSyntax         = "CLAIM_SYNTAX_ERROR"
	CodeRebuildRunning      = "REBUILD_ALREADY_RUNNING"
	CodeInternal            = "INTERNAL_ERROR"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure. The language fields are set only for
// unsupported query languages.
type ErrorDetail struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	Backend           string `json:"backend,omitempty"`
	SupportedLanguage string `json:"supportedLanguage,omitempty"`
	RequestedLanguage string `json:"requestedLanguage,omitempty"`
	ContentType       string `json:"contentType,omitempty"`
	Hint              string `json:"hint,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

// writeError maps err onto a status code and error body.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, detail := describe(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, ErrorBody{Error: detail})
}

func describe(err error) (int, ErrorDetail) {
	var (
		ule *graph.UnsupportedLanguageError
		ge  *graph.Error
		se  *claim.SyntaxError
	)
	switch {
	case errors.As(err, &ule):
		return http.StatusBadRequest, ErrorDetail{
			Code:              CodeUnsupportedLanguage,
			Message:           err.Error(),
			Backend:           string(ule.Backend),
			SupportedLanguage: string(ule.Supported),
			RequestedLanguage: string(ule.Requested),
			ContentType:       ule.ContentType,
			Hint:              ule.Hint,
		}
	case errors.Is(err, graph.ErrUnknownContentType):
		return http.StatusBadRequest, ErrorDetail{Code: CodeUnknownContentType, Message: err.Error()}
	case errors.As(err, &se):
		return http.StatusBadRequest, ErrorDetail{Code: CodeClaimSyntax, Message: se.Error()}
	case errors.Is(err, federation.ErrInvalidStatement), errors.Is(err, resync.ErrInvalidOptions):
		return http.StatusBadRequest, ErrorDetail{Code: CodeBadRequest, Message: err.Error()}
	case errors.As(err, &ge):
		return statusFor(ge.Code), ErrorDetail{Code: string(ge.Code), Message: ge.Message}
	default:
		return http.StatusInternalServerError, ErrorDetail{Code: CodeInternal, Message: err.Error()}
	}
}

func statusFor(code graph.ErrorCode) int {
	switch code {
	case graph.ErrCodeBackendDisabled:
		return http.StatusServiceUnavailable
	case graph.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
