package graph

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes graph store failures.
type ErrorCode string

const (
	// ErrCodeBackendDisabled means no graph backend is configured.
	ErrCodeBackendDisabled ErrorCode = "BACKEND_DISABLED"

	// ErrCodeTimeout means a query exceeded its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeServerError covers every other backend failure.
	ErrCodeServerError ErrorCode = "SERVER_ERROR"
)

// Error is a classified graph store failure.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewDisabledError reports an operation that needs a graph backend.
func NewDisabledError(message string) *Error {
	return &Error{Code: ErrCodeBackendDisabled, Message: message}
}

// NewTimeoutError reports a query that ran past its deadline.
func NewTimeoutError(message string, err error) *Error {
	return &Error{Code: ErrCodeTimeout, Message: message, Err: err}
}

// NewServerError wraps an unexpected backend failure.
func NewServerError(message string, err error) *Error {
	return &Error{Code: ErrCodeServerError, Message: message, Err: err}
}

// UnsupportedLanguageError is returned when a query is written in a language
// the active backend does not execute.
type UnsupportedLanguageError struct {
	Backend     BackendType
	Supported   Language
	Requested   Language
	ContentType string
	Hint        string
}

// NewUnsupportedLanguageError builds the error with the content type and
// hint derived from the supported language.
func NewUnsupportedLanguageError(backend BackendType, supported, requested Language) *UnsupportedLanguageError {
	ct := supported.ContentType()
	return &UnsupportedLanguageError{
		Backend:     backend,
		Supported:   supported,
		Requested:   requested,
		ContentType: ct,
		Hint:        fmt.Sprintf("Please use %s queries with Content-Type: %s", supported.DisplayName(), ct),
	}
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("%s backend does not support %s queries, it supports %s. %s",
		e.Backend, e.Requested.DisplayName(), e.Supported.DisplayName(), e.Hint)
}

// IsDisabled reports whether err is a BACKEND_DISABLED error.
func IsDisabled(err error) bool {
	return hasCode(err, ErrCodeBackendDisabled)
}

// IsTimeout reports whether err is a TIMEOUT error.
func IsTimeout(err error) bool {
	return hasCode(err, ErrCodeTimeout)
}

// IsServerError reports whether err is a SERVER_ERROR error.
func IsServerError(err error) bool {
	return hasCode(err, ErrCodeServerError)
}

// IsUnsupportedLanguage reports whether err is an *UnsupportedLanguageError.
func IsUnsupportedLanguage(err error) bool {
	var ue *UnsupportedLanguageError
	return errors.As(err, &ue)
}

func hasCode(err error, code ErrorCode) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code == code
	}
	return false
}
