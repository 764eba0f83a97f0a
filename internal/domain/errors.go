// Package domain defines the core types and error taxonomy for the
// analytical query service.
package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a query failure. Kinds are part of the API contract:
// they are surfaced verbatim in responses so callers can distinguish "your
// query is invalid" from "the system failed to run a valid query".
type ErrorKind string

// Input-shape kinds are detected before any storage call and are always
// recoverable by the caller revising input.
const (
	KindQueryTooLong        ErrorKind = "QueryTooLong"
	KindNotReadOnly         ErrorKind = "NotReadOnly"
	KindForbiddenOperation  ErrorKind = "ForbiddenOperation"
	KindUnauthorizedTable   ErrorKind = "UnauthorizedTable"
	KindUnknownModel        ErrorKind = "UnknownModel"
	KindInvalidField        ErrorKind = "InvalidField"
	KindInvalidOperator     ErrorKind = "InvalidOperator"
	KindAmbiguousPagination ErrorKind = "AmbiguousPagination"
)

// Resource-limit kinds. Messages always name the limit that was exceeded and
// its configured ceiling.
const (
	KindQueryTooComplex ErrorKind = "QueryTooComplex"
	KindJoinTooDeep     ErrorKind = "JoinTooDeep"
)

// Execution kinds are surfaced after a real execution attempt. They are never
// retried automatically.
const (
	KindExecutionTimeout ErrorKind = "ExecutionTimeout"
	KindStorageError     ErrorKind = "StorageError"
)

// QueryError is the typed error returned by the validator, compiler, and
// executor. It carries a kind for programmatic handling and a specific,
// actionable message. Messages never reveal unwhitelisted schema details.
type QueryError struct {
	Kind    ErrorKind
	Message string
}

func (e *QueryError) Error() string { return e.Message }

// NewQueryError creates a QueryError with a formatted message.
func NewQueryError(kind ErrorKind, format string, args ...interface{}) *QueryError {
	return &QueryError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the error kind from err, or "" if err is not a QueryError.
func KindOf(err error) ErrorKind {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return ""
}

// IsExecutionError reports whether err occurred during a real execution
// attempt (as opposed to pre-execution validation).
func IsExecutionError(err error) bool {
	switch KindOf(err) {
	case KindExecutionTimeout, KindStorageError:
		return true
	}
	return false
}
