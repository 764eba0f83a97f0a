package api

import (
	"net/http"

	"github.com/bendichter/dandi-sql/internal/domain"
)

// httpStatusFromError maps the error taxonomy to HTTP status codes. Every
// pre-execution rejection is the caller's to fix, so it maps to 400; only
// failures of admitted queries surface as server-side statuses.
func httpStatusFromError(err error) int {
	switch domain.KindOf(err) {
	case domain.KindQueryTooLong,
		domain.KindNotReadOnly,
		domain.KindForbiddenOperation,
		domain.KindUnauthorizedTable,
		domain.KindUnknownModel,
		domain.KindInvalidField,
		domain.KindInvalidOperator,
		domain.KindAmbiguousPagination,
		domain.KindQueryTooComplex,
		domain.KindJoinTooDeep:
		return http.StatusBadRequest
	case domain.KindExecutionTimeout:
		return http.StatusGatewayTimeout
	case domain.KindStorageError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the uniform error response shape.
type errorBody struct {
	Success bool   `json:"success"`
	Kind    string `json:"kind,omitempty"`
	Error   string `json:"error"`
}

// writeError emits a taxonomy-mapped error response. Storage errors keep
// their detail out of the body; the audit log has it.
func writeError(w http.ResponseWriter, err error) {
	status := httpStatusFromError(err)
	msg := err.Error()
	if domain.KindOf(err) == domain.KindStorageError {
		msg = "query execution failed"
	}
	writeJSON(w, status, errorBody{
		Success: false,
		Kind:    string(domain.KindOf(err)),
		Error:   msg,
	})
}

// writeBadRequest emits a 400 for malformed request envelopes (bad JSON,
// missing body) that never reached the validator.
func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Success: false, Error: msg})
}
