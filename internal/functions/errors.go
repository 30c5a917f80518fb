// Package functions implements the privileged server procedures invoked by
// the dashboard. Each procedure runs with service-level database credentials
// and performs its own authorization checks; client-side gating is never
// trusted.
package functions

import "net/http"

// Kind classifies procedure failures for the response envelope.
type Kind string

const (
	KindValidation   Kind = "validation_error"
	KindUnauthorized Kind = "unauthorized"
	KindAuthProvider Kind = "auth_provider_error"
	KindProfileWrite Kind = "profile_write_error"
	KindOperation    Kind = "operation_error"
	// KindInconsistent marks a failed write whose compensation also
	// failed: an identity may exist without a profile and needs manual
	// cleanup. Distinct from KindProfileWrite on purpose.
	KindInconsistent Kind = "inconsistent_state"
	KindInternal     Kind = "internal_error"
)

// Error is a classified procedure failure. Downstream provider messages are
// passed through verbatim.
type Error struct {
	Kind    Kind
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// HTTPStatus maps the failure to its response code. Everything except
// unexpected internal failures is a caller-visible 400.
func (e *Error) HTTPStatus() int {
	if e.Kind == KindInternal {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

func errf(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}
