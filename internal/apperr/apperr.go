// Package apperr defines the error taxonomy shared by the attendance core and
// its HTTP surface.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure so callers can react without string matching.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindAuthorization
	KindState
	KindNotFound
	KindCredentialInvalid
	KindConflict
	KindInfrastructure
)

// String returns the public error code for the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindUnauthenticated:
		return "unauthorized"
	case KindAuthorization:
		return "forbidden"
	case KindState:
		return "invalid_state"
	case KindNotFound:
		return "not_found"
	case KindCredentialInvalid:
		return "credential_invalid"
	case KindConflict:
		return "conflict"
	case KindInfrastructure:
		return "infrastructure_unavailable"
	default:
		return "internal_server_error"
	}
}

// HTTPStatus maps a kind onto the status code the API answers with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindCredentialInvalid:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindState, KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindInfrastructure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the structured error returned by services. Reason is only set for
// credential failures and carries the specific rejection cause.
type Error struct {
	Kind    Kind
	Message string
	Reason  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(msg string) *Error { return New(KindValidation, msg) }
func Unauthenticated(msg string) *Error { return New(KindUnauthenticated, msg) }
func Forbidden(msg string) *Error { return New(KindAuthorization, msg) }
func State(msg string) *Error { return New(KindState, msg) }
func NotFound(msg string) *Error { return New(KindNotFound, msg) }
func Conflict(msg string) *Error { return New(KindConflict, msg) }

// Infra wraps a store or transport failure.
func Infra(msg string, err error) *Error {
	return Wrap(KindInfrastructure, msg, err)
}

// InvalidCredential reports a rejected credential with its reason code.
func InvalidCredential(reason, msg string) *Error {
	return &Error{Kind: KindCredentialInvalid, Message: msg, Reason: reason}
}

// KindOf extracts the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// ReasonOf returns the credential rejection reason carried by err, if any.
func ReasonOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Reason
	}
	return ""
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
