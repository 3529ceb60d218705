// Package apperror defines the error taxonomy shared by the authorization kernel,
// the workflow state machine and the orchestration services.
package apperror

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/lib/pq"
)

// Kind classifies an error so the transport layer can pick a status without
// parsing messages.
type Kind string

const (
	KindUnauthenticated   Kind = "unauthenticated"
	KindUnauthorized      Kind = "unauthorized"
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindConflict          Kind = "conflict"
	KindValidation        Kind = "validation_error"
	KindTransient         Kind = "transient"
	KindInternal          Kind = "internal_error"
)

// Error is the structured error returned across module boundaries.
type Error struct {
	Kind    Kind   `json:"code"`
	Message string `json:"message"`
	// Reason is the machine-readable denial code for KindUnauthorized and
	// KindUnauthenticated.
	Reason  string `json:"reason,omitempty"`
	Details any    `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches on kind so callers can write errors.Is(err, apperror.ErrConflict).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Reason == ""
}

// HTTPStatus maps the kind to the status a client sees.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindUnauthorized:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidTransition, KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WithDetails returns a copy of the error carrying details.
func (e *Error) WithDetails(details any) *Error {
	c := *e
	c.Details = details
	return &c
}

// Sentinels for errors.Is comparisons.
var (
	ErrUnauthenticated   = &Error{Kind: KindUnauthenticated}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrTransient         = &Error{Kind: KindTransient}
)

func Unauthenticated(message string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: message, Reason: "not-authenticated"}
}

// Unauthorized builds an access-denied error carrying the kernel's reason code.
func Unauthorized(reason, message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message, Reason: reason}
}

func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

func InvalidTransition(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

// Stale reports that a conditional write lost a race against another writer.
func Stale(entity string) *Error {
	return &Error{Kind: KindInvalidTransition, Message: entity + " was modified concurrently; reload and retry"}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Field builds a validation error pointing at a single payload field.
func Field(field, message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: fmt.Sprintf("%s: %s", field, message),
		Details: map[string]string{"field": field, "error": message},
	}
}

// Internal wraps an unexpected failure.
func Internal(err error, message string) *Error {
	return &Error{Kind: KindInternal, Message: message, cause: err}
}

// Transient wraps a retryable data-access failure.
func Transient(err error) *Error {
	return &Error{Kind: KindTransient, Message: "temporary data access failure, retry", cause: err}
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}

// ViolatedConstraint names the constraint behind a PostgreSQL unique
// violation, or "" for any other error.
func ViolatedConstraint(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return pqErr.Constraint
	}
	return ""
}

// Classify converts a raw data-access error into the taxonomy. Errors that are
// already classified pass through unchanged; entity names the row kind for
// not-found messages.
func Classify(err error, entity string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound(entity)
	}
	if IsUniqueViolation(err) {
		return &Error{Kind: KindConflict, Message: entity + " already exists", cause: err}
	}
	if IsTransient(err) {
		return Transient(err)
	}
	return Internal(err, "unexpected "+entity+" storage failure")
}

// IsTransient reports whether err is a timeout or connection failure that is
// safe to retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		class := string(pqErr.Code.Class())
		// 08: connection exception, 57: operator intervention, 40: serialization/deadlock.
		return class == "08" || class == "57" || class == "40"
	}
	return false
}
