package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error. Code doubles as the audit reason for
// backfill decisions.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so clones and wraps of a
// predefined error still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// WrapAs wraps err using the code, status and message of a predefined error.
func WrapAs(err error, kind *Error) *Error {
	return Wrap(err, kind.Code, kind.Status, kind.Message)
}

// Predefined errors for common scenarios.
var (
	ErrNotFound   = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrValidation = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal   = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss  = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Scope resolution and backfill errors.
var (
	ErrScopeNotFound         = New("SCOPE_NOT_FOUND", http.StatusNotFound, "no employee scope found")
	ErrUnresolvableScope     = New("UNRESOLVABLE_SCOPE", http.StatusUnprocessableEntity, "scope has no zones or no wards")
	ErrInconsistentHierarchy = New("INCONSISTENT_HIERARCHY", http.StatusConflict, "ward does not belong to zone")
	ErrPersistenceFailure    = New("PERSISTENCE_FAILURE", http.StatusInternalServerError, "location update could not be committed")
	ErrLocationAlreadySet    = New("LOCATION_ALREADY_SET", http.StatusConflict, "work item location already set")
	ErrRunAborted            = New("RUN_ABORTED", http.StatusServiceUnavailable, "run aborted")
	ErrScanFailed            = New("SCAN_FAILED", http.StatusServiceUnavailable, "failed to scan work items")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
