package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
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

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrState        = New("STATE_ERROR", http.StatusConflict, "invalid state transition")
	ErrConsistency  = New("CONSISTENCY_ERROR", http.StatusUnprocessableEntity, "inconsistent data")
	ErrGradeLocked  = New("GRADE_LOCKED", http.StatusLocked, "grade is locked; override and reason required")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	ErrDuplicateEnrollment = New("DUPLICATE_ENROLLMENT", http.StatusConflict, "enrollment already exists")
	ErrCapacityExceeded    = New("CAPACITY_EXCEEDED", http.StatusConflict, "group has no free seats")
	ErrDuplicateGrade      = New("DUPLICATE_GRADE", http.StatusConflict, "grade already exists")
	ErrReasonRequired      = New("REASON_REQUIRED", http.StatusBadRequest, "reason is required")
	ErrInvalidAttendance   = New("INVALID_ATTENDANCE", http.StatusUnprocessableEntity, "attendance counts inconsistent")
	ErrAlreadyAwarded      = New("ALREADY_AWARDED", http.StatusConflict, "badge already awarded")
	ErrScopeLocked         = New("SCOPE_LOCKED", http.StatusConflict, "ranking scope is being recomputed; retry later")
	ErrEmptyScope          = New("EMPTY_SCOPE", http.StatusUnprocessableEntity, "ranking scope contains no students")
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

// Is reports whether err carries the same code as target.
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == target.Code
}
