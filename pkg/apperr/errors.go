package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Severity tells the client how an error should be surfaced.
type Severity string

const (
	// SeverityFatal errors block the whole grid until fixed outside the app.
	SeverityFatal Severity = "fatal"
	// SeverityInline errors are shown next to the form that caused them.
	SeverityInline Severity = "inline"
	// SeverityToast errors are shown briefly and dismissed automatically.
	SeverityToast Severity = "toast"
)

// Error is the application error shared by every package.
type Error struct {
	Code       string
	Message    string
	HTTPStatus int
	Severity   Severity
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors by code so that a wrapped copy still equals its sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap returns a copy of the sentinel carrying cause as its underlying error.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// WithMessage returns a copy of the sentinel with a more specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

func newError(code, message string, status int, severity Severity) *Error {
	return &Error{Code: code, Message: message, HTTPStatus: status, Severity: severity}
}

// Backing service failures.
var (
	ErrConfiguration = newError("CONFIGURATION_ERROR", "backing service is unreachable or misconfigured", http.StatusServiceUnavailable, SeverityFatal)
	ErrPermission    = newError("PERMISSION_DENIED", "backing service denied access", http.StatusForbidden, SeverityFatal)
	ErrNotReady      = newError("NOT_READY", "still initializing", http.StatusServiceUnavailable, SeverityInline)
	ErrBusy          = newError("STORE_BUSY", "backing service is busy, try again", http.StatusServiceUnavailable, SeverityToast)
)

// Auth flow failures.
var (
	ErrUnknownAccount       = newError("UNKNOWN_ACCOUNT", "account id not found", http.StatusNotFound, SeverityInline)
	ErrWeakPassword         = newError("WEAK_PASSWORD", "password must be at least 4 characters", http.StatusBadRequest, SeverityInline)
	ErrBadPassword          = newError("BAD_PASSWORD", "password is incorrect", http.StatusUnauthorized, SeverityInline)
	ErrInvalidTransition    = newError("INVALID_TRANSITION", "action not allowed in the current step", http.StatusConflict, SeverityInline)
	ErrConfirmationRequired = newError("CONFIRMATION_REQUIRED", "reset must be confirmed", http.StatusPreconditionRequired, SeverityInline)
	ErrUnauthorized         = newError("UNAUTHORIZED", "authentication required", http.StatusUnauthorized, SeverityInline)
	ErrForbidden            = newError("FORBIDDEN", "not allowed for this role", http.StatusForbidden, SeverityInline)
)

// Assignment validation failures.
var (
	ErrNoAvailabilityDeclared = newError("NO_AVAILABILITY_DECLARED", "availability has not been declared for this day", http.StatusUnprocessableEntity, SeverityToast)
	ErrDayUnavailable         = newError("DAY_UNAVAILABLE", "staff member is unavailable on this day", http.StatusUnprocessableEntity, SeverityToast)
)

// Task catalog failures.
var (
	ErrEmptyName     = newError("EMPTY_NAME", "task name is required", http.StatusBadRequest, SeverityInline)
	ErrDuplicateName = newError("DUPLICATE_NAME", "a task with the same name already exists", http.StatusConflict, SeverityInline)
	ErrTaskNotFound  = newError("TASK_NOT_FOUND", "task not found", http.StatusNotFound, SeverityInline)
)

// Generic failures.
var (
	ErrValidation = newError("VALIDATION_FAILED", "invalid request", http.StatusBadRequest, SeverityInline)
	ErrNotFound   = newError("NOT_FOUND", "resource not found", http.StatusNotFound, SeverityInline)
	ErrInternal   = newError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError, SeverityFatal)
)

// From converts any error into an *Error, defaulting to ErrInternal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal.Wrap(err)
}

// IsFatal reports whether err should block the grid.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return From(err).Severity == SeverityFatal
}
