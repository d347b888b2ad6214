package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to callers.
const (
	CodeCycleNotFound        = "CYCLE_NOT_FOUND"
	CodeInsufficientStock    = "INSUFFICIENT_STOCK"
	CodeInvalidConfiguration = "INVALID_CONFIGURATION"
	CodeMalformedRecord      = "MALFORMED_RECORD"
	CodeNotFound             = "RESOURCE_NOT_FOUND"
	CodeValidation           = "VALIDATION_ERROR"
	CodeInternal             = "INTERNAL_ERROR"
)

// Sentinels for errors.Is checks. Matching is done on Code only, so any
// AppError carrying the same code satisfies errors.Is(err, ErrCycleNotFound).
var (
	ErrCycleNotFound        = &AppError{Code: CodeCycleNotFound}
	ErrInsufficientStock    = &AppError{Code: CodeInsufficientStock}
	ErrInvalidConfiguration = &AppError{Code: CodeInvalidConfiguration}
	ErrMalformedRecord      = &AppError{Code: CodeMalformedRecord}
	ErrNotFound             = &AppError{Code: CodeNotFound}
	ErrValidation           = &AppError{Code: CodeValidation}
)

// AppError is an application error carrying a stable code, an HTTP status
// and free-form details identifying the offending record or field.
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	HTTPStatus int               `json:"-"`
	Err        error             `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetail adds a single detail to the error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Wrap attaches the underlying cause.
func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

// New creates an AppError.
func New(code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

// CycleNotFound reports a missing production cycle.
func CycleNotFound(id int64) *AppError {
	return New(CodeCycleNotFound, fmt.Sprintf("cycle %d not found", id), http.StatusNotFound).
		WithDetail("cycle_id", fmt.Sprint(id))
}

// InsufficientStock reports a withdrawal that would drive stock negative.
func InsufficientStock(itemID int64, onHand, requested float64) *AppError {
	return New(CodeInsufficientStock,
		fmt.Sprintf("inventory item %d has %g on hand, %g requested", itemID, onHand, requested),
		http.StatusConflict).
		WithDetail("item_id", fmt.Sprint(itemID))
}

// InvalidConfiguration reports a missing or impossible rate, price or count.
func InvalidConfiguration(field, reason string) *AppError {
	return New(CodeInvalidConfiguration, fmt.Sprintf("%s: %s", field, reason), http.StatusUnprocessableEntity).
		WithDetail("field", field)
}

// MalformedRecord reports a record missing a field the calculation requires.
func MalformedRecord(collection string, id int64, field, reason string) *AppError {
	return New(CodeMalformedRecord,
		fmt.Sprintf("%s record %d: %s %s", collection, id, field, reason),
		http.StatusUnprocessableEntity).
		WithDetail("collection", collection).
		WithDetail("id", fmt.Sprint(id)).
		WithDetail("field", field)
}

// NotFound reports a missing non-cycle resource.
func NotFound(resource string, id int64) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s %d not found", resource, id), http.StatusNotFound).
		WithDetail("id", fmt.Sprint(id))
}

// Validation reports bad caller input that is not a stored record.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// From converts any error into an AppError, defaulting to an internal error.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.HTTPStatus == 0 {
			appErr.HTTPStatus = http.StatusInternalServerError
		}
		return appErr
	}
	return New(CodeInternal, "internal server error", http.StatusInternalServerError).Wrap(err)
}
