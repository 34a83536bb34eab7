package errors

import (
	"net/http"

	"github.com/cockroachdb/errors"
)

const (
	ErrCodeHTTPClient       = "http_client_error"
	ErrCodeSystemError      = "system_error"
	ErrCodeNotFound         = "not_found"
	ErrCodeAlreadyExists    = "already_exists"
	ErrCodeVersionConflict  = "version_conflict"
	ErrCodeValidation       = "validation_error"
	ErrCodeInvalidOperation = "invalid_operation"
	ErrCodePermissionDenied = "permission_denied"
	ErrCodeDatabase         = "database_error"
	ErrCodeConfiguration    = "configuration_error"
	ErrCodeRateLimited      = "rate_limited"
)

// Sentinels errors are marked with. Classification goes through Is, never string matching.
var (
	ErrNotFound         = sentinel(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists    = sentinel(ErrCodeAlreadyExists, "resource already exists")
	ErrVersionConflict  = sentinel(ErrCodeVersionConflict, "version conflict")
	ErrValidation       = sentinel(ErrCodeValidation, "validation error")
	ErrInvalidOperation = sentinel(ErrCodeInvalidOperation, "invalid operation")
	ErrPermissionDenied = sentinel(ErrCodePermissionDenied, "permission denied")
	ErrHTTPClient       = sentinel(ErrCodeHTTPClient, "http client error")
	ErrDatabase         = sentinel(ErrCodeDatabase, "database error")
	ErrSystem           = sentinel(ErrCodeSystemError, "system error")
	// ErrConfiguration marks failures that cannot succeed until an operator fixes tenant setup,
	// e.g. no active payment provider or no saved payment method
	ErrConfiguration = sentinel(ErrCodeConfiguration, "configuration error")
	ErrRateLimited   = sentinel(ErrCodeRateLimited, "rate limited")
)

// classes is ordered: an error marked twice takes the first matching class
var classes = []struct {
	sentinel error
	status   int
}{
	{ErrValidation, http.StatusBadRequest},
	{ErrInvalidOperation, http.StatusBadRequest},
	{ErrNotFound, http.StatusNotFound},
	{ErrAlreadyExists, http.StatusConflict},
	{ErrVersionConflict, http.StatusConflict},
	{ErrPermissionDenied, http.StatusForbidden},
	{ErrConfiguration, http.StatusUnprocessableEntity},
	{ErrRateLimited, http.StatusTooManyRequests},
	{ErrHTTPClient, http.StatusInternalServerError},
	{ErrDatabase, http.StatusInternalServerError},
	{ErrSystem, http.StatusInternalServerError},
}

// InternalError is a sentinel carrying a machine-readable code
type InternalError struct {
	Code    string
	Message string
}

func (e *InternalError) Error() string {
	return e.Code + ": " + e.Message
}

func (e *InternalError) Is(target error) bool {
	t, ok := target.(*InternalError)
	return ok && e.Code == t.Code
}

func sentinel(code, message string) *InternalError {
	return &InternalError{Code: code, Message: message}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Is(err, reference error) bool {
	return errors.Is(err, reference)
}

// Join combines errs into one error, skipping nils
func Join(errs ...error) error {
	var out error
	for _, err := range errs {
		out = errors.CombineErrors(out, err)
	}
	return out
}

func IsNotFound(err error) bool         { return errors.Is(err, ErrNotFound) }
func IsAlreadyExists(err error) bool    { return errors.Is(err, ErrAlreadyExists) }
func IsVersionConflict(err error) bool  { return errors.Is(err, ErrVersionConflict) }
func IsValidation(err error) bool       { return errors.Is(err, ErrValidation) }
func IsInvalidOperation(err error) bool { return errors.Is(err, ErrInvalidOperation) }
func IsPermissionDenied(err error) bool { return errors.Is(err, ErrPermissionDenied) }
func IsHTTPClient(err error) bool       { return errors.Is(err, ErrHTTPClient) }
func IsConfiguration(err error) bool    { return errors.Is(err, ErrConfiguration) }
func IsDatabase(err error) bool         { return errors.Is(err, ErrDatabase) }
func IsRateLimited(err error) bool      { return errors.Is(err, ErrRateLimited) }

// Code returns the code of the first class err belongs to, or the system error code
func Code(err error) string {
	for _, c := range classes {
		if errors.Is(err, c.sentinel) {
			return c.sentinel.(*InternalError).Code
		}
	}
	return ErrCodeSystemError
}

func HTTPStatusFromErr(err error) int {
	for _, c := range classes {
		if errors.Is(err, c.sentinel) {
			return c.status
		}
	}
	return http.StatusInternalServerError
}
