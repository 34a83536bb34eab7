package httpclient

import (
	goerrors "errors"
	"fmt"

	ierr "github.com/flexprice/billingcore/internal/errors"
)

// Error is a non-2xx response
type Error struct {
	StatusCode int
	Response   []byte
	cause      error
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Error() string {
	return e.cause.Error()
}

// NewError creates a new HTTP client error
func NewError(statusCode int, response []byte) *Error {
	return &Error{
		StatusCode: statusCode,
		Response:   response,
		cause: ierr.NewError(fmt.Sprintf("unexpected status code %d", statusCode)).
			WithHintf("Remote endpoint responded with status %d", statusCode).
			WithReportableDetails(map[string]any{"status_code": statusCode}).
			Mark(ierr.ErrHTTPClient),
	}
}

// IsHTTPError checks if an error is an HTTP client error
func IsHTTPError(err error) (*Error, bool) {
	var httpErr *Error
	if goerrors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}
