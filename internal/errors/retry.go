package errors

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

// IsRetryable reports whether a failed unit of work may succeed if it runs again.
// Caller mistakes and configuration problems are final; infrastructure failures,
// lost optimistic updates and timeouts are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case IsValidation(err),
		IsNotFound(err),
		IsAlreadyExists(err),
		IsInvalidOperation(err),
		IsPermissionDenied(err),
		IsConfiguration(err):
		return false
	case errors.Is(err, context.Canceled):
		return false
	}

	return true
}

// Hint returns the user facing hints attached to an error, joined by newlines
func Hint(err error) string {
	return errors.FlattenHints(err)
}

func hintsOf(err error) []string {
	var hints []string
	for _, hint := range errors.GetAllHints(err) {
		if hint = strings.TrimSpace(hint); hint != "" {
			hints = append(hints, hint)
		}
	}
	return hints
}
