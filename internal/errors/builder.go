package errors

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

const detailsPrefix = "__json__:"

// ErrorBuilder builds an error in a chain that must end with Mark.
// It is not an error itself.
type ErrorBuilder struct {
	err     error
	details map[string]any
}

func NewError(msg string) *ErrorBuilder {
	return &ErrorBuilder{err: errors.New(msg)}
}

func WithError(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// WithMessage wraps the error with internal context. It never reaches API callers.
func (b *ErrorBuilder) WithMessage(msg string) *ErrorBuilder {
	b.err = errors.WithMessage(b.err, msg)
	return b
}

func (b *ErrorBuilder) WithMessagef(format string, args ...any) *ErrorBuilder {
	b.err = errors.WithMessagef(b.err, format, args...)
	return b
}

// WithHint attaches the message shown to API callers
func (b *ErrorBuilder) WithHint(hint string) *ErrorBuilder {
	b.err = errors.WithHint(b.err, hint)
	return b
}

func (b *ErrorBuilder) WithHintf(format string, args ...any) *ErrorBuilder {
	b.err = errors.WithHintf(b.err, format, args...)
	return b
}

// WithReportableDetails adds structured details that are safe to return and
// report. Repeated calls merge, later keys win.
func (b *ErrorBuilder) WithReportableDetails(details map[string]any) *ErrorBuilder {
	if b.details == nil {
		b.details = make(map[string]any, len(details))
	}
	for k, v := range details {
		b.details[k] = v
	}
	return b
}

// Mark tags the error with a sentinel so callers can classify it with Is
func (b *ErrorBuilder) Mark(reference error) error {
	if len(b.details) > 0 {
		if marshaled, err := json.Marshal(b.details); err == nil {
			b.err = errors.WithSafeDetails(b.err, detailsPrefix+"%s", errors.Safe(string(marshaled)))
		}
	}
	return errors.Mark(b.err, reference)
}

// Details collects every reportable detail attached along the error chain.
// On conflicting keys the first one found wins.
func Details(err error) map[string]any {
	details := make(map[string]any)
	for _, sdp := range errors.GetAllSafeDetails(err) {
		for _, payload := range sdp.SafeDetails {
			if len(payload) <= len(detailsPrefix) || payload[:len(detailsPrefix)] != detailsPrefix {
				continue
			}
			var m map[string]any
			if json.Unmarshal([]byte(payload[len(detailsPrefix):]), &m) != nil {
				continue
			}
			for k, v := range m {
				if _, ok := details[k]; !ok {
					details[k] = v
				}
			}
		}
	}
	return details
}
