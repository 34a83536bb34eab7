package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilderMarksSentinel(t *testing.T) {
	err := NewError("coupon exhausted").
		WithHint("Coupon has no redemptions left").
		WithReportableDetails(map[string]any{"coupon_id": "coupon_1"}).
		Mark(ErrAlreadyExists)

	assert.True(t, IsAlreadyExists(err))
	assert.False(t, IsNotFound(err))
	assert.Equal(t, http.StatusConflict, HTTPStatusFromErr(err))
	assert.Contains(t, Hint(err), "no redemptions left")
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"validation", NewError("bad").Mark(ErrValidation), false},
		{"not found", NewError("missing").Mark(ErrNotFound), false},
		{"configuration", NewError("no provider").Mark(ErrConfiguration), false},
		{"canceled", fmt.Errorf("wrapped: %w", context.Canceled), false},
		{"database", NewError("conn reset").Mark(ErrDatabase), true},
		{"http", NewError("timeout").Mark(ErrHTTPClient), true},
		{"version conflict", NewError("stale").Mark(ErrVersionConflict), true},
		{"plain", fmt.Errorf("boom"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestConfigurationStatus(t *testing.T) {
	err := WithError(fmt.Errorf("no saved method")).Mark(ErrConfiguration)
	assert.True(t, IsConfiguration(err))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatusFromErr(err))
}

func TestErrorResponseKeepsInternalMessagesPrivate(t *testing.T) {
	err := WithError(fmt.Errorf("pq: relation \"invoices\" does not exist")).
		WithMessage("select invoice").
		WithHint("Invoice not found").
		WithReportableDetails(map[string]any{"invoice_id": "inv_1"}).
		WithReportableDetails(map[string]any{"tenant_id": "tenant_a"}).
		Mark(ErrNotFound)

	resp := NewErrorResponse(err, "req_1")
	assert.False(t, resp.Success)
	assert.Equal(t, "req_1", resp.RequestID)
	assert.Equal(t, "Invoice not found", resp.Error.Message)
	assert.Equal(t, map[string]any{"invoice_id": "inv_1", "tenant_id": "tenant_a"}, resp.Error.Details)
	assert.NotContains(t, resp.Error.Message, "pq:")
}

func TestErrorResponseFallsBackWithoutHint(t *testing.T) {
	resp := NewErrorResponse(fmt.Errorf("boom"), "")
	assert.Equal(t, defaultDisplayMessage, resp.Error.Message)
	assert.Nil(t, resp.Error.Details)
}

func TestCodeFollowsClassOrder(t *testing.T) {
	err := WithError(NewError("stale").Mark(ErrVersionConflict)).
		WithHint("Invoice changed").
		Mark(ErrValidation)

	assert.Equal(t, ErrCodeValidation, Code(err))
	assert.Equal(t, http.StatusBadRequest, HTTPStatusFromErr(err))
	assert.Equal(t, ErrCodeSystemError, Code(fmt.Errorf("boom")))
}

func TestRateLimitedIsRetryableWith429(t *testing.T) {
	err := NewError("tenant ingest rate exceeded").Mark(ErrRateLimited)
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatusFromErr(err))
	assert.Equal(t, ErrCodeRateLimited, Code(err))
	assert.True(t, IsRetryable(err))
}
