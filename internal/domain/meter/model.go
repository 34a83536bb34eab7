package meter

import (
	"strings"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
)

// BillableMetric describes how usage events with a given code reduce to a quantity.
// It is treated as immutable once events reference it.
type BillableMetric struct {
	ID              string                `db:"id" json:"id"`
	Code            string                `db:"code" json:"code"`
	Name            string                `db:"name" json:"name"`
	AggregationType types.AggregationType `db:"aggregation_type" json:"aggregation_type"`
	FieldName       string                `db:"field_name" json:"field_name,omitempty"`
	types.BaseModel
}

func (m *BillableMetric) Validate() error {
	if strings.TrimSpace(m.Code) == "" {
		return ierr.NewError("metric code is required").
			WithHint("Billable metric code is required").
			Mark(ierr.ErrValidation)
	}
	if err := m.AggregationType.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Unsupported aggregation type").
			WithReportableDetails(map[string]any{"aggregation_type": m.AggregationType}).
			Mark(ierr.ErrValidation)
	}
	if m.AggregationType.RequiresField() && m.FieldName == "" {
		return ierr.NewError("field name is required").
			WithHintf("Aggregation %s reads a property, field_name is required", m.AggregationType).
			Mark(ierr.ErrValidation)
	}
	return nil
}
