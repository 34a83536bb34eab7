// Package aggregation reduces usage events to a billable quantity. Every
// aggregator is a pure function of its inputs.
package aggregation

import (
	"github.com/flexprice/billingcore/internal/domain/events"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
)

// Aggregator reduces an ordered window of events for one metric
type Aggregator interface {
	// Aggregate returns the billable quantity. An empty window yields zero.
	Aggregate(evts []*events.UsageEvent, fieldName string) decimal.Decimal

	// GetType returns the aggregation type
	GetType() types.AggregationType
}

// GetAggregator returns the aggregator for t, or nil when t is unknown
func GetAggregator(t types.AggregationType) Aggregator {
	switch t {
	case types.AggregationCount:
		return countAggregator{}
	case types.AggregationSum:
		return sumAggregator{}
	case types.AggregationMax:
		return maxAggregator{}
	case types.AggregationUniqueCount:
		return uniqueCountAggregator{}
	case types.AggregationLatest:
		return latestAggregator{}
	case types.AggregationWeightedSum:
		return weightedSumAggregator{}
	}
	return nil
}

// Aggregate is a convenience over GetAggregator. Unknown types aggregate to zero.
func Aggregate(t types.AggregationType, evts []*events.UsageEvent, fieldName string) decimal.Decimal {
	agg := GetAggregator(t)
	if agg == nil {
		return decimal.Zero
	}
	return agg.Aggregate(evts, fieldName)
}

// fieldValue reads a numeric property; missing and non-numeric values are zero
func fieldValue(e *events.UsageEvent, fieldName string) decimal.Decimal {
	if fieldName == "" {
		return decimal.Zero
	}
	d, _ := e.Properties.Decimal(fieldName)
	return d
}

type countAggregator struct{}

func (countAggregator) GetType() types.AggregationType { return types.AggregationCount }

func (countAggregator) Aggregate(evts []*events.UsageEvent, _ string) decimal.Decimal {
	return decimal.NewFromInt(int64(len(evts)))
}

type sumAggregator struct{}

func (sumAggregator) GetType() types.AggregationType { return types.AggregationSum }

func (sumAggregator) Aggregate(evts []*events.UsageEvent, fieldName string) decimal.Decimal {
	total := decimal.Zero
	for _, e := range evts {
		total = total.Add(fieldValue(e, fieldName))
	}
	return total
}

type maxAggregator struct{}

func (maxAggregator) GetType() types.AggregationType { return types.AggregationMax }

func (maxAggregator) Aggregate(evts []*events.UsageEvent, fieldName string) decimal.Decimal {
	if len(evts) == 0 {
		return decimal.Zero
	}
	max := fieldValue(evts[0], fieldName)
	for _, e := range evts[1:] {
		if v := fieldValue(e, fieldName); v.GreaterThan(max) {
			max = v
		}
	}
	return max
}

type uniqueCountAggregator struct{}

func (uniqueCountAggregator) GetType() types.AggregationType { return types.AggregationUniqueCount }

// Events without the field do not contribute a value
func (uniqueCountAggregator) Aggregate(evts []*events.UsageEvent, fieldName string) decimal.Decimal {
	seen := make(map[string]struct{}, len(evts))
	for _, e := range evts {
		v, ok := e.Properties[fieldName]
		if !ok || v == nil {
			continue
		}
		seen[types.Stringify(v)] = struct{}{}
	}
	return decimal.NewFromInt(int64(len(seen)))
}

type latestAggregator struct{}

func (latestAggregator) GetType() types.AggregationType { return types.AggregationLatest }

// On equal timestamps the event later in the input wins
func (latestAggregator) Aggregate(evts []*events.UsageEvent, fieldName string) decimal.Decimal {
	var latest *events.UsageEvent
	for _, e := range evts {
		if latest == nil || !e.Timestamp.Before(latest.Timestamp) {
			latest = e
		}
	}
	if latest == nil {
		return decimal.Zero
	}
	return fieldValue(latest, fieldName)
}

type weightedSumAggregator struct{}

func (weightedSumAggregator) GetType() types.AggregationType { return types.AggregationWeightedSum }

func (weightedSumAggregator) Aggregate(evts []*events.UsageEvent, fieldName string) decimal.Decimal {
	total := decimal.Zero
	for _, e := range evts {
		weight := e.Properties.DecimalOr(types.WeightPropertyKey, decimal.NewFromInt(1))
		total = total.Add(fieldValue(e, fieldName).Mul(weight))
	}
	return total
}
