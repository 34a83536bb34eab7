package types

import (
	"fmt"
)

// AggregationType is the reduction applied to a metric's usage events
type AggregationType string

const (
	AggregationCount       AggregationType = "COUNT"
	AggregationSum         AggregationType = "SUM"
	AggregationMax         AggregationType = "MAX"
	AggregationUniqueCount AggregationType = "UNIQUE_COUNT"
	AggregationLatest      AggregationType = "LATEST"
	AggregationWeightedSum AggregationType = "WEIGHTED_SUM"
)

// WeightPropertyKey is the event property WEIGHTED_SUM multiplies the field by
const WeightPropertyKey = "weight"

func (t AggregationType) Validate() error {
	switch t {
	case AggregationCount, AggregationSum, AggregationMax,
		AggregationUniqueCount, AggregationLatest, AggregationWeightedSum:
		return nil
	}
	return fmt.Errorf("invalid aggregation type: %s", t)
}

// RequiresField reports whether the aggregation reads a property from the event payload
func (t AggregationType) RequiresField() bool {
	return t != AggregationCount
}
