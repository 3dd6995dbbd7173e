// Package model defines shared data structures.
package model

import (
	"encoding/json"
	"math"
)

// RawEvent is a single event-level record from the raw dataset.
type RawEvent struct {
	Hour  int64
	Click float64
}

// AggregatedPoint is one hourly bucket of the aggregated series.
type AggregatedPoint struct {
	Date  string  `json:"date" yaml:"date"`
	Click float64 `json:"click" yaml:"click"`
}

// NullFloat is a float64 that may be undefined.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

// Null is the undefined NullFloat.
var Null = NullFloat{}

// Float returns a defined NullFloat. Non-finite values are undefined.
func Float(v float64) NullFloat {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Null
	}
	return NullFloat{Float64: v, Valid: true}
}


// MarshalJSON encodes undefined values as null.
func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Float64)
}

// MarshalYAML encodes undefined values as null.
func (n NullFloat) MarshalYAML() (interface{}, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.Float64, nil
}
