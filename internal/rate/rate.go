// Package rate estimates ocean-freight container rates from a base-rate
// table, market indices and a seasonality factor.
package rate

import (
	"encoding/json"
	"math"
)

// DefaultWeight is the cargo weight recorded with every calculation. The
// formula does not use it.
const DefaultWeight = 20000.0

// CriticalRate is the FinalRate reported when no rate could be produced.
const CriticalRate = -1.0

// Request is the input of one calculation.
type Request struct {
	OriginPortID      string
	DestinationPortID string
	ContainerType     string
	BaseRates         BaseRatesConfig
	Indices           IndexConfig
	SensitivityCoeff  float64
	Weight            float64
	Debug             bool
}

// Details carries the intermediate values behind a Result.
type Details struct {
	OriginRegion          *Region  `json:"originRegion,omitempty"`
	DestinationRegion     *Region  `json:"destinationRegion,omitempty"`
	ContainerClass        string   `json:"containerClass,omitempty"`
	IndexSources          []string `json:"indexSources"`
	SeasonalityConfidence float64  `json:"seasonalityConfidence"`
	SensitivityCoeff      float64  `json:"sensitivityCoeff"`
	IndexAdjustment       float64  `json:"indexAdjustment"`
	CalculationTimeMs     int64    `json:"calculationTimeMs"`
}

// MarshalJSON writes non-finite coefficients as null. A caller may pass an
// infinite sensitivity, which the formula reports as a degraded rate.
func (d Details) MarshalJSON() ([]byte, error) {
	type wire Details
	return json.Marshal(struct {
		wire
		SeasonalityConfidence *float64 `json:"seasonalityConfidence"`
		SensitivityCoeff      *float64 `json:"sensitivityCoeff"`
		IndexAdjustment       *float64 `json:"indexAdjustment"`
	}{
		wire:                  wire(d),
		SeasonalityConfidence: finite(d.SeasonalityConfidence),
		SensitivityCoeff:      finite(d.SensitivityCoeff),
		IndexAdjustment:       finite(d.IndexAdjustment),
	})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Result is the outcome of a calculation. FinalRate is a non-negative whole
// number, the unrounded base rate when the formula degraded, or CriticalRate.
type Result struct {
	FinalRate         float64 `json:"finalRate"`
	BaseRate          float64 `json:"baseRate"`
	WeightedIndex     float64 `json:"weightedIndex"`
	SeasonalityFactor float64 `json:"seasonalityFactor"`
	Details           Details `json:"calculationDetails"`
	Error             string  `json:"error,omitempty"`
	Trace             Trace   `json:"debugLog,omitempty"`
}

// OK reports whether the result holds a usable rate.
func (r Result) OK() bool { return r.FinalRate != CriticalRate }
