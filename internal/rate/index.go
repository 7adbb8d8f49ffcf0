package rate

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// IndexEntry is one market index as supplied with a request. A nil field is
// absent; a NaN field is present but non-numeric.
type IndexEntry struct {
	Name     string
	Current  *float64
	Baseline *float64
	Weight   *float64 // percent
}

// IndexConfig is an ordered set of market indices.
type IndexConfig []IndexEntry

// WeightedIndex is the aggregated market multiplier, centred on 1.0.
type WeightedIndex struct {
	Value   float64  `json:"value"`
	Sources []string `json:"sources"`
}

// NeutralIndex is returned when no index can be used.
var NeutralIndex = WeightedIndex{Value: 1.0, Sources: []string{}}

// Float is a convenience for building IndexEntry values.
func Float(v float64) *float64 { return &v }

func usable(p *float64) bool {
	return p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0)
}

func snapshot(p *float64) any {
	if p == nil {
		return nil
	}
	return traceNumber(*p)
}

// AggregateIndices combines usable indices into a weighted average of
// current/baseline ratios, renormalized by the total weight actually used.
// It never fails: without a usable index the result is NeutralIndex.
func AggregateIndices(cfg IndexConfig) (WeightedIndex, Step) {
	indices := map[string]any{}
	step := Step{Stage: StageIndex, Inputs: map[string]any{"indices": indices}, Result: 1.0, Status: StatusFailed}

	if len(cfg) == 0 {
		step.Status = StatusWarning
		step.Details = "Index configuration is empty or missing. Using default index value 1.0."
		return NeutralIndex, step
	}

	var (
		weightedSum, totalWeight float64
		sources                  []string
		skipped                  []string
	)
	for _, e := range cfg {
		in := map[string]any{
			"current":  snapshot(e.Current),
			"baseline": snapshot(e.Baseline),
			"weight":   snapshot(e.Weight),
			"found":    false,
		}
		indices[e.Name] = in

		if e.Current == nil || e.Baseline == nil || e.Weight == nil || *e.Weight <= 0 {
			in["reason"] = "Zero weight or missing data in config"
			continue
		}
		ratio := *e.Current / *e.Baseline
		if !usable(e.Current) || !usable(e.Baseline) || !usable(e.Weight) || *e.Baseline <= 0 || !usable(&ratio) {
			in["reason"] = fmt.Sprintf("Invalid data: currentValue=%v, baselineValue=%v, weight=%v", *e.Current, *e.Baseline, *e.Weight)
			skipped = append(skipped, e.Name)
			continue
		}

		w := *e.Weight / 100
		weightedSum += w * ratio
		totalWeight += w
		in["found"] = true
		in["ratio"] = decimal.NewFromFloat(ratio).StringFixed(3)
		sources = append(sources, e.Name)
	}

	step.Inputs["weightedSum"] = traceNumber(weightedSum)
	step.Inputs["totalWeightUsed"] = traceNumber(totalWeight)

	if totalWeight <= 0 {
		step.Status = StatusWarning
		step.Details = "No valid indices with positive weight found in config. Using default index value 1.0."
		return NeutralIndex, step
	}

	value := weightedSum / totalWeight
	if math.IsNaN(value) || math.IsInf(value, 0) || math.IsInf(totalWeight, 0) {
		step.Status = StatusError
		step.Error = fmt.Sprintf("weighted index is not finite (sum=%v, weight=%v)", weightedSum, totalWeight)
		return NeutralIndex, step
	}

	step.Result = value
	step.Status = StatusSuccess
	step.Details = fmt.Sprintf("Calculated weighted index using: %s. Total weight used: %s%%.",
		strings.Join(sources, ", "), decimal.NewFromFloat(totalWeight*100).StringFixed(1))
	if len(skipped) > 0 {
		step.Details += fmt.Sprintf(" Skipped due to invalid data: %s.", strings.Join(skipped, ", "))
	}
	return WeightedIndex{Value: value, Sources: sources}, step
}
