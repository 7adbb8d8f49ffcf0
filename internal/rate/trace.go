package rate

import (
	"fmt"
	"math"
)

// Status tags the outcome of a single calculation step.
type Status string

const (
	StatusSuccess Status = "Success"
	StatusWarning Status = "Warning"
	StatusFailed  Status = "Failed"
	StatusError   Status = "Error"
)

// Stage names as they appear in the trace.
const (
	StageStart       = "Start Calculation"
	StageRegions     = "Get Regions"
	StageBaseRate    = "Get Base Rate"
	StageIndex       = "Calculate Weighted Index"
	StageSeasonality = "Get Seasonality Factor"
	StageFinalRate   = "Calculate Final Rate"
	StageEnd         = "End Calculation"
	StageCritical    = "Critical Error"
)

// Step records one stage of a calculation.
type Step struct {
	Stage   string         `json:"stage"`
	Inputs  map[string]any `json:"inputs,omitempty"`
	Result  any            `json:"result,omitempty"`
	Status  Status         `json:"status"`
	Details string         `json:"details,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Trace is the ordered diagnostic log of one calculation.
type Trace []Step

// traceNumber keeps trace values encodable: JSON has no NaN or Inf, so
// those are recorded by name.
func traceNumber(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Sprint(v)
	}
	return v
}

// Stage returns the first step with the given stage name.
func (t Trace) Stage(name string) (Step, bool) {
	for _, s := range t {
		if s.Stage == name {
			return s, true
		}
	}
	return Step{}, false
}
