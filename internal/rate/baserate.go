package rate

import (
	"fmt"
	"math"
)

// FallbackBaseRate is used when no configured rate applies.
const FallbackBaseRate = 2000.0

// BaseRatesConfig maps origin region → destination region → container class → price.
// The "Unknown" region key holds defaults.
type BaseRatesConfig map[string]map[string]map[string]float64

func (c BaseRatesConfig) lookup(origin, destination string, class ContainerClass) (float64, bool) {
	byDest, ok := c[origin]
	if !ok {
		return 0, false
	}
	byClass, ok := byDest[destination]
	if !ok {
		return 0, false
	}
	price, ok := byClass[string(class)]
	return price, ok
}

// LookupBaseRate resolves the base price for a lane: exact route, then the
// origin region default, then the global default, then FallbackBaseRate.
// A malformed price (negative or not finite) yields FallbackBaseRate with an
// Error step.
func LookupBaseRate(origin, destination Region, class ContainerClass, cfg BaseRatesConfig) (float64, Step) {
	step := Step{
		Stage: StageBaseRate,
		Inputs: map[string]any{
			"originRegion":            origin.String(),
			"destinationRegion":       destination.String(),
			"normalizedContainerType": string(class),
		},
		Status: StatusFailed,
	}

	candidates := []struct {
		origin, destination string
		note                string
	}{
		{origin.String(), destination.String(), ""},
		{origin.String(), Unknown.String(), fmt.Sprintf(" Used default for origin region %s.", origin)},
		{Unknown.String(), Unknown.String(), " Used global default."},
	}

	rate, found := FallbackBaseRate, false
	for i, c := range candidates {
		price, ok := cfg.lookup(c.origin, c.destination, class)
		if !ok {
			if i == 0 {
				step.Details = fmt.Sprintf("Exact route %s->%s %s not found. Trying fallbacks.", origin, destination, class)
			}
			continue
		}
		if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
			step.Status = StatusError
			step.Error = fmt.Sprintf("malformed base rate %v for %s->%s %s", price, c.origin, c.destination, class)
			step.Result = FallbackBaseRate
			return FallbackBaseRate, step
		}
		step.Details += c.note
		rate, found = price, true
		break
	}
	if !found {
		step.Details += fmt.Sprintf(" Used absolute fallback value %g.", FallbackBaseRate)
	}

	step.Result = rate
	step.Status = StatusSuccess
	return rate, step
}
