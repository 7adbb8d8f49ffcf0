package rate

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultOK(t *testing.T) {
	assert.True(t, Result{FinalRate: 0}.OK())
	assert.True(t, Result{FinalRate: 2615}.OK())
	assert.False(t, Result{FinalRate: CriticalRate}.OK())
}

func TestResultWireShape(t *testing.T) {
	origin, dest := KnownRegion(RegionAsia), OtherRegion("Arctic")
	res := Result{
		FinalRate:         2615,
		BaseRate:          2500,
		WeightedIndex:     1.0917,
		SeasonalityFactor: 1,
		Details: Details{
			OriginRegion:      &origin,
			DestinationRegion: &dest,
			ContainerClass:    string(Container40HC),
			IndexSources:      []string{"SCFI"},
			SensitivityCoeff:  0.5,
		},
	}
	b, err := json.Marshal(res)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(b, &wire))
	assert.Equal(t, 2615.0, wire["finalRate"])
	assert.NotContains(t, wire, "debugLog")
	assert.NotContains(t, wire, "error")

	details := wire["calculationDetails"].(map[string]any)
	assert.Equal(t, "Asia", details["originRegion"])
	assert.Equal(t, "Arctic", details["destinationRegion"])
	assert.Equal(t, "40HC", details["containerClass"])

	var back Result
	require.NoError(t, json.Unmarshal(b, &back))
	require.NotNil(t, back.Details.OriginRegion)
	assert.Equal(t, origin, *back.Details.OriginRegion)
	assert.Equal(t, dest, *back.Details.DestinationRegion)
}

func TestResultZeroValuesKept(t *testing.T) {
	b, err := json.Marshal(Result{})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"baseRate":0`)
	assert.Contains(t, string(b), `"weightedIndex":0`)
	assert.Contains(t, string(b), `"seasonalityFactor":0`)
}

func TestParseRegion(t *testing.T) {
	assert.Equal(t, KnownRegion(RegionNorthAmerica), ParseRegion("North America"))
	assert.Equal(t, Unknown, ParseRegion("Unknown"))
	assert.Equal(t, Unknown, ParseRegion("  "))
	assert.Equal(t, OtherRegion("north america"), ParseRegion("north america"))
}

func TestDetailsWireShape_NoIndices(t *testing.T) {
	b, err := json.Marshal(Result{Details: Details{IndexSources: NeutralIndex.Sources}})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"indexSources":[]`)
	assert.Contains(t, string(b), `"indexAdjustment":0`)
	assert.Contains(t, string(b), `"sensitivityCoeff":0`)
	assert.Contains(t, string(b), `"seasonalityConfidence":0`)
}

func TestDetailsNonFiniteCoefficientsAreNull(t *testing.T) {
	b, err := json.Marshal(Result{
		FinalRate: 2500,
		Details: Details{
			IndexSources:          []string{},
			SeasonalityConfidence: math.NaN(),
			SensitivityCoeff:      math.Inf(1),
			IndexAdjustment:       math.Inf(-1),
			CalculationTimeMs:     3,
		},
	})
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(b, &wire))
	details := wire["calculationDetails"].(map[string]any)
	for _, key := range []string{"seasonalityConfidence", "sensitivityCoeff", "indexAdjustment"} {
		v, ok := details[key]
		assert.True(t, ok, key)
		assert.Nil(t, v, key)
	}
	assert.Equal(t, 3.0, details["calculationTimeMs"])
	assert.Equal(t, []any{}, details["indexSources"])
}

func TestTraceNonFiniteValuesEncode(t *testing.T) {
	trace := Trace{{
		Stage:  StageFinalRate,
		Inputs: map[string]any{"sensitivityCoeff": traceNumber(math.Inf(1)), "baseRate": traceNumber(2500)},
		Status: StatusError,
	}}
	b, err := json.Marshal(trace)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"sensitivityCoeff":"+Inf"`)
	assert.Contains(t, string(b), `"baseRate":2500`)
}
