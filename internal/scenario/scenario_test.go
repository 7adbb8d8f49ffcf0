package scenario

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freightrate/internal/apperrors"
	"freightrate/internal/rate"
)

const shanghaiRotterdam = `
origin      = "CNSHA"
destination = "NLRTM"
container   = "40HC"
sensitivity = 0.5

base_rates = {
  Asia    = { Europe = { "40HC" = 2500, "20DV" = "1400" } }
  Unknown = { Unknown = { "40HC" = 2000 } }
  "North America" = { Unknown = { "40DV" = 1800 } }
}

index "SCFI" {
  current  = 1100
  baseline = 1000
  weight   = 50
}

index "FBX" {
  current  = 1300
  baseline = 1200
  weight   = 50
}

seasonality {
  factor     = 1.1
  confidence = 0.8
}
`

func writeScenario(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.hcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	sc, err := Load(writeScenario(t, shanghaiRotterdam))
	require.NoError(t, err)

	assert.Equal(t, "CNSHA", sc.Origin)
	assert.Equal(t, "NLRTM", sc.Destination)
	assert.Equal(t, "40HC", sc.Container)
	require.NotNil(t, sc.Sensitivity)
	assert.Equal(t, 0.5, *sc.Sensitivity)

	assert.Equal(t, 2500.0, sc.BaseRates["Asia"]["Europe"]["40HC"])
	assert.Equal(t, 1400.0, sc.BaseRates["Asia"]["Europe"]["20DV"])
	assert.Equal(t, 1800.0, sc.BaseRates["North America"]["Unknown"]["40DV"])

	require.Len(t, sc.Indices, 2)
	assert.Equal(t, "SCFI", sc.Indices[0].Name)
	assert.Equal(t, "FBX", sc.Indices[1].Name)
	assert.Equal(t, 1300.0, *sc.Indices[1].Current)
	assert.Equal(t, 1200.0, *sc.Indices[1].Baseline)
	assert.Equal(t, 50.0, *sc.Indices[1].Weight)

	require.NotNil(t, sc.Seasonality)
	assert.Equal(t, rate.Seasonality{Factor: 1.1, Confidence: 0.8}, *sc.Seasonality)
}

func TestScenarioRequest(t *testing.T) {
	sc, err := Parse([]byte(shanghaiRotterdam), "inline.hcl")
	require.NoError(t, err)

	req := sc.Request()
	assert.Equal(t, "CNSHA", req.OriginPortID)
	assert.Equal(t, 0.5, req.SensitivityCoeff)
	assert.Equal(t, rate.DefaultWeight, req.Weight)
	assert.Len(t, req.Indices, 2)

	idx, _ := rate.AggregateIndices(req.Indices)
	assert.InDelta(t, 1.0917, idx.Value, 1e-4)
}

func TestParse_MinimalScenario(t *testing.T) {
	sc, err := Parse([]byte(`sensitivity = 1`), "min.hcl")
	require.NoError(t, err)
	assert.Empty(t, sc.Origin)
	assert.Nil(t, sc.BaseRates)
	assert.Empty(t, sc.Indices)
	assert.Nil(t, sc.Seasonality)
}

func TestParse_IndexFieldsLenient(t *testing.T) {
	sc, err := Parse([]byte(`
index "WCI" {
  current = "n/a"
  weight  = 30
}
index "WCI" {
  current = 5
  weight  = 40
}
index "CCFI" {}
`), "lenient.hcl")
	require.NoError(t, err)
	require.Len(t, sc.Indices, 2)

	wci := sc.Indices[0]
	assert.Equal(t, "WCI", wci.Name)
	assert.Equal(t, 5.0, *wci.Current)
	assert.Nil(t, wci.Baseline)

	assert.Equal(t, "CCFI", sc.Indices[1].Name)
	assert.Nil(t, sc.Indices[1].Weight)

	sc, err = Parse([]byte(`index "X" { current = "n/a" }`), "nan.hcl")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(*sc.Indices[0].Current))
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"syntax":               `origin = `,
		"unknown attribute":    `speed = 3`,
		"bad sensitivity":      `sensitivity = "steep"`,
		"missing factor":       `seasonality { confidence = 1 }`,
		"duplicate season":     "seasonality { factor = 1 }\nseasonality { factor = 2 }",
		"variable reference":   `sensitivity = var.s`,
		"index without a name": `index { current = 1 }`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src), "bad.hcl")
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.TypeParsing), err.Error())
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.hcl"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.TypeInput))
}
