package server

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCalculateRequest_Scenario(t *testing.T) {
	req, err := DecodeCalculateRequest(strings.NewReader(scenarioBody))
	require.NoError(t, err)

	assert.Equal(t, "CNSHA", req.OriginPortID)
	assert.Equal(t, "NLRTM", req.DestinationPortID)
	assert.Equal(t, "40HC", req.ContainerType)
	assert.Equal(t, 0.5, req.SensitivityCoeff)
	require.NotNil(t, req.Email)
	assert.Equal(t, "ops@example.com", *req.Email)
	assert.Equal(t, 2500.0, req.BaseRates["Asia"]["Europe"]["40HC"])

	require.Len(t, req.Indices, 2)
	assert.Equal(t, "SCFI", req.Indices[0].Name)
	assert.Equal(t, "FBX", req.Indices[1].Name)
	require.NotNil(t, req.Indices[1].Current)
	assert.Equal(t, 1300.0, *req.Indices[1].Current)
}

func TestDecodeCalculateRequest_KeepsIndexOrder(t *testing.T) {
	body := `{"sensitivityCoeff":1,"indexConfig":{
		"ZETA":{"current_value":1,"baseline_value":1,"weight_percentage":10},
		"ALPHA":{"current_value":1,"baseline_value":1,"weight_percentage":10},
		"MID":{"current_value":1,"baseline_value":1,"weight_percentage":10},
		"ZETA":{"current_value":2,"baseline_value":1,"weight_percentage":10}
	}}`
	req, err := DecodeCalculateRequest(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, req.Indices, 3)
	assert.Equal(t, []string{"ZETA", "ALPHA", "MID"},
		[]string{req.Indices[0].Name, req.Indices[1].Name, req.Indices[2].Name})
	assert.Equal(t, 2.0, *req.Indices[0].Current)
}

func TestDecodeCalculateRequest_KeyAliases(t *testing.T) {
	body := `{
		"origin_port_id":"CNSHA",
		"destination_port_id":"NLRTM",
		"container_type":"20DV",
		"sensitivity_coeff":"0.25",
		"index_config":{"WCI":{"currentValue":"900","baselineValue":1000,"weight":"100"}}
	}`
	req, err := DecodeCalculateRequest(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "CNSHA", req.OriginPortID)
	assert.Equal(t, "20DV", req.ContainerType)
	assert.Equal(t, 0.25, req.SensitivityCoeff)
	require.Len(t, req.Indices, 1)
	assert.Equal(t, 900.0, *req.Indices[0].Current)
	assert.Equal(t, 1000.0, *req.Indices[0].Baseline)
	assert.Equal(t, 100.0, *req.Indices[0].Weight)
	assert.Nil(t, req.Email)
}

func TestDecodeCalculateRequest_MissingAndNonNumericFields(t *testing.T) {
	body := `{"sensitivityCoeff":0.5,
		"baseRatesConfig":{"Asia":{"Europe":{"40HC":"n/a","20DV":"1800"}}},
		"indexConfig":{"SCFI":{"current_value":"high","weight_percentage":50}}}`
	req, err := DecodeCalculateRequest(strings.NewReader(body))
	require.NoError(t, err)

	assert.True(t, math.IsNaN(req.BaseRates["Asia"]["Europe"]["40HC"]))
	assert.Equal(t, 1800.0, req.BaseRates["Asia"]["Europe"]["20DV"])

	require.Len(t, req.Indices, 1)
	idx := req.Indices[0]
	require.NotNil(t, idx.Current)
	assert.True(t, math.IsNaN(*idx.Current))
	assert.Nil(t, idx.Baseline)
	assert.Equal(t, 50.0, *idx.Weight)
}

func TestDecodeCalculateRequest_Errors(t *testing.T) {
	cases := map[string]struct {
		body        string
		sensitivity bool
	}{
		"malformed":           {body: `{"a":`},
		"array":               {body: `[]`},
		"trailing data":       {body: `{"sensitivityCoeff":1} {}`},
		"index not an object": {body: `{"sensitivityCoeff":1,"indexConfig":[1,2]}`},
		"no sensitivity":      {body: `{}`, sensitivity: true},
		"bad sensitivity":     {body: `{"sensitivityCoeff":"abc"}`, sensitivity: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCalculateRequest(strings.NewReader(tc.body))
			require.Error(t, err)
			assert.Equal(t, tc.sensitivity, err == ErrMissingSensitivity)
		})
	}
}

func TestDecodeCalculateRequest_NullIndexConfig(t *testing.T) {
	req, err := DecodeCalculateRequest(strings.NewReader(`{"sensitivityCoeff":1,"indexConfig":null}`))
	require.NoError(t, err)
	assert.Empty(t, req.Indices)
	assert.Nil(t, req.BaseRates)
}
