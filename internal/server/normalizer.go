package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"freightrate/internal/rate"
)

// CalculateRequest is a decoded POST /api/calculate body.
type CalculateRequest struct {
	OriginPortID      string
	DestinationPortID string
	ContainerType     string
	BaseRates         rate.BaseRatesConfig
	Indices           rate.IndexConfig
	SensitivityCoeff  float64
	Email             *string
}

// ErrMissingSensitivity is returned when the body has no usable sensitivityCoeff.
var ErrMissingSensitivity = errors.New("sensitivityCoeff required")

// Key aliases accepted in request bodies. The first entry is the documented one.
var (
	originKeys      = []string{"originPortId", "origin_port_id", "origin"}
	destinationKeys = []string{"destinationPortId", "destination_port_id", "destination"}
	containerKeys   = []string{"containerType", "container_type", "container"}
	baseRatesKeys   = []string{"baseRatesConfig", "base_rates_config", "baseRates"}
	indexKeys       = []string{"indexConfig", "index_config", "indices"}
	sensitivityKeys = []string{"sensitivityCoeff", "sensitivity_coeff", "sensitivity"}
	emailKeys       = []string{"email"}

	currentKeys  = []string{"current_value", "currentValue", "current"}
	baselineKeys = []string{"baseline_value", "baselineValue", "baseline"}
	weightKeys   = []string{"weight_percentage", "weightPercentage", "weight"}
)

// DecodeCalculateRequest reads a calculation request. Numbers may arrive as
// JSON strings. Index order follows the document.
func DecodeCalculateRequest(body io.Reader) (CalculateRequest, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return CalculateRequest{}, err
	}
	var payload map[string]any
	if err := unmarshalNumbers(raw, &payload); err != nil {
		return CalculateRequest{}, err
	}
	if payload == nil {
		return CalculateRequest{}, errors.New("request body must be a JSON object")
	}

	req := CalculateRequest{
		OriginPortID:      strings.TrimSpace(getString(payload, originKeys)),
		DestinationPortID: strings.TrimSpace(getString(payload, destinationKeys)),
		ContainerType:     strings.TrimSpace(getString(payload, containerKeys)),
	}

	sens, ok := toFloat(getAny(payload, sensitivityKeys))
	if !ok || math.IsNaN(sens) || math.IsInf(sens, 0) {
		return CalculateRequest{}, ErrMissingSensitivity
	}
	req.SensitivityCoeff = sens

	if email := strings.TrimSpace(getString(payload, emailKeys)); email != "" {
		req.Email = &email
	}

	if m, ok := getAny(payload, baseRatesKeys).(map[string]any); ok {
		req.BaseRates = decodeBaseRates(m)
	}

	// Index order is lost once decoded into a map, so walk the raw object.
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return CalculateRequest{}, err
	}
	for _, k := range indexKeys {
		if r, ok := top[k]; ok && !isNull(r) {
			req.Indices, err = decodeIndices(r)
			if err != nil {
				return CalculateRequest{}, fmt.Errorf("%s: %w", k, err)
			}
			break
		}
	}
	return req, nil
}

func decodeBaseRates(m map[string]any) rate.BaseRatesConfig {
	out := rate.BaseRatesConfig{}
	for origin, v := range m {
		dests, ok := v.(map[string]any)
		if !ok {
			continue
		}
		byDest := map[string]map[string]float64{}
		for dest, v := range dests {
			classes, ok := v.(map[string]any)
			if !ok {
				continue
			}
			byClass := map[string]float64{}
			for class, v := range classes {
				f, ok := toFloat(v)
				if !ok {
					f = math.NaN()
				}
				byClass[class] = f
			}
			byDest[dest] = byClass
		}
		out[origin] = byDest
	}
	return out
}

func decodeIndices(raw json.RawMessage) (rate.IndexConfig, error) {
	fields, err := orderedObject(raw)
	if err != nil {
		return nil, err
	}
	out := make(rate.IndexConfig, 0, len(fields))
	for _, f := range fields {
		entry := rate.IndexEntry{Name: f.key}
		var m map[string]any
		if err := unmarshalNumbers(f.value, &m); err == nil && m != nil {
			entry.Current = numberField(m, currentKeys)
			entry.Baseline = numberField(m, baselineKeys)
			entry.Weight = numberField(m, weightKeys)
		}
		out = append(out, entry)
	}
	return out, nil
}

// numberField is nil when no key is present and NaN when the value is not numeric.
func numberField(m map[string]any, keys []string) *float64 {
	v := getAny(m, keys)
	if v == nil {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		f = math.NaN()
	}
	return &f
}

type objectField struct {
	key   string
	value json.RawMessage
}

// orderedObject splits a JSON object into its members in document order. A
// repeated key keeps its first position and its last value.
func orderedObject(raw json.RawMessage) ([]objectField, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("expected a JSON object")
	}
	var (
		out []objectField
		pos = map[string]int{}
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.New("expected an object key")
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		if i, seen := pos[key]; seen {
			out[i].value = value
			continue
		}
		pos[key] = len(out)
		out = append(out, objectField{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func unmarshalNumbers(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// getString returns the first non-empty string from the candidate keys.
// Supports dot-path navigation for nested maps.
func getString(m map[string]any, keys []string) string {
	for _, k := range keys {
		if v := getPath(m, k); v != nil {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return ""
}

// getAny returns the first non-nil value from the candidate keys.
func getAny(m map[string]any, keys []string) any {
	for _, k := range keys {
		if v := getPath(m, k); v != nil {
			return v
		}
	}
	return nil
}

// getPath navigates a dot-separated key into nested maps.
func getPath(m map[string]any, path string) any {
	var cur any = m
	for _, p := range strings.Split(path, ".") {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := mm[p]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		if err == nil {
			return f, true
		}
		return 0, false
	case string:
		f, err := parseFloat(strings.TrimSpace(t))
		if err == nil {
			return f, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func parseFloat(s string) (float64, error) {
	var n json.Number = json.Number(s)
	return n.Float64()
}
