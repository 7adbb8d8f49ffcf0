// Package scenario loads rate calculation inputs from HCL files.
//
// A scenario looks like:
//
//	origin      = "CNSHA"
//	destination = "NLRTM"
//	container   = "40HC"
//	sensitivity = 0.5
//
//	base_rates = {
//	  Asia    = { Europe = { "40HC" = 2500 } }
//	  Unknown = { Unknown = { "40HC" = 2000 } }
//	}
//
//	index "SCFI" {
//	  current  = 1100
//	  baseline = 1000
//	  weight   = 50
//	}
//
//	seasonality {
//	  factor     = 1.05
//	  confidence = 0.8
//	}
//
// Index blocks keep their file order. The seasonality block is optional.
package scenario

import (
	"math"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"freightrate/internal/apperrors"
	"freightrate/internal/rate"
)

// Scenario holds everything a calculation needs besides the clock and the
// region store. Empty strings and nil pointers mean "not set in the file".
type Scenario struct {
	Origin      string
	Destination string
	Container   string
	Sensitivity *float64
	BaseRates   rate.BaseRatesConfig
	Indices     rate.IndexConfig
	Seasonality *rate.Seasonality
}

var rootSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "origin"},
		{Name: "destination"},
		{Name: "container"},
		{Name: "sensitivity"},
		{Name: "base_rates"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "index", LabelNames: []string{"name"}},
		{Type: "seasonality"},
	},
}

var indexSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "current"},
		{Name: "baseline"},
		{Name: "weight"},
	},
}

var seasonalitySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "factor", Required: true},
		{Name: "confidence"},
	},
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.TypeInput, err, "read scenario %s", path)
	}
	return Parse(src, path)
}

// Parse decodes scenario source. filename is only used in diagnostics.
func Parse(src []byte, filename string) (*Scenario, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diagError(filename, diags)
	}
	content, diags := file.Body.Content(rootSchema)
	if diags.HasErrors() {
		return nil, diagError(filename, diags)
	}

	d := &decoder{}
	sc := &Scenario{
		Origin:      d.str(content.Attributes["origin"]),
		Destination: d.str(content.Attributes["destination"]),
		Container:   d.str(content.Attributes["container"]),
		Sensitivity: d.num(content.Attributes["sensitivity"]),
	}
	if attr, ok := content.Attributes["base_rates"]; ok {
		sc.BaseRates = d.baseRates(attr)
	}

	seen := map[string]int{}
	for _, block := range content.Blocks {
		switch block.Type {
		case "index":
			entry := d.index(block)
			if i, dup := seen[entry.Name]; dup {
				sc.Indices[i] = entry
				continue
			}
			seen[entry.Name] = len(sc.Indices)
			sc.Indices = append(sc.Indices, entry)
		case "seasonality":
			if sc.Seasonality != nil {
				d.diags = d.diags.Append(&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate seasonality block",
					Subject:  block.DefRange.Ptr(),
				})
				continue
			}
			sc.Seasonality = d.seasonality(block)
		}
	}
	if d.diags.HasErrors() {
		return nil, diagError(filename, d.diags)
	}
	return sc, nil
}

// Request builds an engine request from the scenario.
func (s *Scenario) Request() rate.Request {
	req := rate.Request{
		OriginPortID:      s.Origin,
		DestinationPortID: s.Destination,
		ContainerType:     s.Container,
		BaseRates:         s.BaseRates,
		Indices:           s.Indices,
		Weight:            rate.DefaultWeight,
	}
	if s.Sensitivity != nil {
		req.SensitivityCoeff = *s.Sensitivity
	}
	return req
}

type decoder struct {
	diags hcl.Diagnostics
}

func (d *decoder) value(attr *hcl.Attribute) (cty.Value, bool) {
	if attr == nil {
		return cty.NilVal, false
	}
	v, diags := attr.Expr.Value(nil)
	d.diags = d.diags.Extend(diags)
	if diags.HasErrors() || v.IsNull() || !v.IsWhollyKnown() {
		return cty.NilVal, false
	}
	return v, true
}

func (d *decoder) str(attr *hcl.Attribute) string {
	v, ok := d.value(attr)
	if !ok {
		return ""
	}
	s, err := convert.Convert(v, cty.String)
	if err != nil {
		d.diags = d.diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid value for " + attr.Name,
			Detail:   "A string is required.",
			Subject:  attr.Expr.Range().Ptr(),
		})
		return ""
	}
	return s.AsString()
}

func (d *decoder) num(attr *hcl.Attribute) *float64 {
	v, ok := d.value(attr)
	if !ok {
		return nil
	}
	f := toFloat(v)
	if math.IsNaN(f) {
		d.diags = d.diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid value for " + attr.Name,
			Detail:   "A number is required.",
			Subject:  attr.Expr.Range().Ptr(),
		})
		return nil
	}
	return &f
}

// lenientNum keeps a present but non-numeric value as NaN so the engine can
// report it instead of the loader rejecting the file.
func (d *decoder) lenientNum(attr *hcl.Attribute) *float64 {
	v, ok := d.value(attr)
	if !ok {
		return nil
	}
	f := toFloat(v)
	return &f
}

func (d *decoder) baseRates(attr *hcl.Attribute) rate.BaseRatesConfig {
	v, ok := d.value(attr)
	if !ok {
		return nil
	}
	out := rate.BaseRatesConfig{}
	forEach(v, func(origin string, dests cty.Value) {
		byDest := map[string]map[string]float64{}
		forEach(dests, func(dest string, classes cty.Value) {
			byClass := map[string]float64{}
			forEach(classes, func(class string, price cty.Value) {
				byClass[class] = toFloat(price)
			})
			byDest[dest] = byClass
		})
		out[origin] = byDest
	})
	return out
}

func (d *decoder) index(block *hcl.Block) rate.IndexEntry {
	entry := rate.IndexEntry{Name: block.Labels[0]}
	content, diags := block.Body.Content(indexSchema)
	d.diags = d.diags.Extend(diags)
	if diags.HasErrors() {
		return entry
	}
	entry.Current = d.lenientNum(content.Attributes["current"])
	entry.Baseline = d.lenientNum(content.Attributes["baseline"])
	entry.Weight = d.lenientNum(content.Attributes["weight"])
	return entry
}

func (d *decoder) seasonality(block *hcl.Block) *rate.Seasonality {
	content, diags := block.Body.Content(seasonalitySchema)
	d.diags = d.diags.Extend(diags)
	if diags.HasErrors() {
		return nil
	}
	s := rate.NeutralSeasonality
	if f := d.num(content.Attributes["factor"]); f != nil {
		s.Factor = *f
	}
	if c := d.num(content.Attributes["confidence"]); c != nil {
		s.Confidence = *c
	}
	return &s
}

// forEach visits the members of an object or map value. Other values are
// skipped.
func forEach(v cty.Value, fn func(key string, elem cty.Value)) {
	if v.IsNull() || !v.IsKnown() {
		return
	}
	ty := v.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return
	}
	for it := v.ElementIterator(); it.Next(); {
		k, elem := it.Element()
		fn(k.AsString(), elem)
	}
}

func toFloat(v cty.Value) float64 {
	n, err := convert.Convert(v, cty.Number)
	if err != nil || n.IsNull() || !n.IsKnown() {
		return math.NaN()
	}
	f, _ := n.AsBigFloat().Float64()
	return f
}

func diagError(filename string, diags hcl.Diagnostics) error {
	return apperrors.Wrapf(apperrors.TypeParsing, diags, "parse scenario %s", filename)
}
