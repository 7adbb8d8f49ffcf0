package rate

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"freightrate/internal/logging"
)

// RegionKind enumerates the trade regions the rate tables are keyed by.
type RegionKind uint8

const (
	RegionUnknown RegionKind = iota
	RegionAsia
	RegionEurope
	RegionMediterranean
	RegionNorthAmerica
	RegionSouthAmerica
	RegionOceania
	RegionAfrica
	RegionMiddleEast
	// RegionOther marks a free-text label passed through from the region store.
	RegionOther
)

var regionNames = [...]string{
	RegionUnknown:       "Unknown",
	RegionAsia:          "Asia",
	RegionEurope:        "Europe",
	RegionMediterranean: "Mediterranean",
	RegionNorthAmerica:  "North America",
	RegionSouthAmerica:  "South America",
	RegionOceania:       "Oceania",
	RegionAfrica:        "Africa",
	RegionMiddleEast:    "Middle East",
}

// Region is either a known trade region or an opaque label from the store.
// The zero value is Unknown.
type Region struct {
	kind  RegionKind
	label string
}

// KnownRegion returns the Region for a known kind. RegionOther maps to Unknown.
func KnownRegion(k RegionKind) Region {
	if k >= RegionOther {
		return Region{}
	}
	return Region{kind: k}
}

// OtherRegion wraps a label that matched no known region. The label is kept
// verbatim; blank labels are Unknown.
func OtherRegion(label string) Region {
	if strings.TrimSpace(label) == "" {
		return Region{}
	}
	return Region{kind: RegionOther, label: label}
}

var Unknown = Region{}

func (r Region) Kind() RegionKind { return r.kind }

func (r Region) IsUnknown() bool { return r.kind == RegionUnknown }

// String returns the label used as a key into BaseRatesConfig.
func (r Region) String() string {
	if r.kind == RegionOther {
		return r.label
	}
	return regionNames[r.kind]
}

func (r Region) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts the label written by MarshalJSON.
func (r *Region) UnmarshalJSON(b []byte) error {
	var label string
	if err := json.Unmarshal(b, &label); err != nil {
		return err
	}
	*r = ParseRegion(label)
	return nil
}

// ParseRegion maps an exact region label back to its Region. Unlike
// NormalizeRegion it does no keyword matching.
func ParseRegion(label string) Region {
	trimmed := strings.TrimSpace(label)
	for k, name := range regionNames {
		if name == trimmed {
			return KnownRegion(RegionKind(k))
		}
	}
	return OtherRegion(label)
}

// portRegions holds the ports resolved without touching the store.
var portRegions = map[string]RegionKind{
	"CNSHA": RegionAsia, "CNYTN": RegionAsia, "CNNGB": RegionAsia, "CNQIN": RegionAsia, "CNDAL": RegionAsia,
	"CNXMN": RegionAsia, "CNTAO": RegionAsia, "HKHKG": RegionAsia, "SGSIN": RegionAsia, "JPOSA": RegionAsia,
	"JPTYO": RegionAsia, "KRPUS": RegionAsia, "VNSGN": RegionAsia, "MYLPK": RegionAsia, "IDTPP": RegionAsia,
	"THBKK": RegionAsia, "PHMNL": RegionAsia, "TWKHH": RegionAsia,

	"DEHAM": RegionEurope, "NLRTM": RegionEurope, "GBFXT": RegionEurope, "FRLEH": RegionEurope,
	"BEANR": RegionEurope, "ESBCN": RegionEurope, "ITGOA": RegionEurope, "GRPIR": RegionEurope,
	"PLGDN": RegionEurope, "SEGOT": RegionEurope, "FILIV": RegionEurope,

	"ITTRS": RegionMediterranean, "ESVLC": RegionMediterranean, "FRFOS": RegionMediterranean,
	"TRMER": RegionMediterranean, "EGPSD": RegionMediterranean, "MTMAR": RegionMediterranean,
	"HRRJK": RegionMediterranean,

	"USLAX": RegionNorthAmerica, "USLGB": RegionNorthAmerica, "USSEA": RegionNorthAmerica,
	"USNYC": RegionNorthAmerica, "USBAL": RegionNorthAmerica, "USSAV": RegionNorthAmerica,
	"USHOU": RegionNorthAmerica, "CAMTR": RegionNorthAmerica, "CAVNC": RegionNorthAmerica,
	"USOAK": RegionNorthAmerica,

	"BRSSZ": RegionSouthAmerica, "ARBUE": RegionSouthAmerica, "CLVAP": RegionSouthAmerica,
	"PECLL": RegionSouthAmerica, "COBUN": RegionSouthAmerica, "ECGYE": RegionSouthAmerica,
	"BRRIO": RegionSouthAmerica,

	"AUSYD": RegionOceania, "AUMEL": RegionOceania, "NZAKL": RegionOceania, "AUBNE": RegionOceania,

	"ZALGS": RegionAfrica, "ZADUR": RegionAfrica, "MAPTM": RegionAfrica, "EGALY": RegionAfrica,
	"TZDAR": RegionAfrica, "KEMBA": RegionAfrica, "SNDKR": RegionAfrica, "CMKBI": RegionAfrica,

	"AEJEA": RegionMiddleEast, "AEDXB": RegionMiddleEast, "SAJED": RegionMiddleEast, "IQBSR": RegionMiddleEast,
	"IRBND": RegionMiddleEast, "OMMUS": RegionMiddleEast, "QAHMD": RegionMiddleEast,
}

// StaticRegion reports the region of a port in the built-in table.
func StaticRegion(portID string) (Region, bool) {
	k, ok := portRegions[portID]
	if !ok {
		return Region{}, false
	}
	return KnownRegion(k), true
}

// regionMatchers is checked in order; the first substring hit wins.
var regionMatchers = []struct {
	substr string
	kind   RegionKind
}{
	{"china", RegionAsia},
	{"asia", RegionAsia},
	{"europe", RegionEurope},
	{"mediterranean", RegionMediterranean},
	{"north america", RegionNorthAmerica},
	{"south america", RegionSouthAmerica},
	{"oceania", RegionOceania},
	{"africa", RegionAfrica},
	{"middle east", RegionMiddleEast},
}

// NormalizeRegion maps a free-text region label onto a known region.
// Labels matching nothing are passed through as OtherRegion.
func NormalizeRegion(label string) Region {
	lower := strings.ToLower(label)
	for _, m := range regionMatchers {
		if strings.Contains(lower, m.substr) {
			return KnownRegion(m.kind)
		}
	}
	return OtherRegion(label)
}

// RegionStore looks up the region label of ports missing from the static table.
type RegionStore interface {
	LookupRegion(ctx context.Context, portID string) (region string, found bool, err error)
}

// RegionResolver maps port identifiers to regions. Resolve never fails:
// misses and store errors resolve to Unknown.
type RegionResolver struct {
	store   RegionStore
	timeout time.Duration
	log     *zap.Logger
}

// NewRegionResolver returns a resolver backed by store, which may be nil.
// A non-positive timeout disables the per-lookup deadline.
func NewRegionResolver(store RegionStore, timeout time.Duration, log *zap.Logger) *RegionResolver {
	return &RegionResolver{store: store, timeout: timeout, log: logging.OrNop(log)}
}

func (r *RegionResolver) Resolve(ctx context.Context, portID string) Region {
	if region, ok := StaticRegion(portID); ok {
		return region
	}
	if r.store == nil {
		r.log.Warn("region not in static table and no store configured", zap.String("port_id", portID))
		return Unknown
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	label, found, err := r.store.LookupRegion(ctx, portID)
	if err != nil {
		r.log.Error("region lookup failed", zap.String("port_id", portID), zap.Error(err))
		return Unknown
	}
	if !found || strings.TrimSpace(label) == "" {
		r.log.Warn("region not found in map or store", zap.String("port_id", portID))
		return Unknown
	}
	return NormalizeRegion(label)
}
