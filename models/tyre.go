package models

import (
	"fmt"
	"time"
)

// Raw field keys shared between the site adapters and the normalizer.
// An adapter only sets the keys its site actually exposes; a missing key
// means the field was absent from the page.
const (
	KeySKU         = "sku"
	KeyBrand       = "brand"
	KeyPattern     = "pattern"
	KeyPrice       = "price"
	KeyWetGrip     = "wet_grip"
	KeyFuel        = "fuel"
	KeySeason      = "season"
	KeyBudget      = "budget"
	KeyElectric    = "electric"
	KeyVehicleType = "tyre_type"
	KeyNoiseDB     = "noise_db"
	KeyNoiseLetter = "noise_letter"
	KeySize        = "size"       // combined width/aspect, e.g. "205/55"
	KeyRim         = "rim"        // rim diameter string, e.g. "R16"
	KeyLoadSpeed   = "load_speed" // combined load index + speed rating, e.g. "91V"
)

// RawListing holds unprocessed per-product field values straight off a
// retailer page, keyed by the shared raw field names above.
type RawListing map[string]string

// Get returns the value for key and whether it was present and non-empty
// on the page. Adapters trim values before setting them.
func (r RawListing) Get(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// TriState is a boolean that distinguishes "the page said nothing" from
// "the page said no".
type TriState int

const (
	TriUnknown TriState = iota
	TriTrue
	TriFalse
)

// String renders the tri-state for flat export: true, false or empty.
func (t TriState) String() string {
	switch t {
	case TriTrue:
		return "true"
	case TriFalse:
		return "false"
	default:
		return ""
	}
}

// Bool returns the underlying value and whether it is known.
func (t TriState) Bool() (value, known bool) {
	switch t {
	case TriTrue:
		return true, true
	case TriFalse:
		return false, true
	default:
		return false, false
	}
}

// Query is the tyre geometry a scrape run searches for.
type Query struct {
	Width       int
	AspectRatio int
	RimDiameter int
}

// Label formats the query the way tyre sites display sizes, e.g. "205/55/R16".
func (q Query) Label() string {
	return fmt.Sprintf("%d/%d/R%d", q.Width, q.AspectRatio, q.RimDiameter)
}

// Tyre is the cleaned, validated record ready for storage. Optional fields
// use nil pointers / empty strings / TriUnknown as their unknown sentinel.
type Tyre struct {
	SKU     string
	Brand   string
	Pattern string

	Width       int
	AspectRatio int
	RimDiameter int

	LoadIndex   *int
	SpeedRating string

	// PriceMinorUnits is the price in whole pence. It is the storage form;
	// the decimal price is only ever derived from it.
	PriceMinorUnits *int

	WetGrip         string
	FuelEfficiency  string
	NoiseDB         *int
	NoiseLetterBand string

	Season      string
	Budget      TriState
	Electric    TriState
	VehicleType string

	ScrapedAt time.Time
}

// Price returns the decimal view of the price and whether a price is known.
func (t *Tyre) Price() (float64, bool) {
	if t.PriceMinorUnits == nil {
		return 0, false
	}
	return float64(*t.PriceMinorUnits) / 100, true
}

// RetailerResult summarises one adapter's run for the report.
type RetailerResult struct {
	Domain  string
	Query   Query
	Found   int
	Stored  int
	Dropped int
	Failed  int
	Elapsed time.Duration
	Err     error
}

// RunReport holds the computed summary over one full scrape run.
type RunReport struct {
	Retailers    []RetailerResult
	TotalFound   int
	TotalStored  int
	TotalDropped int
	TotalFailed  int

	AveragePrice    float64
	MinPrice        float64
	MaxPrice        float64
	PricedTyres     int
	TyresBySeason   map[string]int
	TyresByRetailer map[string]int
}
