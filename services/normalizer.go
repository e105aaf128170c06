package services

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"tyre-scraper/models"
	"tyre-scraper/utils"
)

var (
	// decimalRegexp captures a plain decimal number after currency cleanup
	decimalRegexp = regexp.MustCompile(`\d+(?:\.\d+)?`)
	// loadSpeedRegexp captures combined "91V" load index + speed rating strings
	loadSpeedRegexp = regexp.MustCompile(`(\d+)([A-Z])`)
	// leadingNonDigits strips prefixes like the "R" of "R16"
	leadingNonDigits = regexp.MustCompile(`^[^\d]+`)
)

// ErrMissingSKU marks a listing that cannot participate in the upsert key
// and is therefore dropped.
var ErrMissingSKU = errors.New("listing has no sku")

// Normalizer turns raw per-listing field maps into canonical Tyre records.
// Parsing is best-effort per field: a malformed value degrades that one
// field to its unknown sentinel, never the whole listing.
type Normalizer struct {
	logger *utils.Logger
}

// NewNormalizer creates a Normalizer with the given logger.
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize processes a batch of raw listings scraped for query q. Listings
// without a SKU are dropped with a diagnostic; everything else survives.
func (n *Normalizer) Normalize(raws []models.RawListing, q models.Query) []*models.Tyre {
	result := make([]*models.Tyre, 0, len(raws))

	for i, raw := range raws {
		tyre, err := n.NormalizeListing(raw, q)
		if err != nil {
			n.logger.Warn("[normalizer] Dropping listing %d: %v", i, err)
			continue
		}
		result = append(result, tyre)
	}

	n.logger.Info("[normalizer] Normalized %d → %d listings (dropped %d)",
		len(raws), len(result), len(raws)-len(result))
	return result
}

// NormalizeListing maps one raw listing to one canonical record.
func (n *Normalizer) NormalizeListing(raw models.RawListing, q models.Query) (*models.Tyre, error) {
	sku, ok := raw.Get(models.KeySKU)
	if !ok {
		return nil, ErrMissingSKU
	}

	width, aspect := parseSize(raw, q)
	rim := parseRim(raw, q)
	if width <= 0 || aspect <= 0 || rim <= 0 {
		return nil, fmt.Errorf("listing %s: no usable geometry", sku)
	}

	tyre := &models.Tyre{
		SKU:         sku,
		Width:       width,
		AspectRatio: aspect,
		RimDiameter: rim,
		Budget:      models.TriUnknown,
		Electric:    models.TriUnknown,
		VehicleType: "Car",
		ScrapedAt:   time.Now(),
	}

	if v, ok := raw.Get(models.KeyBrand); ok {
		tyre.Brand = utils.TitleCase(v)
	}
	if v, ok := raw.Get(models.KeyPattern); ok {
		tyre.Pattern = strings.TrimSpace(v)
	}
	if v, ok := raw.Get(models.KeyPrice); ok {
		tyre.PriceMinorUnits = ParsePrice(v)
		if tyre.PriceMinorUnits == nil {
			n.logger.Debug("[normalizer] %s: unparsable price %q", sku, v)
		}
	}
	if v, ok := raw.Get(models.KeyLoadSpeed); ok {
		tyre.LoadIndex, tyre.SpeedRating = ParseLoadSpeed(v)
	}
	if v, ok := raw.Get(models.KeyWetGrip); ok {
		tyre.WetGrip = ParseGrade(v)
	}
	if v, ok := raw.Get(models.KeyFuel); ok {
		tyre.FuelEfficiency = ParseGrade(v)
	}
	if v, ok := raw.Get(models.KeyNoiseDB); ok {
		if db, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			tyre.NoiseDB = &db
		}
	}
	if v, ok := raw.Get(models.KeyNoiseLetter); ok {
		tyre.NoiseLetterBand = ParseGrade(v)
	}
	if v, ok := raw.Get(models.KeySeason); ok {
		tyre.Season = utils.TitleCase(v)
	}
	if v, ok := raw.Get(models.KeyBudget); ok {
		tyre.Budget = ParseTriState(v)
	}
	if v, ok := raw.Get(models.KeyElectric); ok {
		tyre.Electric = ParseTriState(v)
	}
	if v, ok := raw.Get(models.KeyVehicleType); ok {
		tyre.VehicleType = utils.TitleCase(v)
	}

	return tyre, nil
}

// ParsePrice converts a raw price string like "£84.99" into whole minor
// currency units (8499). nil means the price could not be parsed.
func ParsePrice(raw string) *int {
	cleaned := strings.NewReplacer("£", "", "$", "", "€", "", ",", "", " ", "").Replace(raw)

	match := decimalRegexp.FindString(cleaned)
	if match == "" {
		return nil
	}

	decimal, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}

	minor := int(math.Round(decimal * 100))
	return &minor
}

// ParseGrade extracts a single-letter grade from strings like "C", "c" or
// "BC" (some sites prefix the label kind). Empty string means unknown.
func ParseGrade(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	runes := []rune(raw)
	last := runes[len(runes)-1]
	if !unicode.IsLetter(last) {
		return ""
	}
	return strings.ToUpper(string(last))
}

// ParseLoadSpeed splits a combined "91V" string into load index and speed
// rating. A failed match leaves both unknown.
func ParseLoadSpeed(raw string) (*int, string) {
	match := loadSpeedRegexp.FindStringSubmatch(raw)
	if len(match) < 3 {
		return nil, ""
	}

	load, err := strconv.Atoi(match[1])
	if err != nil {
		return nil, ""
	}
	return &load, match[2]
}

// ParseTriState normalizes boolean-ish raw strings. Anything other than a
// recognised yes/no form stays unknown; absence is never assumed false.
func ParseTriState(raw string) models.TriState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes":
		return models.TriTrue
	case "false", "no":
		return models.TriFalse
	default:
		return models.TriUnknown
	}
}

// parseSize splits a combined "205/55" size string, falling back to the
// searched geometry when the page omits or mangles it.
func parseSize(raw models.RawListing, q models.Query) (width, aspect int) {
	v, ok := raw.Get(models.KeySize)
	if !ok {
		return q.Width, q.AspectRatio
	}

	parts := strings.Split(v, "/")
	if len(parts) != 2 {
		return q.Width, q.AspectRatio
	}

	w, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	a, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return q.Width, q.AspectRatio
	}
	return w, a
}

// parseRim strips the leading "R" of rim strings like "R16", falling back
// to the searched geometry.
func parseRim(raw models.RawListing, q models.Query) int {
	v, ok := raw.Get(models.KeyRim)
	if !ok {
		return q.RimDiameter
	}

	r, err := strconv.Atoi(leadingNonDigits.ReplaceAllString(strings.TrimSpace(v), ""))
	if err != nil {
		return q.RimDiameter
	}
	return r
}
