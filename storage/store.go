package storage

import (
	"context"
	"database/sql"

	"tyre-scraper/models"
)

// TyreStore is the persistence contract: de-duplicating lookup-or-create
// for the reference dimensions plus conflict-safe upsert of fact rows keyed
// by (retailer, sku).
//
// Dimension rows are append-only: getOrCreate returns the existing id on a
// hit and never amends a stored name. Name dimensions are looked up by
// their title-cased form so case variance across pages cannot create
// duplicates, and each lookup-or-create is atomic so concurrent callers
// cannot race a duplicate row in.
type TyreStore interface {
	Migrate(ctx context.Context) error

	GetOrCreateRetailer(ctx context.Context, name string) (int64, error)
	GetOrCreateBrand(ctx context.Context, name string) (int64, error)
	GetOrCreateSeason(ctx context.Context, name string) (int64, error)
	GetOrCreateVehicleType(ctx context.Context, name string) (int64, error)

	// GetOrCreatePattern binds a pattern to its brand and season at first
	// sight, permanently: a later sighting of the same (name, brand) under
	// a different season keeps the original association. Known limitation,
	// kept deliberately.
	GetOrCreatePattern(ctx context.Context, name string, brandID, seasonID int64) (int64, error)

	// UpsertTyre writes or overwrites the fact row for (retailerID, t.SKU).
	// On conflict every mutable attribute is replaced by the incoming
	// value; the key itself never changes. The transactional boundary is
	// this one record.
	UpsertTyre(ctx context.Context, retailerID int64, t *models.Tyre, patternID, vehicleTypeID sql.NullInt64) error

	// FetchAll reads back all fact rows joined with their dimension names,
	// for reporting and flat export.
	FetchAll(ctx context.Context) ([]StoredTyre, error)

	Close() error
}

// StoredTyre is one fact row joined with its dimension names.
type StoredTyre struct {
	Retailer    string
	SKU         string
	Brand       string
	Pattern     string
	Season      string
	VehicleType string

	Width       int
	AspectRatio int
	RimDiameter int

	LoadIndex       *int
	SpeedRating     string
	PriceMinorUnits *int
	WetGrip         string
	FuelEfficiency  string
	NoiseDB         *int
	NoiseLetterBand string
	Budget          models.TriState
	Electric        models.TriState
}

// Price returns the decimal view of the stored price and whether one is known.
func (s *StoredTyre) Price() (float64, bool) {
	if s.PriceMinorUnits == nil {
		return 0, false
	}
	return float64(*s.PriceMinorUnits) / 100, true
}

// Bind helpers shared by the SQL backends. Unknown sentinels map to NULL.

func nullIntPtr(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func nullTri(t models.TriState) sql.NullBool {
	value, known := t.Bool()
	return sql.NullBool{Bool: value, Valid: known}
}

// Scan helpers: NULL maps back onto the unknown sentinels.

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func str(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	return v.String
}

func tri(v sql.NullBool) models.TriState {
	if !v.Valid {
		return models.TriUnknown
	}
	if v.Bool {
		return models.TriTrue
	}
	return models.TriFalse
}
