package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tyre-scraper/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLite(filepath.Join(t.TempDir(), "tyres.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func intp(v int) *int { return &v }

func testTyre(sku string) *models.Tyre {
	return &models.Tyre{
		SKU:             sku,
		Brand:           "Michelin",
		Pattern:         "Primacy 4",
		Width:           205,
		AspectRatio:     55,
		RimDiameter:     16,
		LoadIndex:       intp(91),
		SpeedRating:     "V",
		PriceMinorUnits: intp(8499),
		WetGrip:         "A",
		FuelEfficiency:  "B",
		NoiseDB:         intp(70),
		NoiseLetterBand: "B",
		Season:          "Summer",
		Budget:          models.TriFalse,
		Electric:        models.TriUnknown,
		VehicleType:     "Car",
		ScrapedAt:       time.Now(),
	}
}

func TestGetOrCreateDimensionIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.GetOrCreateBrand(ctx, "michelin")
	require.NoError(t, err)

	// case variants resolve to the same row
	second, err := store.GetOrCreateBrand(ctx, "MICHELIN")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var count int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM brand").Scan(&count))
	assert.Equal(t, 1, count)

	var name string
	require.NoError(t, store.db.QueryRow("SELECT brand_name FROM brand").Scan(&name))
	assert.Equal(t, "Michelin", name)
}

func TestGetOrCreatePatternFirstSeasonWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	brandID, err := store.GetOrCreateBrand(ctx, "Michelin")
	require.NoError(t, err)
	summerID, err := store.GetOrCreateSeason(ctx, "Summer")
	require.NoError(t, err)
	winterID, err := store.GetOrCreateSeason(ctx, "Winter")
	require.NoError(t, err)

	first, err := store.GetOrCreatePattern(ctx, "Primacy 4", brandID, summerID)
	require.NoError(t, err)

	// a later conflicting season must not rewrite the pattern
	second, err := store.GetOrCreatePattern(ctx, "Primacy 4", brandID, winterID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var seasonID int64
	require.NoError(t, store.db.QueryRow(
		"SELECT season_id FROM pattern WHERE pattern_id = ?", first).Scan(&seasonID))
	assert.Equal(t, summerID, seasonID)
}

func TestPatternSameNameDifferentBrand(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	michelinID, err := store.GetOrCreateBrand(ctx, "Michelin")
	require.NoError(t, err)
	nexenID, err := store.GetOrCreateBrand(ctx, "Nexen")
	require.NoError(t, err)
	seasonID, err := store.GetOrCreateSeason(ctx, "Summer")
	require.NoError(t, err)

	a, err := store.GetOrCreatePattern(ctx, "Sport", michelinID, seasonID)
	require.NoError(t, err)
	b, err := store.GetOrCreatePattern(ctx, "Sport", nexenID, seasonID)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestUpsertTyreOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	retailerID, err := store.GetOrCreateRetailer(ctx, "national.co.uk")
	require.NoError(t, err)

	tyre := testTyre("SKU-1")
	require.NoError(t, store.UpsertTyre(ctx, retailerID, tyre, sql.NullInt64{}, sql.NullInt64{}))

	tyre.PriceMinorUnits = intp(12000)
	require.NoError(t, store.UpsertTyre(ctx, retailerID, tyre, sql.NullInt64{}, sql.NullInt64{}))

	var count, price int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM tyre").Scan(&count))
	assert.Equal(t, 1, count)
	require.NoError(t, store.db.QueryRow(
		"SELECT price_minor_units FROM tyre WHERE sku = 'SKU-1'").Scan(&price))
	assert.Equal(t, 12000, price)
}

func TestUpsertSameSKUDifferentRetailers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	nationalID, err := store.GetOrCreateRetailer(ctx, "national.co.uk")
	require.NoError(t, err)
	dexelID, err := store.GetOrCreateRetailer(ctx, "dexel.co.uk")
	require.NoError(t, err)

	tyre := testTyre("SHARED")
	require.NoError(t, store.UpsertTyre(ctx, nationalID, tyre, sql.NullInt64{}, sql.NullInt64{}))
	require.NoError(t, store.UpsertTyre(ctx, dexelID, tyre, sql.NullInt64{}, sql.NullInt64{}))

	var count int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM tyre").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestFetchAllResolvesDimensions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	retailerID, err := store.GetOrCreateRetailer(ctx, "national.co.uk")
	require.NoError(t, err)
	brandID, err := store.GetOrCreateBrand(ctx, "Michelin")
	require.NoError(t, err)
	seasonID, err := store.GetOrCreateSeason(ctx, "Summer")
	require.NoError(t, err)
	patternID, err := store.GetOrCreatePattern(ctx, "Primacy 4", brandID, seasonID)
	require.NoError(t, err)
	vehicleID, err := store.GetOrCreateVehicleType(ctx, "Car")
	require.NoError(t, err)

	tyre := testTyre("SKU-1")
	require.NoError(t, store.UpsertTyre(ctx, retailerID, tyre,
		sql.NullInt64{Int64: patternID, Valid: true},
		sql.NullInt64{Int64: vehicleID, Valid: true}))

	// a second row with no pattern still comes back, with blank names
	bare := testTyre("SKU-2")
	bare.PriceMinorUnits = nil
	bare.Budget = models.TriUnknown
	require.NoError(t, store.UpsertTyre(ctx, retailerID, bare, sql.NullInt64{}, sql.NullInt64{}))

	rows, err := store.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	full := rows[0]
	assert.Equal(t, "national.co.uk", full.Retailer)
	assert.Equal(t, "SKU-1", full.SKU)
	assert.Equal(t, "Michelin", full.Brand)
	assert.Equal(t, "Primacy 4", full.Pattern)
	assert.Equal(t, "Summer", full.Season)
	assert.Equal(t, "Car", full.VehicleType)
	assert.Equal(t, models.TriFalse, full.Budget)
	price, ok := full.Price()
	require.True(t, ok)
	assert.InDelta(t, 84.99, price, 0.001)

	empty := rows[1]
	assert.Equal(t, "SKU-2", empty.SKU)
	assert.Empty(t, empty.Brand)
	assert.Empty(t, empty.Pattern)
	assert.Equal(t, models.TriUnknown, empty.Budget)
	_, ok = empty.Price()
	assert.False(t, ok)
}
