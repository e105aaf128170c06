package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"tyre-scraper/models"
	"tyre-scraper/utils"
)

// SQLiteStore implements TyreStore using modernc.org/sqlite. This is the
// default backend; the whole dataset fits comfortably in one file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the SQLite database at path and configures
// WAL mode.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: exec %s: %w", pragma, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS retailer (
	retailer_id   INTEGER PRIMARY KEY AUTOINCREMENT,
	retailer_name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS brand (
	brand_id   INTEGER PRIMARY KEY AUTOINCREMENT,
	brand_name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS season (
	season_id   INTEGER PRIMARY KEY AUTOINCREMENT,
	season_name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS vehicle_tyre_type (
	vehicle_tyre_type_id   INTEGER PRIMARY KEY AUTOINCREMENT,
	vehicle_tyre_type_name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS pattern (
	pattern_id   INTEGER PRIMARY KEY AUTOINCREMENT,
	pattern_name TEXT NOT NULL,
	brand_id     INTEGER NOT NULL REFERENCES brand(brand_id),
	season_id    INTEGER NOT NULL REFERENCES season(season_id),
	UNIQUE(pattern_name, brand_id)
);

CREATE TABLE IF NOT EXISTS tyre (
	sku                  TEXT NOT NULL,
	retailer_id          INTEGER NOT NULL REFERENCES retailer(retailer_id),
	width                INTEGER NOT NULL,
	aspect_ratio         INTEGER NOT NULL,
	rim_diameter         INTEGER NOT NULL,
	load_index           INTEGER,
	speed_rating         TEXT,
	pattern_id           INTEGER REFERENCES pattern(pattern_id),
	price_minor_units    INTEGER,
	wet_grip             TEXT,
	fuel_efficiency      TEXT,
	db_rating_number     INTEGER,
	db_rating_letter     TEXT,
	budget               INTEGER,
	electric             INTEGER,
	vehicle_tyre_type_id INTEGER REFERENCES vehicle_tyre_type(vehicle_tyre_type_id),
	PRIMARY KEY (sku, retailer_id)
);

CREATE INDEX IF NOT EXISTS idx_tyre_pattern ON tyre(pattern_id);
CREATE INDEX IF NOT EXISTS idx_tyre_price   ON tyre(price_minor_units);
`

// Migrate creates the schema if it doesn't already exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Retailer names are domains and are stored verbatim; the other dimensions
// are title-cased so case variance across pages cannot split a row.

func (s *SQLiteStore) GetOrCreateRetailer(ctx context.Context, name string) (int64, error) {
	return s.getOrCreateByName(ctx, "retailer", "retailer_id", "retailer_name", name)
}

func (s *SQLiteStore) GetOrCreateBrand(ctx context.Context, name string) (int64, error) {
	return s.getOrCreateByName(ctx, "brand", "brand_id", "brand_name", utils.TitleCase(name))
}

func (s *SQLiteStore) GetOrCreateSeason(ctx context.Context, name string) (int64, error) {
	return s.getOrCreateByName(ctx, "season", "season_id", "season_name", utils.TitleCase(name))
}

func (s *SQLiteStore) GetOrCreateVehicleType(ctx context.Context, name string) (int64, error) {
	return s.getOrCreateByName(ctx, "vehicle_tyre_type", "vehicle_tyre_type_id", "vehicle_tyre_type_name", utils.TitleCase(name))
}

// getOrCreateByName is the insert-if-missing-then-select core of every
// simple dimension. Running both statements inside one transaction makes
// the lookup-or-create atomic.
func (s *SQLiteStore) getOrCreateByName(ctx context.Context, table, idCol, nameCol, name string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin %s lookup: %w", table, err)
	}
	defer tx.Rollback()

	insert := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (?) ON CONFLICT(%s) DO NOTHING", table, nameCol, nameCol)
	if _, err := tx.ExecContext(ctx, insert, name); err != nil {
		return 0, fmt.Errorf("sqlite: insert %s %q: %w", table, name, err)
	}

	var id int64
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", idCol, table, nameCol)
	if err := tx.QueryRowContext(ctx, query, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("sqlite: select %s %q: %w", table, name, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit %s lookup: %w", table, err)
	}
	return id, nil
}

// GetOrCreatePattern looks up a pattern by (name, brand). The season bound
// at creation sticks: first write wins.
func (s *SQLiteStore) GetOrCreatePattern(ctx context.Context, name string, brandID, seasonID int64) (int64, error) {
	name = utils.TitleCase(name)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin pattern lookup: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO pattern (pattern_name, brand_id, season_id) VALUES (?, ?, ?)
		 ON CONFLICT(pattern_name, brand_id) DO NOTHING`,
		name, brandID, seasonID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: insert pattern %q: %w", name, err)
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT pattern_id FROM pattern WHERE pattern_name = ? AND brand_id = ?`,
		name, brandID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("sqlite: select pattern %q: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit pattern lookup: %w", err)
	}
	return id, nil
}

// UpsertTyre writes the fact row, replacing all mutable attributes when the
// (sku, retailer) key already exists.
func (s *SQLiteStore) UpsertTyre(ctx context.Context, retailerID int64, t *models.Tyre, patternID, vehicleTypeID sql.NullInt64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tyre (
			sku, retailer_id, width, aspect_ratio, rim_diameter,
			load_index, speed_rating, pattern_id, price_minor_units,
			wet_grip, fuel_efficiency, db_rating_number, db_rating_letter,
			budget, electric, vehicle_tyre_type_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sku, retailer_id) DO UPDATE SET
			width = excluded.width,
			aspect_ratio = excluded.aspect_ratio,
			rim_diameter = excluded.rim_diameter,
			load_index = excluded.load_index,
			speed_rating = excluded.speed_rating,
			pattern_id = excluded.pattern_id,
			price_minor_units = excluded.price_minor_units,
			wet_grip = excluded.wet_grip,
			fuel_efficiency = excluded.fuel_efficiency,
			db_rating_number = excluded.db_rating_number,
			db_rating_letter = excluded.db_rating_letter,
			budget = excluded.budget,
			electric = excluded.electric,
			vehicle_tyre_type_id = excluded.vehicle_tyre_type_id`,
		t.SKU, retailerID, t.Width, t.AspectRatio, t.RimDiameter,
		nullIntPtr(t.LoadIndex), nullString(t.SpeedRating), patternID, nullIntPtr(t.PriceMinorUnits),
		nullString(t.WetGrip), nullString(t.FuelEfficiency), nullIntPtr(t.NoiseDB), nullString(t.NoiseLetterBand),
		nullTri(t.Budget), nullTri(t.Electric), vehicleTypeID)
	if err != nil {
		return fmt.Errorf("sqlite: upsert tyre %s: %w", t.SKU, err)
	}
	return nil
}

const sqliteFetchAll = `
SELECT r.retailer_name, t.sku,
	COALESCE(b.brand_name, ''), COALESCE(p.pattern_name, ''),
	COALESCE(sn.season_name, ''), COALESCE(v.vehicle_tyre_type_name, ''),
	t.width, t.aspect_ratio, t.rim_diameter,
	t.load_index, t.speed_rating, t.price_minor_units,
	t.wet_grip, t.fuel_efficiency, t.db_rating_number, t.db_rating_letter,
	t.budget, t.electric
FROM tyre t
JOIN retailer r            ON r.retailer_id = t.retailer_id
LEFT JOIN pattern p        ON p.pattern_id = t.pattern_id
LEFT JOIN brand b          ON b.brand_id = p.brand_id
LEFT JOIN season sn        ON sn.season_id = p.season_id
LEFT JOIN vehicle_tyre_type v ON v.vehicle_tyre_type_id = t.vehicle_tyre_type_id
ORDER BY r.retailer_name, t.sku`

// FetchAll reads back every fact row with its dimension names resolved.
func (s *SQLiteStore) FetchAll(ctx context.Context) ([]StoredTyre, error) {
	rows, err := s.db.QueryContext(ctx, sqliteFetchAll)
	if err != nil {
		return nil, fmt.Errorf("sqlite: fetch all: %w", err)
	}
	defer rows.Close()

	return scanStoredTyres(rows)
}

// scanStoredTyres converts joined fact rows, mapping NULLs back onto the
// unknown sentinels. Shared by both SQL backends: the column order of the
// fetch-all query is identical.
func scanStoredTyres(rows *sql.Rows) ([]StoredTyre, error) {
	var tyres []StoredTyre
	for rows.Next() {
		var (
			st                          StoredTyre
			loadIndex, price, noise     sql.NullInt64
			speed, grip, fuel, noiseLtr sql.NullString
			budget, electric            sql.NullBool
		)
		if err := rows.Scan(
			&st.Retailer, &st.SKU, &st.Brand, &st.Pattern, &st.Season, &st.VehicleType,
			&st.Width, &st.AspectRatio, &st.RimDiameter,
			&loadIndex, &speed, &price,
			&grip, &fuel, &noise, &noiseLtr,
			&budget, &electric,
		); err != nil {
			return nil, fmt.Errorf("scan tyre row: %w", err)
		}

		st.LoadIndex = intPtr(loadIndex)
		st.SpeedRating = str(speed)
		st.PriceMinorUnits = intPtr(price)
		st.WetGrip = str(grip)
		st.FuelEfficiency = str(fuel)
		st.NoiseDB = intPtr(noise)
		st.NoiseLetterBand = str(noiseLtr)
		st.Budget = tri(budget)
		st.Electric = tri(electric)

		tyres = append(tyres, st)
	}
	return tyres, rows.Err()
}
