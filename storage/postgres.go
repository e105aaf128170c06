package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"tyre-scraper/models"
	"tyre-scraper/utils"
)

// PostgresStore implements TyreStore against PostgreSQL, for runs that feed
// a shared database instead of a local file.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres opens a connection to PostgreSQL and waits for it to come up.
func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS retailer (
	retailer_id   SERIAL PRIMARY KEY,
	retailer_name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS brand (
	brand_id   SERIAL PRIMARY KEY,
	brand_name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS season (
	season_id   SERIAL PRIMARY KEY,
	season_name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS vehicle_tyre_type (
	vehicle_tyre_type_id   SERIAL PRIMARY KEY,
	vehicle_tyre_type_name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS pattern (
	pattern_id   SERIAL PRIMARY KEY,
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
	budget               BOOLEAN,
	electric             BOOLEAN,
	vehicle_tyre_type_id INTEGER REFERENCES vehicle_tyre_type(vehicle_tyre_type_id),
	PRIMARY KEY (sku, retailer_id)
);

CREATE INDEX IF NOT EXISTS idx_tyre_pattern ON tyre(pattern_id);
CREATE INDEX IF NOT EXISTS idx_tyre_price   ON tyre(price_minor_units);
`

// Migrate creates the schema if it doesn't already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresMigration); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Retailer names are domains and are stored verbatim; the other dimensions
// are title-cased so case variance across pages cannot split a row.

func (s *PostgresStore) GetOrCreateRetailer(ctx context.Context, name string) (int64, error) {
	return s.getOrCreateByName(ctx, "retailer", "retailer_id", "retailer_name", name)
}

func (s *PostgresStore) GetOrCreateBrand(ctx context.Context, name string) (int64, error) {
	return s.getOrCreateByName(ctx, "brand", "brand_id", "brand_name", utils.TitleCase(name))
}

func (s *PostgresStore) GetOrCreateSeason(ctx context.Context, name string) (int64, error) {
	return s.getOrCreateByName(ctx, "season", "season_id", "season_name", utils.TitleCase(name))
}

func (s *PostgresStore) GetOrCreateVehicleType(ctx context.Context, name string) (int64, error) {
	return s.getOrCreateByName(ctx, "vehicle_tyre_type", "vehicle_tyre_type_id", "vehicle_tyre_type_name", utils.TitleCase(name))
}

func (s *PostgresStore) getOrCreateByName(ctx context.Context, table, idCol, nameCol, name string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin %s lookup: %w", table, err)
	}
	defer tx.Rollback()

	insert := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES ($1) ON CONFLICT (%s) DO NOTHING", table, nameCol, nameCol)
	if _, err := tx.ExecContext(ctx, insert, name); err != nil {
		return 0, fmt.Errorf("postgres: insert %s %q: %w", table, name, err)
	}

	var id int64
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", idCol, table, nameCol)
	if err := tx.QueryRowContext(ctx, query, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("postgres: select %s %q: %w", table, name, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("postgres: commit %s lookup: %w", table, err)
	}
	return id, nil
}

// GetOrCreatePattern looks up a pattern by (name, brand); the first-seen
// season wins permanently.
func (s *PostgresStore) GetOrCreatePattern(ctx context.Context, name string, brandID, seasonID int64) (int64, error) {
	name = utils.TitleCase(name)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin pattern lookup: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO pattern (pattern_name, brand_id, season_id) VALUES ($1, $2, $3)
		 ON CONFLICT (pattern_name, brand_id) DO NOTHING`,
		name, brandID, seasonID)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert pattern %q: %w", name, err)
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT pattern_id FROM pattern WHERE pattern_name = $1 AND brand_id = $2`,
		name, brandID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: select pattern %q: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("postgres: commit pattern lookup: %w", err)
	}
	return id, nil
}

// UpsertTyre writes the fact row, replacing all mutable attributes when the
// (sku, retailer) key already exists.
func (s *PostgresStore) UpsertTyre(ctx context.Context, retailerID int64, t *models.Tyre, patternID, vehicleTypeID sql.NullInt64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tyre (
			sku, retailer_id, width, aspect_ratio, rim_diameter,
			load_index, speed_rating, pattern_id, price_minor_units,
			wet_grip, fuel_efficiency, db_rating_number, db_rating_letter,
			budget, electric, vehicle_tyre_type_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (sku, retailer_id) DO UPDATE SET
			width = EXCLUDED.width,
			aspect_ratio = EXCLUDED.aspect_ratio,
			rim_diameter = EXCLUDED.rim_diameter,
			load_index = EXCLUDED.load_index,
			speed_rating = EXCLUDED.speed_rating,
			pattern_id = EXCLUDED.pattern_id,
			price_minor_units = EXCLUDED.price_minor_units,
			wet_grip = EXCLUDED.wet_grip,
			fuel_efficiency = EXCLUDED.fuel_efficiency,
			db_rating_number = EXCLUDED.db_rating_number,
			db_rating_letter = EXCLUDED.db_rating_letter,
			budget = EXCLUDED.budget,
			electric = EXCLUDED.electric,
			vehicle_tyre_type_id = EXCLUDED.vehicle_tyre_type_id`,
		t.SKU, retailerID, t.Width, t.AspectRatio, t.RimDiameter,
		nullIntPtr(t.LoadIndex), nullString(t.SpeedRating), patternID, nullIntPtr(t.PriceMinorUnits),
		nullString(t.WetGrip), nullString(t.FuelEfficiency), nullIntPtr(t.NoiseDB), nullString(t.NoiseLetterBand),
		nullTri(t.Budget), nullTri(t.Electric), vehicleTypeID)
	if err != nil {
		return fmt.Errorf("postgres: upsert tyre %s: %w", t.SKU, err)
	}
	return nil
}

const postgresFetchAll = `
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
func (s *PostgresStore) FetchAll(ctx context.Context) ([]StoredTyre, error) {
	rows, err := s.db.QueryContext(ctx, postgresFetchAll)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	return scanStoredTyres(rows)
}
