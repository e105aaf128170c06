package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tyre-scraper/models"
)

func TestCSVWriterWriteAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "tyres.csv")

	w, err := NewCSVWriter(path)
	require.NoError(t, err)

	tyres := []StoredTyre{
		{
			Retailer:        "national.co.uk",
			SKU:             "SKU-1",
			Brand:           "Michelin",
			Pattern:         "Primacy 4",
			Season:          "Summer",
			VehicleType:     "Car",
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
			Budget:          models.TriFalse,
			Electric:        models.TriTrue,
		},
		{
			Retailer:    "dexel.co.uk",
			SKU:         "SKU-2",
			Width:       205,
			AspectRatio: 55,
			RimDiameter: 16,
			Budget:      models.TriUnknown,
			Electric:    models.TriUnknown,
		},
	}

	require.NoError(t, w.WriteAll(tyres))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{
		"retailer", "brand", "width", "aspect_ratio", "rim_diameter",
		"load_index", "speed_rating", "pattern", "price", "wet_grip",
		"season", "fuel_efficiency", "budget", "electric", "vehicle_type",
	}, records[0])

	full := records[1]
	assert.Equal(t, "national.co.uk", full[0])
	assert.Equal(t, "Michelin", full[1])
	assert.Equal(t, "91", full[5])
	assert.Equal(t, "Primacy 4", full[7])
	assert.Equal(t, "84.99", full[8])
	assert.Equal(t, "false", full[12])
	assert.Equal(t, "true", full[13])

	// unknown optionals are written as empty cells
	bare := records[2]
	assert.Equal(t, "dexel.co.uk", bare[0])
	assert.Empty(t, bare[5])  // load_index
	assert.Empty(t, bare[8])  // price
	assert.Empty(t, bare[12]) // budget
	assert.Empty(t, bare[13]) // electric
}
