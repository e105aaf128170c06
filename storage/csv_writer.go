package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// CSVWriter exports stored tyre rows to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)

	if err := w.Write([]string{
		"retailer", "brand", "width", "aspect_ratio", "rim_diameter",
		"load_index", "speed_rating", "pattern", "price", "wet_grip",
		"season", "fuel_efficiency", "budget", "electric", "vehicle_type",
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteAll writes every stored tyre as one row. Unknown optional fields are
// written as empty cells; prices are formatted in major units.
func (c *CSVWriter) WriteAll(tyres []StoredTyre) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range tyres {
		price := ""
		if p, ok := t.Price(); ok {
			price = fmt.Sprintf("%.2f", p)
		}

		row := []string{
			t.Retailer,
			t.Brand,
			strconv.Itoa(t.Width),
			strconv.Itoa(t.AspectRatio),
			strconv.Itoa(t.RimDiameter),
			intCell(t.LoadIndex),
			t.SpeedRating,
			t.Pattern,
			price,
			t.WetGrip,
			t.Season,
			t.FuelEfficiency,
			t.Budget.String(),
			t.Electric.String(),
			t.VehicleType,
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

func intCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
