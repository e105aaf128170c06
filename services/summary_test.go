package services

import (
	"testing"
	"time"

	"tyre-scraper/models"
	"tyre-scraper/storage"
)

func priceOf(minor int) *int { return &minor }

func sampleResults() []models.RetailerResult {
	return []models.RetailerResult{
		{Domain: "national.co.uk", Found: 10, Stored: 8, Dropped: 2, Elapsed: 3 * time.Second},
		{Domain: "dexel.co.uk", Found: 5, Stored: 4, Failed: 1, Elapsed: 12 * time.Second},
	}
}

func sampleRows() []storage.StoredTyre {
	return []storage.StoredTyre{
		{Retailer: "national.co.uk", SKU: "A", Season: "Summer", PriceMinorUnits: priceOf(8499)},
		{Retailer: "national.co.uk", SKU: "B", Season: "Summer", PriceMinorUnits: priceOf(6150)},
		{Retailer: "dexel.co.uk", SKU: "C", Season: "Winter", PriceMinorUnits: priceOf(12000)},
		{Retailer: "dexel.co.uk", SKU: "D", Season: "None"},
	}
}

func TestSummaryTotals(t *testing.T) {
	svc := NewSummaryService(newTestLogger())
	r := svc.Generate(sampleResults(), sampleRows())

	if r.TotalFound != 15 {
		t.Errorf("TotalFound: got %d, want 15", r.TotalFound)
	}
	if r.TotalStored != 12 {
		t.Errorf("TotalStored: got %d, want 12", r.TotalStored)
	}
	if r.TotalDropped != 2 {
		t.Errorf("TotalDropped: got %d, want 2", r.TotalDropped)
	}
	if r.TotalFailed != 1 {
		t.Errorf("TotalFailed: got %d, want 1", r.TotalFailed)
	}
}

func TestSummaryPrices(t *testing.T) {
	svc := NewSummaryService(newTestLogger())
	r := svc.Generate(sampleResults(), sampleRows())

	if r.PricedTyres != 3 {
		t.Errorf("PricedTyres: got %d, want 3", r.PricedTyres)
	}
	if r.MinPrice != 61.50 {
		t.Errorf("MinPrice: got %.2f, want 61.50", r.MinPrice)
	}
	if r.MaxPrice != 120.00 {
		t.Errorf("MaxPrice: got %.2f, want 120.00", r.MaxPrice)
	}
	wantAvg := 88.83
	if r.AveragePrice != wantAvg {
		t.Errorf("AveragePrice: got %.2f, want %.2f", r.AveragePrice, wantAvg)
	}
}

func TestSummaryGroupings(t *testing.T) {
	svc := NewSummaryService(newTestLogger())
	r := svc.Generate(sampleResults(), sampleRows())

	if r.TyresBySeason["Summer"] != 2 || r.TyresBySeason["Winter"] != 1 {
		t.Errorf("TyresBySeason: got %v", r.TyresBySeason)
	}
	// the "None" placeholder never counts as a season
	if _, ok := r.TyresBySeason["None"]; ok {
		t.Errorf("TyresBySeason should not include the placeholder: %v", r.TyresBySeason)
	}
	if r.TyresByRetailer["national.co.uk"] != 2 || r.TyresByRetailer["dexel.co.uk"] != 2 {
		t.Errorf("TyresByRetailer: got %v", r.TyresByRetailer)
	}
}

func TestSummaryEmptyStore(t *testing.T) {
	svc := NewSummaryService(newTestLogger())
	r := svc.Generate(nil, nil)

	if r.PricedTyres != 0 || r.AveragePrice != 0 {
		t.Errorf("empty input should produce zeroed price stats")
	}
	if len(r.TyresBySeason) != 0 {
		t.Errorf("TyresBySeason should be empty, got %v", r.TyresBySeason)
	}
}
