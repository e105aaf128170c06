package services

import (
	"fmt"
	"sort"
	"strings"

	"tyre-scraper/models"
	"tyre-scraper/storage"
	"tyre-scraper/utils"
)

type SummaryService struct {
	logger *utils.Logger
}

func NewSummaryService(logger *utils.Logger) *SummaryService {
	return &SummaryService{logger: logger}
}

// Generate computes the run report from the per-retailer results plus the
// rows currently in the store.
func (s *SummaryService) Generate(results []models.RetailerResult, rows []storage.StoredTyre) *models.RunReport {
	report := &models.RunReport{
		Retailers:       results,
		TyresBySeason:   make(map[string]int),
		TyresByRetailer: make(map[string]int),
	}

	for _, r := range results {
		report.TotalFound += r.Found
		report.TotalStored += r.Stored
		report.TotalDropped += r.Dropped
		report.TotalFailed += r.Failed
	}

	if len(rows) == 0 {
		return report
	}

	var total float64
	for _, t := range rows {
		report.TyresByRetailer[t.Retailer]++
		if t.Season != "" && t.Season != "None" {
			report.TyresBySeason[t.Season]++
		}

		price, ok := t.Price()
		if !ok {
			continue
		}
		if report.PricedTyres == 0 {
			report.MinPrice = price
			report.MaxPrice = price
		}
		report.PricedTyres++
		total += price
		if price < report.MinPrice {
			report.MinPrice = price
		}
		if price > report.MaxPrice {
			report.MaxPrice = price
		}
	}

	if report.PricedTyres > 0 {
		report.AveragePrice = round2(total / float64(report.PricedTyres))
		report.MinPrice = round2(report.MinPrice)
		report.MaxPrice = round2(report.MaxPrice)
	}

	return report
}

func (s *SummaryService) Print(r *models.RunReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  🛞 TYRE SCRAPE SUMMARY\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	// Per-retailer outcomes
	fmt.Printf("\033[1;33m  Retailers\033[0m\n")
	fmt.Printf("  %s\n", thin)
	for _, ret := range r.Retailers {
		status := "\033[1;32mok\033[0m"
		if ret.Err != nil {
			status = "\033[1;31mfailed\033[0m"
		}
		fmt.Printf("  %-22s %s  found %d, stored %d (%.1fs)\n",
			ret.Domain, status, ret.Found, ret.Stored, ret.Elapsed.Seconds())
		if ret.Err != nil {
			fmt.Printf("    \033[0;31m%v\033[0m\n", ret.Err)
		}
	}
	fmt.Println()

	// Overview
	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Listings found   : \033[1m%d\033[0m\n", r.TotalFound)
	fmt.Printf("  Tyres stored     : \033[1m%d\033[0m\n", r.TotalStored)
	fmt.Printf("  Dropped (no SKU) : \033[1m%d\033[0m\n", r.TotalDropped)
	fmt.Printf("  Store failures   : \033[1m%d\033[0m\n", r.TotalFailed)
	fmt.Println()

	// Price stats
	fmt.Printf("\033[1;33m  Price Statistics\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if r.PricedTyres > 0 {
		fmt.Printf("  Priced tyres  : \033[1m%d\033[0m\n", r.PricedTyres)
		fmt.Printf("  Average price : \033[1;32m£%.2f\033[0m\n", r.AveragePrice)
		fmt.Printf("  Minimum price : \033[1;32m£%.2f\033[0m\n", r.MinPrice)
		fmt.Printf("  Maximum price : \033[1;32m£%.2f\033[0m\n", r.MaxPrice)
	} else {
		fmt.Printf("  No price data available\n")
	}
	fmt.Println()

	// Tyres by season
	fmt.Printf("\033[1;33m  Tyres by Season\033[0m\n")
	fmt.Printf("  %s\n", thin)
	printCountBars(r.TyresBySeason)
	fmt.Println()

	// Tyres by retailer
	fmt.Printf("\033[1;33m  Tyres in Store by Retailer\033[0m\n")
	fmt.Printf("  %s\n", thin)
	printCountBars(r.TyresByRetailer)

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

// printCountBars renders a name→count map as sorted histogram lines.
func printCountBars(counts map[string]int) {
	if len(counts) == 0 {
		fmt.Printf("  No data\n")
		return
	}

	type nameCount struct {
		name  string
		count int
	}
	var ordered []nameCount
	for name, cnt := range counts {
		ordered = append(ordered, nameCount{name, cnt})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		return ordered[i].name < ordered[j].name
	})
	for _, nc := range ordered {
		bar := strings.Repeat("█", nc.count)
		fmt.Printf("  %-26s %s (%d)\n", truncate(nc.name, 24), bar, nc.count)
	}
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
