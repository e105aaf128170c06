package main

import (
	"context"
	"os"

	"tyre-scraper/config"
	"tyre-scraper/models"
	"tyre-scraper/scraper"
	"tyre-scraper/scraper/browser"
	"tyre-scraper/scraper/dexel"
	"tyre-scraper/scraper/national"
	"tyre-scraper/services"
	"tyre-scraper/storage"
	"tyre-scraper/utils"
)

func main() {
	cfg := config.Load()
	logger := utils.NewLogger(cfg.Verbose)

	logger.Info("=== Tyre Scraping System starting ===")
	logger.Info("Config — size: %d/%d/R%d | store: %s | delay: %dms",
		cfg.TyreWidth, cfg.AspectRatio, cfg.RimDiameter, cfg.StoreDriver, cfg.ScrapeDelayMs)

	store, err := openStore(cfg)
	if err != nil {
		logger.Error("Failed to open %s store: %v", cfg.StoreDriver, err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		logger.Error("Migration failed: %v", err)
		os.Exit(1)
	}

	query := models.Query{
		Width:       cfg.TyreWidth,
		AspectRatio: cfg.AspectRatio,
		RimDiameter: cfg.RimDiameter,
	}

	fetcher := scraper.NewHTTPFetcher(cfg.FetchTimeout(), cfg.MaxRetries, logger)
	targets := []services.Target{
		{Adapter: national.New(fetcher, logger), Query: query},
	}

	br, err := browser.New(cfg, logger)
	if err != nil {
		logger.Error("Browser unavailable, skipping script-driven retailers: %v", err)
	} else {
		defer br.Close()
		pacer := utils.NewPacer(cfg.Pace())
		targets = append(targets, services.Target{
			Adapter: dexel.New(br.NewPage, pacer, logger),
			Query:   query,
		})
	}

	norm := services.NewNormalizer(logger)
	pipeline := services.NewPipeline(store, norm, logger, cfg.ScrapeDelay())
	results := pipeline.Run(ctx, targets)

	rows, err := store.FetchAll(ctx)
	if err != nil {
		logger.Error("Failed to fetch stored tyres: %v", err)
	}

	if len(rows) > 0 {
		csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath)
		if err != nil {
			logger.Error("Failed to create CSV writer: %v", err)
		} else {
			defer csvWriter.Close()
			if err := csvWriter.WriteAll(rows); err != nil {
				logger.Error("CSV write failed: %v", err)
			} else {
				logger.Info("Exported %d tyres to %s", len(rows), cfg.CSVOutputPath)
			}
		}
	}

	summarySvc := services.NewSummaryService(logger)
	report := summarySvc.Generate(results, rows)
	summarySvc.Print(report)

	logger.Info("=== Done ===")
}

func openStore(cfg *config.Config) (storage.TyreStore, error) {
	if cfg.StoreDriver == "postgres" {
		return storage.NewPostgres(cfg.DSN())
	}
	return storage.NewSQLite(cfg.SQLitePath)
}
