package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tyre-scraper/models"
	"tyre-scraper/scraper"
	"tyre-scraper/storage"
	"tyre-scraper/utils"
)

// Target pairs a site adapter with the tyre size it should be asked for.
type Target struct {
	Adapter scraper.SiteAdapter
	Query   models.Query
}

// Pipeline drives the full scrape for a set of targets: extract raw listings,
// normalize them, and persist the results. A failure on one retailer never
// stops the run; it is recorded on that retailer's result and the pipeline
// moves on.
type Pipeline struct {
	store  storage.TyreStore
	norm   *Normalizer
	logger *utils.Logger
	delay  time.Duration
}

// NewPipeline creates a pipeline. delay is the pause inserted between
// consecutive retailers.
func NewPipeline(store storage.TyreStore, norm *Normalizer, logger *utils.Logger, delay time.Duration) *Pipeline {
	return &Pipeline{store: store, norm: norm, logger: logger, delay: delay}
}

// Run scrapes every target in order and returns one result per retailer.
func (p *Pipeline) Run(ctx context.Context, targets []Target) []models.RetailerResult {
	results := make([]models.RetailerResult, 0, len(targets))

	for i, target := range targets {
		res := p.runTarget(ctx, target)
		results = append(results, res)

		if i < len(targets)-1 && p.delay > 0 {
			p.logger.Debug("Waiting %s before next retailer", p.delay)
			select {
			case <-time.After(p.delay):
			case <-ctx.Done():
				return results
			}
		}
	}

	return results
}

func (p *Pipeline) runTarget(ctx context.Context, target Target) models.RetailerResult {
	domain := target.Adapter.Identify()
	res := models.RetailerResult{Domain: domain, Query: target.Query}
	start := time.Now()
	defer func() { res.Elapsed = time.Since(start) }()

	p.logger.Info("Scraping %s for %s", domain, target.Query.Label())

	raws, err := target.Adapter.Extract(ctx, target.Query)
	if err != nil {
		p.logger.Error("%s: extraction failed: %v", domain, err)
		res.Err = err
		return res
	}

	res.Found = len(raws)
	tyres := p.norm.Normalize(raws, target.Query)
	res.Dropped = res.Found - len(tyres)

	retailerID, err := p.store.GetOrCreateRetailer(ctx, domain)
	if err != nil {
		p.logger.Error("%s: retailer lookup failed: %v", domain, err)
		res.Err = err
		res.Failed = len(tyres)
		return res
	}

	for _, t := range tyres {
		if err := p.persist(ctx, retailerID, t); err != nil {
			p.logger.Error("%s: store %s: %v", domain, t.SKU, err)
			res.Failed++
			continue
		}
		res.Stored++
	}

	p.logger.Info("%s: found %d, stored %d, dropped %d, failed %d",
		domain, res.Found, res.Stored, res.Dropped, res.Failed)
	return res
}

// persist resolves the dimension rows for one tyre and upserts the fact row.
func (p *Pipeline) persist(ctx context.Context, retailerID int64, t *models.Tyre) error {
	var patternID sql.NullInt64
	if t.Pattern != "" && t.Brand != "" {
		brandID, err := p.store.GetOrCreateBrand(ctx, t.Brand)
		if err != nil {
			return fmt.Errorf("brand %q: %w", t.Brand, err)
		}

		seasonName := t.Season
		if seasonName == "" {
			seasonName = "None"
		}
		seasonID, err := p.store.GetOrCreateSeason(ctx, seasonName)
		if err != nil {
			return fmt.Errorf("season %q: %w", seasonName, err)
		}

		id, err := p.store.GetOrCreatePattern(ctx, t.Pattern, brandID, seasonID)
		if err != nil {
			return fmt.Errorf("pattern %q: %w", t.Pattern, err)
		}
		patternID = sql.NullInt64{Int64: id, Valid: true}
	}

	var vehicleTypeID sql.NullInt64
	if t.VehicleType != "" {
		id, err := p.store.GetOrCreateVehicleType(ctx, t.VehicleType)
		if err != nil {
			return fmt.Errorf("vehicle type %q: %w", t.VehicleType, err)
		}
		vehicleTypeID = sql.NullInt64{Int64: id, Valid: true}
	}

	if err := p.store.UpsertTyre(ctx, retailerID, t, patternID, vehicleTypeID); err != nil {
		return err
	}
	return nil
}
