package scraper

import (
	"context"
	"errors"
	"fmt"

	"tyre-scraper/models"
)

// SiteAdapter translates one retailer's page structure into raw field maps.
// Implementations come in two flavours: static-HTML adapters that parse a
// single server-rendered page per query, and script-driven adapters that
// walk a navigation state machine before any results exist.
type SiteAdapter interface {
	// Identify returns the retailer's domain, e.g. "national.co.uk".
	Identify() string

	// BuildQuery renders the opaque request description for the given
	// search geometry (for static sites this is the results URL).
	BuildQuery(q models.Query) string

	// Extract performs the full navigation for the query and returns one
	// RawListing per product found, accumulated page by page. Each call
	// re-performs the navigation from scratch.
	Extract(ctx context.Context, q models.Query) ([]models.RawListing, error)
}

// ErrNavigationTimeout reports that a required UI state never appeared
// within its bounded wait. It is fatal for one retailer's run only.
var ErrNavigationTimeout = errors.New("required page state never appeared")

// FetchError wraps a transport failure reaching a retailer site. The
// pipeline treats it as "zero results for this retailer in this run".
type FetchError struct {
	Domain string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Domain, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
