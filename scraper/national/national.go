// Package national scrapes national.co.uk, which server-renders its tyre
// search results. One GET per query, no scripting required.
package national

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tyre-scraper/models"
	"tyre-scraper/scraper"
	"tyre-scraper/utils"
)

const (
	domain  = "national.co.uk"
	baseURL = "https://national.co.uk"

	// National requires a postcode to price results; any valid one works.
	postcode = "DN67RL"

	productSelector = `div[id^="PageContent_ucTyreResults_rptTyres_divTyre_"]`
	patternSelector = `a[id^="PageContent_ucTyreResults_rptTyres_hypPattern_"]`
	labelSelector   = `div[id^="PageContent_ucTyreResults_rptTyres_divTyreLabel_"]`
)

// backgroundURLRegexp captures the url(...) argument of the EU label image,
// whose query string carries the noise rating.
var backgroundURLRegexp = regexp.MustCompile(`\(([^)]+)\)`)

// fieldExtractor pulls one raw field value out of a product container.
// Empty string means the field is absent on this listing.
type fieldExtractor func(*goquery.Selection) string

// fieldMap declares, per raw field key, how National's markup yields it.
var fieldMap = map[string]fieldExtractor{
	models.KeyBrand:       attr("data-brand"),
	models.KeyPrice:       attr("data-price"),
	models.KeyWetGrip:     attr("data-grip"),
	models.KeySeason:      attr("data-tyre-season"),
	models.KeyFuel:        attr("data-fuel"),
	models.KeyBudget:      attr("data-budget"),
	models.KeyElectric:    attr("data-electric"),
	models.KeyVehicleType: attr("data-tyre-type"),

	models.KeySKU: func(sel *goquery.Selection) string {
		return strings.TrimSpace(sel.Find("div.tyreresult button").First().AttrOr("data-partcode", ""))
	},
	models.KeyPattern: func(sel *goquery.Selection) string {
		return strings.TrimSpace(sel.Find(patternSelector).First().Text())
	},

	// The details block renders the full size line, e.g. "205/55 R16 91V".
	models.KeySize:      detailsField(0),
	models.KeyRim:       detailsField(1),
	models.KeyLoadSpeed: detailsField(2),

	models.KeyNoiseDB:     noiseField("NL"),
	models.KeyNoiseLetter: noiseField("NMV"),
}

// Adapter is the static site adapter for national.co.uk.
type Adapter struct {
	fetcher scraper.Fetcher
	logger  *utils.Logger
}

// New creates a National adapter reading pages through the given fetcher.
func New(fetcher scraper.Fetcher, logger *utils.Logger) *Adapter {
	return &Adapter{fetcher: fetcher, logger: logger}
}

// Identify returns the retailer domain.
func (a *Adapter) Identify() string { return domain }

// BuildQuery returns the search results URL for the given geometry.
func (a *Adapter) BuildQuery(q models.Query) string {
	return fmt.Sprintf("%s/tyres-search/%d-%d-%d?pc=%s",
		baseURL, q.Width, q.AspectRatio, q.RimDiameter, postcode)
}

// Extract fetches the single results page and returns one RawListing per
// product container. A transport failure surfaces as a FetchError: the
// caller treats it as zero results for this retailer, not a fatal error.
func (a *Adapter) Extract(ctx context.Context, q models.Query) ([]models.RawListing, error) {
	pageURL := a.BuildQuery(q)
	a.logger.Info("[national] Fetching %s", pageURL)

	html, err := a.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, &scraper.FetchError{Domain: domain, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("national: parse page: %w", err)
	}

	var listings []models.RawListing
	doc.Find(productSelector).Each(func(_ int, sel *goquery.Selection) {
		listings = append(listings, extractListing(sel))
	})

	a.logger.Info("[national] Found %d listings for %s", len(listings), q.Label())
	return listings, nil
}

// extractListing applies the declarative field map to one product container.
// Only keys the page actually provides are set.
func extractListing(sel *goquery.Selection) models.RawListing {
	raw := make(models.RawListing, len(fieldMap))
	for key, extract := range fieldMap {
		if v := extract(sel); v != "" {
			raw[key] = v
		}
	}
	return raw
}

func attr(name string) fieldExtractor {
	return func(sel *goquery.Selection) string {
		return strings.TrimSpace(sel.AttrOr(name, ""))
	}
}

// detailsField returns the nth whitespace token of the second paragraph in
// the details block, where National prints "205/55 R16 91V".
func detailsField(n int) fieldExtractor {
	return func(sel *goquery.Selection) string {
		text := strings.TrimSpace(sel.Find("div.details p").Eq(1).Text())
		fields := strings.Fields(text)
		if n >= len(fields) {
			return ""
		}
		return fields[n]
	}
}

// noiseField extracts one parameter of the EU tyre label image URL, e.g.
// url('/tyre-eprel-image.ashx?NL=70&NMV=B&RRC=D&WG=A'). NL is the noise
// level in dB and NMV its letter band.
func noiseField(param string) fieldExtractor {
	return func(sel *goquery.Selection) string {
		style := sel.Find(labelSelector).First().AttrOr("style", "")
		match := backgroundURLRegexp.FindStringSubmatch(style)
		if len(match) < 2 {
			return ""
		}

		imgURL := strings.Trim(match[1], `'"`)
		parsed, err := url.Parse(imgURL)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(parsed.Query().Get(param))
	}
}
