// Package dexel scrapes dexel.co.uk, which only renders results after a
// sequence of dependent UI interactions: three cascading size dropdowns, a
// search click and a branch confirmation. The navigation is modelled as an
// explicit state machine driven over an abstract Page capability so the
// machine itself never touches a browser directly.
package dexel

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tyre-scraper/models"
	"tyre-scraper/scraper"
	"tyre-scraper/utils"
)

const (
	domain  = "dexel.co.uk"
	baseURL = "https://www.dexel.co.uk"
)

// Selectors for the interactive elements the machine drives. XPath is used
// where the target is only identifiable by its text.
const (
	searchFormLink = `//a[contains(text(),'Search by Tyre Size')]`
	widthSelect    = `select.width_list`
	profileSelect  = `select.profile_list`
	rimSelect      = `select.size_list`
	searchLink     = `//a[contains(text(),'Search')]`
	branchButton   = `//button[text()='Select This Branch']`
	productCard    = `div.tkf-product`
	nextPageLink   = `//a[text()='>']`
)

// State is one node of the navigation state machine.
type State int

const (
	StateStart State = iota
	StateSearchFormOpened
	StateWidthSelected
	StateProfileSelected
	StateRimSelected
	StateBranchConfirmed
	StateResultsLoaded
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "Start"
	case StateSearchFormOpened:
		return "SearchFormOpened"
	case StateWidthSelected:
		return "WidthSelected"
	case StateProfileSelected:
		return "ProfileSelected"
	case StateRimSelected:
		return "RimSelected"
	case StateBranchConfirmed:
		return "BranchConfirmed"
	case StateResultsLoaded:
		return "ResultsLoaded"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Page is the interactive-document capability the state machine drives.
// Every Wait* method blocks with a bounded timeout owned by the
// implementation and returns utils.ErrWaitTimeout when the bound is hit.
type Page interface {
	// Open navigates to the given URL.
	Open(ctx context.Context, url string) error
	// Click activates the element matching selector.
	Click(ctx context.Context, selector string) error
	// ClickIfPresent activates the element if it exists, reporting whether
	// it did. Absence is not an error.
	ClickIfPresent(ctx context.Context, selector string) (bool, error)
	// Options returns the visible texts of a <select>'s options.
	Options(ctx context.Context, selector string) ([]string, error)
	// Select chooses the option with the given visible text.
	Select(ctx context.Context, selector, value string) error
	// WaitReady blocks until the element is present and interactable.
	WaitReady(ctx context.Context, selector string) error
	// WaitOptionsPopulated blocks until the <select> holds more than one
	// option, the signal that a dependent dropdown has been repopulated
	// after its parent selection.
	WaitOptionsPopulated(ctx context.Context, selector string) error
	// HTML returns the rendered document for the current state.
	HTML(ctx context.Context) (string, error)
}

// PageFactory opens a fresh page for one extraction run. The returned
// func releases the page's resources.
type PageFactory func(ctx context.Context) (Page, func(), error)

// Adapter is the script-driven site adapter for dexel.co.uk.
type Adapter struct {
	newPage PageFactory
	pacer   *utils.Pacer
	logger  *utils.Logger
	state   State
}

// New creates a Dexel adapter. pacer spaces out the simulated interactions
// to keep the traffic pattern human-ish.
func New(newPage PageFactory, pacer *utils.Pacer, logger *utils.Logger) *Adapter {
	return &Adapter{newPage: newPage, pacer: pacer, logger: logger, state: StateStart}
}

// Identify returns the retailer domain.
func (a *Adapter) Identify() string { return domain }

// BuildQuery describes the navigation target; Dexel has no deep-linkable
// results URL, everything goes through the search form on the homepage.
func (a *Adapter) BuildQuery(q models.Query) string {
	return fmt.Sprintf("%s (search form: %s)", baseURL, q.Label())
}

// State reports the machine's position after the most recent Extract call.
func (a *Adapter) State() State { return a.state }

// Extract walks the navigation machine for the query and collects listings
// across all result pages. A geometry value missing from a dropdown's
// option set is a valid no-match: the machine halts and zero listings are
// returned with a nil error. A bounded wait expiring is fatal for this
// retailer's run and surfaces as ErrNavigationTimeout.
func (a *Adapter) Extract(ctx context.Context, q models.Query) ([]models.RawListing, error) {
	a.state = StateStart

	page, release, err := a.newPage(ctx)
	if err != nil {
		return nil, &scraper.FetchError{Domain: domain, Err: err}
	}
	defer release()

	if err := page.Open(ctx, baseURL); err != nil {
		return nil, &scraper.FetchError{Domain: domain, Err: err}
	}

	if err := page.WaitReady(ctx, searchFormLink); err != nil {
		return nil, navErr("search form link", err)
	}
	a.pacer.Wait()
	if err := page.Click(ctx, searchFormLink); err != nil {
		return nil, fmt.Errorf("dexel: open search form: %w", err)
	}
	a.state = StateSearchFormOpened

	// Cascading dropdowns: width repopulates profile, profile repopulates
	// rim. Each step bails out with zero results if the requested value is
	// not offered.
	steps := []struct {
		selector string
		value    int
		next     State
		cascaded bool
	}{
		{widthSelect, q.Width, StateWidthSelected, false},
		{profileSelect, q.AspectRatio, StateProfileSelected, true},
		{rimSelect, q.RimDiameter, StateRimSelected, true},
	}
	for _, step := range steps {
		matched, err := a.selectFromDropdown(ctx, page, step.selector, strconv.Itoa(step.value), step.cascaded)
		if err != nil {
			return nil, err
		}
		if !matched {
			a.logger.Info("[dexel] %d not offered in %s — no results for %s",
				step.value, step.selector, q.Label())
			return nil, nil
		}
		a.state = step.next
	}

	a.pacer.Wait()
	if err := page.Click(ctx, searchLink); err != nil {
		return nil, fmt.Errorf("dexel: submit search: %w", err)
	}

	if err := page.WaitReady(ctx, branchButton); err != nil {
		return nil, navErr("branch confirmation", err)
	}
	a.pacer.Wait()
	if err := page.Click(ctx, branchButton); err != nil {
		return nil, fmt.Errorf("dexel: confirm branch: %w", err)
	}
	a.state = StateBranchConfirmed

	if err := page.WaitReady(ctx, productCard); err != nil {
		return nil, navErr("results container", err)
	}
	a.state = StateResultsLoaded

	return a.collectPages(ctx, page, q)
}

// selectFromDropdown waits for the dropdown, optionally for its
// repopulation, then selects value by visible text. It reports whether the
// value was among the options.
func (a *Adapter) selectFromDropdown(ctx context.Context, page Page, selector, value string, cascaded bool) (bool, error) {
	if err := page.WaitReady(ctx, selector); err != nil {
		return false, navErr(selector, err)
	}
	if cascaded {
		if err := page.WaitOptionsPopulated(ctx, selector); err != nil {
			return false, navErr(selector+" options", err)
		}
	}

	options, err := page.Options(ctx, selector)
	if err != nil {
		return false, fmt.Errorf("dexel: read %s options: %w", selector, err)
	}

	found := false
	for _, opt := range options {
		if strings.TrimSpace(opt) == value {
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}

	a.pacer.Wait()
	if err := page.Select(ctx, selector, value); err != nil {
		return false, fmt.Errorf("dexel: select %s in %s: %w", value, selector, err)
	}
	return true, nil
}

// collectPages parses the current results page and follows the ">" control
// until it disappears. Listings are deduplicated by SKU across pages.
func (a *Adapter) collectPages(ctx context.Context, page Page, q models.Query) ([]models.RawListing, error) {
	seen := utils.NewSeenSet()
	var listings []models.RawListing

	for pageNum := 1; ; pageNum++ {
		html, err := page.HTML(ctx)
		if err != nil {
			return nil, fmt.Errorf("dexel: read results page %d: %w", pageNum, err)
		}

		pageListings, err := parseResults(html)
		if err != nil {
			return nil, fmt.Errorf("dexel: parse results page %d: %w", pageNum, err)
		}

		kept := 0
		for _, raw := range pageListings {
			if sku, ok := raw.Get(models.KeySKU); ok && !seen.Add(sku) {
				continue
			}
			listings = append(listings, raw)
			kept++
		}
		a.logger.Debug("[dexel] Page %d — %d listings (%d new)", pageNum, len(pageListings), kept)

		clicked, err := page.ClickIfPresent(ctx, nextPageLink)
		if err != nil {
			return nil, fmt.Errorf("dexel: next page control: %w", err)
		}
		if !clicked {
			break
		}

		if err := page.WaitReady(ctx, productCard); err != nil {
			return nil, navErr("results repopulation", err)
		}
		a.state = StateResultsLoaded
		a.pacer.Wait()
	}

	a.state = StateDone
	a.logger.Info("[dexel] Collected %d listings for %s", len(listings), q.Label())
	return listings, nil
}

// navErr maps an expired bounded wait onto the shared navigation-timeout
// error while keeping other failures as-is.
func navErr(step string, err error) error {
	if errors.Is(err, utils.ErrWaitTimeout) {
		return fmt.Errorf("dexel: %s: %w", step, scraper.ErrNavigationTimeout)
	}
	return fmt.Errorf("dexel: %s: %w", step, err)
}

// fieldExtractor pulls one raw field value out of a product card.
type fieldExtractor func(*goquery.Selection) string

// fieldMap declares, per raw field key, how Dexel's result cards yield it.
// Dexel never prints the searched geometry per card and has no budget flag,
// so those keys stay absent.
var fieldMap = map[string]fieldExtractor{
	models.KeySKU:     formInput("prodCode"),
	models.KeyBrand:   formInput("brand"),
	models.KeyPattern: formInput("pattern"),

	models.KeyPrice: func(sel *goquery.Selection) string {
		return strings.TrimSpace(sel.Find("span#defaultBuyingOptionPrice").First().Text())
	},
	models.KeyFuel: func(sel *goquery.Selection) string {
		return strings.TrimSpace(sel.Find(`div[class^='tyre_info_model fuel']`).First().Text())
	},
	models.KeyWetGrip: func(sel *goquery.Selection) string {
		return strings.TrimSpace(sel.Find(`div[class^='tyre_info_model grip']`).First().Text())
	},
	models.KeyNoiseDB: func(sel *goquery.Selection) string {
		return strings.TrimSpace(sel.Find("div.exterior-noice").First().Text())
	},
	models.KeySeason: func(sel *goquery.Selection) string {
		return iconTitle(sel, `div.tyre-icons:not(.vehicle-types)`)
	},
	models.KeyVehicleType: func(sel *goquery.Selection) string {
		return iconTitle(sel, `div.tyre-icons.vehicle-types`)
	},
	models.KeyElectric: func(sel *goquery.Selection) string {
		// Dexel always badges EV tyres, so a missing badge is a known no.
		if sel.Find(`button[title='Electric Vehicle']`).Length() > 0 {
			return "true"
		}
		return "false"
	},
	models.KeyLoadSpeed: func(sel *goquery.Selection) string {
		// The size paragraph reads like "205/55R16 91V XL"; the second
		// token carries load index and speed rating.
		fields := strings.Fields(sel.Find("p.para-text").First().Text())
		if len(fields) < 2 {
			return ""
		}
		return fields[1]
	},
}

// parseResults extracts one RawListing per product card on a results page.
func parseResults(html string) ([]models.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var listings []models.RawListing
	doc.Find(productCard).Each(func(_ int, sel *goquery.Selection) {
		raw := make(models.RawListing, len(fieldMap))
		for key, extract := range fieldMap {
			if v := extract(sel); v != "" {
				raw[key] = v
			}
		}
		listings = append(listings, raw)
	})
	return listings, nil
}

func formInput(name string) fieldExtractor {
	return func(sel *goquery.Selection) string {
		return strings.TrimSpace(sel.Find(
			fmt.Sprintf("form.book_tyre input[name='%s']", name)).First().AttrOr("value", ""))
	}
}

func iconTitle(sel *goquery.Selection, container string) string {
	return strings.TrimSpace(sel.Find(container + ` i[class^='icon-']`).First().AttrOr("title", ""))
}
