// Package browser implements the interactive page capability on top of a
// headless Chrome session driven by chromedp.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"tyre-scraper/config"
	"tyre-scraper/scraper/dexel"
	"tyre-scraper/utils"
)

// Browser owns one Chrome allocator shared by all pages of a run.
type Browser struct {
	allocCtx    context.Context
	cancelFns   []context.CancelFunc
	waitTimeout time.Duration
	logger      *utils.Logger
}

// New starts a headless Chrome allocator using the configured binary, or
// the first one found on the system.
func New(cfg *config.Config, logger *utils.Logger) (*Browser, error) {
	chromeBin := findChromeBinary(cfg.ChromeBin)
	if chromeBin == "" {
		return nil, errors.New("browser: no Chrome/Chromium binary found")
	}
	logger.Info("[browser] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		chromedp.ExecPath(chromeBin),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	// Suppress chromedp log noise
	silentCtx, cancelSilent := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	return &Browser{
		allocCtx:    silentCtx,
		cancelFns:   []context.CancelFunc{cancelSilent, cancelAlloc},
		waitTimeout: cfg.NavWaitTimeout(),
		logger:      logger,
	}, nil
}

// Close tears down the allocator and any remaining sessions.
func (b *Browser) Close() {
	for _, cancel := range b.cancelFns {
		cancel()
	}
}

// NewPage opens a fresh tab for one extraction run. It satisfies
// dexel.PageFactory.
func (b *Browser) NewPage(ctx context.Context) (dexel.Page, func(), error) {
	pageCtx, cancel := chromedp.NewContext(b.allocCtx)

	// Start the session up front so later actions fail fast if Chrome
	// cannot be launched.
	if err := chromedp.Run(pageCtx); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("browser: start session: %w", err)
	}

	return &page{
		ctx:         pageCtx,
		parent:      ctx,
		waitTimeout: b.waitTimeout,
		logger:      b.logger,
	}, cancel, nil
}

// page drives one Chrome tab. Selectors starting with "//" are treated as
// XPath, anything else as a CSS selector.
type page struct {
	ctx         context.Context
	parent      context.Context
	waitTimeout time.Duration
	logger      *utils.Logger
}

func (p *page) run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx := p.ctx
	if deadline, ok := p.parent.Deadline(); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

func (p *page) Open(ctx context.Context, url string) error {
	p.logger.Debug("[browser] Navigating to %s", url)
	if err := p.run(p.waitTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	return nil
}

func (p *page) Click(ctx context.Context, selector string) error {
	err := p.run(p.waitTimeout,
		chromedp.ScrollIntoView(selector, byKind(selector)),
		chromedp.Click(selector, byKind(selector)),
	)
	if err != nil {
		return fmt.Errorf("browser: click %s: %w", selector, err)
	}
	return nil
}

func (p *page) ClickIfPresent(ctx context.Context, selector string) (bool, error) {
	script := fmt.Sprintf(`
		(function() {
			var el = %s;
			if (!el) return false;
			el.scrollIntoView(true);
			el.click();
			return true;
		})()
	`, locatorJS(selector))

	var clicked bool
	if err := p.run(p.waitTimeout, chromedp.Evaluate(script, &clicked)); err != nil {
		return false, fmt.Errorf("browser: click-if-present %s: %w", selector, err)
	}
	return clicked, nil
}

func (p *page) Options(ctx context.Context, selector string) ([]string, error) {
	script := fmt.Sprintf(`
		(function() {
			var el = document.querySelector(%q);
			if (!el || !el.options) return [];
			return Array.from(el.options).map(function(o) { return o.text.trim(); });
		})()
	`, selector)

	var options []string
	if err := p.run(p.waitTimeout, chromedp.Evaluate(script, &options)); err != nil {
		return nil, fmt.Errorf("browser: read options %s: %w", selector, err)
	}
	return options, nil
}

func (p *page) Select(ctx context.Context, selector, value string) error {
	script := fmt.Sprintf(`
		(function() {
			var el = document.querySelector(%q);
			if (!el) return false;
			for (var i = 0; i < el.options.length; i++) {
				if (el.options[i].text.trim() === %q) {
					el.selectedIndex = i;
					el.dispatchEvent(new Event('change', { bubbles: true }));
					return true;
				}
			}
			return false;
		})()
	`, selector, value)

	var selected bool
	if err := p.run(p.waitTimeout, chromedp.Evaluate(script, &selected)); err != nil {
		return fmt.Errorf("browser: select %q in %s: %w", value, selector, err)
	}
	if !selected {
		return fmt.Errorf("browser: option %q not present in %s", value, selector)
	}
	return nil
}

func (p *page) WaitReady(ctx context.Context, selector string) error {
	err := p.run(p.waitTimeout, chromedp.WaitVisible(selector, byKind(selector)))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("browser: %s: %w", selector, utils.ErrWaitTimeout)
		}
		return fmt.Errorf("browser: wait for %s: %w", selector, err)
	}
	return nil
}

func (p *page) WaitOptionsPopulated(ctx context.Context, selector string) error {
	return utils.WaitFor(ctx, p.waitTimeout, 250*time.Millisecond,
		func(ctx context.Context) (bool, error) {
			options, err := p.Options(ctx, selector)
			if err != nil {
				return false, err
			}
			return len(options) > 1, nil
		})
}

func (p *page) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(p.waitTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("browser: read page source: %w", err)
	}
	return html, nil
}

// byKind picks the chromedp selector mode: DOM search handles XPath, plain
// query handles CSS.
func byKind(selector string) chromedp.QueryOption {
	if strings.HasPrefix(selector, "//") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// locatorJS renders the JS expression locating the first element for the
// selector, XPath or CSS.
func locatorJS(selector string) string {
	if strings.HasPrefix(selector, "//") {
		return fmt.Sprintf(
			`document.evaluate(%q, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue`,
			selector)
	}
	return fmt.Sprintf(`document.querySelector(%q)`, selector)
}

// findChromeBinary locates the Chrome/Chromium binary, preferring the
// configured path.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
