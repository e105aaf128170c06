package scraper

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"tyre-scraper/utils"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Fetcher produces the rendered document for a URL. Static adapters depend
// on this instead of a concrete HTTP client so tests can feed fixture HTML.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPFetcher fetches server-rendered pages over plain HTTP with retries.
type HTTPFetcher struct {
	client *resty.Client
	retry  *utils.RetryConfig
	logger *utils.Logger
}

// NewHTTPFetcher creates an HTTPFetcher with the given request timeout and
// retry budget.
func NewHTTPFetcher(timeout time.Duration, maxRetries int, logger *utils.Logger) *HTTPFetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-GB,en;q=0.5")

	return &HTTPFetcher{
		client: client,
		retry: &utils.RetryConfig{
			MaxAttempts: maxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		logger: logger,
	}
}

// Fetch GETs the URL and returns the response body. Transport failures and
// non-200 responses are retried before the last error is surfaced.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	var body string

	err := f.retry.Do(ctx, "fetch "+url, func() error {
		resp, err := f.client.R().SetContext(ctx).Get(url)
		if err != nil {
			return fmt.Errorf("get: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode())
		}
		body = resp.String()
		return nil
	})
	if err != nil {
		return "", err
	}

	f.logger.Debug("[fetch] Retrieved %d bytes from %s", len(body), url)
	return body, nil
}
