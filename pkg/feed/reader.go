package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/umputun/newswatch/pkg/domain"
)

// Reader fetches RSS/Atom feeds and normalizes their entries
type Reader struct {
	client    *http.Client
	userAgent string
	sanitizer *bluemonday.Policy
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// NewReader creates a feed reader with the given per-request timeout
func NewReader(timeout time.Duration, userAgent string) *Reader {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Reader{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Read fetches and parses a single feed, returning normalized items.
// Entries keep the feed URL as the source name.
func (r *Reader) Read(ctx context.Context, feedURL string) ([]domain.Item, error) {
	if err := validateURL(feedURL); err != nil {
		return nil, err
	}

	body, err := r.fetch(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer body.Close()

	parser := gofeed.NewParser()
	feed, err := parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]domain.Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		item := domain.Item{
			Source:     domain.SourceFeed,
			SourceName: feedURL,
			Title:      r.cleanText(entry.Title),
			URL:        entry.Link,
			Excerpt:    r.cleanText(entry.Description),
		}

		// published falls back to updated, stays zero otherwise
		if entry.PublishedParsed != nil {
			item.Published = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			item.Published = *entry.UpdatedParsed
		}

		items = append(items, item)
	}

	return items, nil
}

// cleanText strips HTML markup and collapses whitespace
func (r *Reader) cleanText(s string) string {
	return strings.Join(strings.Fields(r.sanitizer.Sanitize(s)), " ")
}

// fetch retrieves content from a URL
func (r *Reader) fetch(ctx context.Context, feedURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", r.userAgent)
	addBrowserHeaders(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return resp.Body, nil
}

// validateURL rejects URLs without an http(s) scheme and host
func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse URL %s: %w", rawURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid feed URL: %s", rawURL)
	}
	return nil
}
