package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/umputun/newswatch/pkg/domain"
)

// Scraper extracts link entries from listing pages, homepages and forum
// indexes. Pages behind auth or anti-bot challenges are skipped with a
// recorded reason instead of failing the batch.
type Scraper struct {
	client     *http.Client
	userAgent  string
	maxEntries int
	minTextLen int
	excerptCap int
}

// Opts holds scraper options
type Opts struct {
	Timeout    time.Duration
	UserAgent  string
	MaxEntries int // per-page entry cap
	MinTextLen int // entries with shorter context text are dropped
}

const (
	defaultMaxEntries = 200
	defaultMinTextLen = 15
	defaultExcerptCap = 500

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	// only the head of the page is checked for anti-bot markers
	captchaProbeBytes = 5000
	maxBodyBytes      = 2 << 20
)

// containerSelector lists tags that typically wrap a link entry on listing pages
const containerSelector = "article, li, div, tr, section, h1, h2, h3, h4"

// captchaRe matches markers commonly found on anti-bot and CAPTCHA pages
var captchaRe = regexp.MustCompile(`(?i)(captcha|recaptcha|hcaptcha|cf[-_]?challenge|verify.you.are.human|are.you.a.robot|access.denied|please.enable.javascript)`)

// NewScraper creates a listing page scraper
func NewScraper(opts Opts) *Scraper {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.MaxEntries == 0 {
		opts.MaxEntries = defaultMaxEntries
	}
	if opts.MinTextLen == 0 {
		opts.MinTextLen = defaultMinTextLen
	}
	return &Scraper{
		client:     &http.Client{Timeout: opts.Timeout},
		userAgent:  opts.UserAgent,
		maxEntries: opts.MaxEntries,
		minTextLen: opts.MinTextLen,
		excerptCap: defaultExcerptCap,
	}
}

// Scrape processes the given pages sequentially. Inaccessible pages end up
// in the skipped list, never in the error return.
func (s *Scraper) Scrape(ctx context.Context, pages []string) (items []domain.Item, skipped []domain.SkippedPage) {
	for _, page := range pages {
		if err := validatePageURL(page); err != nil {
			skipped = append(skipped, domain.SkippedPage{URL: page, Reason: "invalid URL format"})
			continue
		}

		html, reason := s.fetchPage(ctx, page)
		if reason != "" {
			skipped = append(skipped, domain.SkippedPage{URL: page, Reason: reason})
			continue
		}

		entries, err := s.extractEntries(html, page)
		if err != nil {
			skipped = append(skipped, domain.SkippedPage{URL: page, Reason: fmt.Sprintf("parse HTML: %v", err)})
			continue
		}
		items = append(items, entries...)
	}
	return items, skipped
}

// fetchPage retrieves a page and returns its HTML, or a skip reason
func (s *Scraper) fetchPage(ctx context.Context, pageURL string) (html, reason string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return "", fmt.Sprintf("create request: %v", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Sprintf("request failed: %v", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusProxyAuthRequired:
		return "", fmt.Sprintf("HTTP %d, authentication or access denied", resp.StatusCode)
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return "", fmt.Sprintf("HTTP %d, rate-limited or anti-bot challenge", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Sprintf("HTTP %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml") {
		return "", fmt.Sprintf("non-HTML content type: %s", contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Sprintf("read body: %v", err)
	}

	probe := body
	if len(probe) > captchaProbeBytes {
		probe = probe[:captchaProbeBytes]
	}
	if captchaRe.Match(probe) {
		return "", "page contains a CAPTCHA or anti-bot challenge"
	}

	return string(body), ""
}

// extractEntries pulls anchor entries with their surrounding text from a page
func (s *Scraper) extractEntries(html, pageURL string) ([]domain.Item, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	var entries []domain.Item
	seen := make(map[string]struct{})

	doc.Find("a[href]").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
		href := strings.TrimSpace(anchor.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return true
		}

		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		absolute := base.ResolveReference(ref).String()

		// dedupe within the same page
		if _, ok := seen[absolute]; ok {
			return true
		}
		seen[absolute] = struct{}{}

		// context text from the nearest container element, anchor text as fallback
		text := collapseText(anchor.Closest(containerSelector).Text())
		if text == "" {
			text = collapseText(anchor.Text())
		}

		// very short text means a nav or icon link
		if len(text) < s.minTextLen {
			return true
		}
		if len(text) > s.excerptCap {
			// back off to a rune boundary, the cap may land mid-sequence
			cut := s.excerptCap
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut]
		}

		entries = append(entries, domain.Item{
			Source:     domain.SourceScrape,
			SourceName: pageURL,
			URL:        absolute,
			Excerpt:    text,
		})

		return len(entries) < s.maxEntries
	})

	return entries, nil
}

// collapseText collapses all whitespace runs to single spaces
func collapseText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// validatePageURL rejects URLs without an http(s) scheme and host
func validatePageURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid page URL: %s", rawURL)
	}
	return nil
}
