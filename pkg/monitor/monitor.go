// Package monitor runs the fetch-filter-report pipeline. Execution is
// sequential throughout: feeds, then searches, then scraped pages, each
// source failing on its own without aborting the batch.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/newswatch/pkg/domain"
	"github.com/umputun/newswatch/pkg/report"
)

// FeedReader reads a single feed
type FeedReader interface {
	Read(ctx context.Context, feedURL string) ([]domain.Item, error)
}

// Searcher runs one web search query
type Searcher interface {
	Search(ctx context.Context, query string) ([]domain.Item, error)
}

// PageScraper scrapes listing pages
type PageScraper interface {
	Scrape(ctx context.Context, pages []string) ([]domain.Item, []domain.SkippedPage)
}

// Extractor pulls full article text for short feed excerpts
type Extractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// Filter matches items against the keyword lists
type Filter interface {
	Match(item domain.Item, requireRegion bool) []domain.Match
}

// Journal records completed runs
type Journal interface {
	SaveRun(ctx context.Context, stats domain.RunStats, matches []domain.Match) (int64, error)
}

// Monitor wires the collectors, the filter and the reporter
type Monitor struct {
	reader    FeedReader
	searcher  Searcher // nil when no search keywords configured
	scraper   PageScraper
	extractor Extractor // nil when extraction is disabled
	filter    Filter
	journal   Journal // nil when history is disabled

	feeds          []string
	searchKeywords []string
	scrapePages    []string
	outputFile     string
	minExcerptLen  int // feed excerpts shorter than this get extraction
}

// Params holds monitor dependencies and source lists
type Params struct {
	Reader    FeedReader
	Searcher  Searcher
	Scraper   PageScraper
	Extractor Extractor
	Filter    Filter
	Journal   Journal

	Feeds          []string
	SearchKeywords []string
	ScrapePages    []string
	OutputFile     string
	MinExcerptLen  int
}

// New creates a monitor
func New(p Params) *Monitor {
	return &Monitor{
		reader:         p.Reader,
		searcher:       p.Searcher,
		scraper:        p.Scraper,
		extractor:      p.Extractor,
		filter:         p.Filter,
		journal:        p.Journal,
		feeds:          p.Feeds,
		searchKeywords: p.SearchKeywords,
		scrapePages:    p.ScrapePages,
		outputFile:     p.OutputFile,
		minExcerptLen:  p.MinExcerptLen,
	}
}

// Run executes one pipeline pass and writes the CSV report. A failed feed,
// search keyword or page is logged and skipped; a report write failure is
// fatal. Context cancellation aborts the run without touching the report
// file on disk.
func (m *Monitor) Run(ctx context.Context) (domain.RunStats, []domain.Match, error) {
	stats := domain.RunStats{StartedAt: time.Now()}

	var matches []domain.Match
	seen := make(map[string]struct{})

	// 1. feeds
	for _, feedURL := range m.feeds {
		if err := ctx.Err(); err != nil {
			return stats, nil, fmt.Errorf("run canceled: %w", err)
		}
		items, err := m.reader.Read(ctx, feedURL)
		if err != nil {
			lgr.Printf("[WARN] feed %s skipped: %v", feedURL, err)
			stats.FeedsFailed++
			continue
		}
		stats.FeedsOK++
		stats.ItemsFetched += len(items)
		lgr.Printf("[INFO] feed %s produced %d items", feedURL, len(items))
		matches = append(matches, m.filterNew(ctx, items, seen, &stats, false)...)
	}

	// 2. web searches, one query per keyword
	if m.searcher != nil {
		for _, keyword := range m.searchKeywords {
			if err := ctx.Err(); err != nil {
				return stats, nil, fmt.Errorf("run canceled: %w", err)
			}
			items, err := m.searcher.Search(ctx, keyword)
			if err != nil {
				lgr.Printf("[WARN] search %q skipped: %v", keyword, err)
				stats.SearchesFailed++
				continue
			}
			stats.SearchesOK++
			stats.ItemsFetched += len(items)
			lgr.Printf("[INFO] search %q produced %d results", keyword, len(items))
			matches = append(matches, m.filterNew(ctx, items, seen, &stats, false)...)
		}
	}

	// 3. scraped listing pages, region gate on
	if err := ctx.Err(); err != nil {
		return stats, nil, fmt.Errorf("run canceled: %w", err)
	}
	if m.scraper != nil && len(m.scrapePages) > 0 {
		items, skipped := m.scraper.Scrape(ctx, m.scrapePages)
		stats.PagesScraped = len(m.scrapePages) - len(skipped)
		stats.PagesSkipped = len(skipped)
		stats.ItemsFetched += len(items)
		for _, s := range skipped {
			lgr.Printf("[WARN] page %s skipped: %s", s.URL, s.Reason)
		}
		lgr.Printf("[INFO] scraping produced %d entries, %d pages skipped", len(items), len(skipped))
		matches = append(matches, m.filterNew(ctx, items, seen, &stats, true)...)
	}

	stats.ItemsMatched = len(matches)
	stats.FinishedAt = time.Now()

	// 4. report, never overwrite the previous one on a canceled run
	if err := ctx.Err(); err != nil {
		return stats, nil, fmt.Errorf("run canceled: %w", err)
	}
	if err := report.WriteFile(m.outputFile, matches); err != nil {
		return stats, nil, fmt.Errorf("write report: %w", err)
	}
	lgr.Printf("[INFO] %d matches written to %s (%d duplicates dropped)",
		len(matches), m.outputFile, stats.Duplicates)

	// 5. journal, optional
	if m.journal != nil {
		if _, err := m.journal.SaveRun(ctx, stats, matches); err != nil {
			lgr.Printf("[WARN] failed to journal run: %v", err)
		}
	}

	return stats, matches, nil
}

// filterNew dedupes items by URL (first occurrence wins), optionally
// enriches short feed excerpts with extracted full text, and filters
func (m *Monitor) filterNew(ctx context.Context, items []domain.Item, seen map[string]struct{},
	stats *domain.RunStats, requireRegion bool) []domain.Match {

	var matches []domain.Match
	for _, item := range items {
		if item.URL != "" {
			if _, dup := seen[item.URL]; dup {
				stats.Duplicates++
				continue
			}
			seen[item.URL] = struct{}{}
		}

		m.enrich(ctx, &item)
		matches = append(matches, m.filter.Match(item, requireRegion)...)
	}
	return matches
}

// enrich replaces a too-short feed excerpt with extracted article text
func (m *Monitor) enrich(ctx context.Context, item *domain.Item) {
	if m.extractor == nil || item.Source != domain.SourceFeed {
		return
	}
	if len(item.Excerpt) >= m.minExcerptLen || item.URL == "" {
		return
	}

	text, err := m.extractor.Extract(ctx, item.URL)
	if err != nil {
		lgr.Printf("[DEBUG] extraction failed for %s: %v", item.URL, err)
		return
	}
	item.Excerpt = text
	lgr.Printf("[DEBUG] extracted %d chars for %s", len(text), item.URL)
}
