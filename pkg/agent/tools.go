package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/newswatch/pkg/domain"
)

// FeedReader reads a single feed, see pkg/feed
type FeedReader interface {
	Read(ctx context.Context, feedURL string) ([]domain.Item, error)
}

// Searcher runs one web search query, see pkg/search
type Searcher interface {
	Search(ctx context.Context, query string) ([]domain.Item, error)
}

// PageScraper scrapes listing pages, see pkg/scrape
type PageScraper interface {
	Scrape(ctx context.Context, pages []string) ([]domain.Item, []domain.SkippedPage)
}

// feedArticle is the per-entry payload returned by the read_feeds tool
type feedArticle struct {
	Date    string `json:"date"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Source  string `json:"source"`
}

// FeedTool exposes feed reading to the agent
type FeedTool struct {
	reader       FeedReader
	defaultFeeds []string
}

// NewFeedTool creates the read_feeds tool with a default feed list
func NewFeedTool(reader FeedReader, defaultFeeds []string) *FeedTool {
	return &FeedTool{reader: reader, defaultFeeds: defaultFeeds}
}

// feedArgs is the read_feeds argument schema
type feedArgs struct {
	FeedURLs []string `json:"feed_urls,omitempty" jsonschema:"description=Optional list of RSS/Atom feed URLs to read. When omitted the built-in feed list is used."`
}

// Name returns the tool name
func (t *FeedTool) Name() string { return "read_feeds" }

// Description returns the tool description sent to the model
func (t *FeedTool) Description() string {
	return "Read and parse one or more RSS/Atom feeds. If no feed URLs are provided, " +
		"the default curated list configured in the application is used. Returns a JSON " +
		"array of articles with title, url, summary, source, and publication date."
}

// Parameters returns the argument schema
func (t *FeedTool) Parameters() json.RawMessage { return paramsSchema(&feedArgs{}) }

// Execute reads the requested feeds, skipping unreachable ones
func (t *FeedTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var parsed feedArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &parsed); err != nil {
			return "", fmt.Errorf("parse read_feeds arguments: %w", err)
		}
	}

	feeds := parsed.FeedURLs
	if len(feeds) == 0 {
		feeds = t.defaultFeeds
	}

	articles := []feedArticle{}
	for _, feedURL := range feeds {
		items, err := t.reader.Read(ctx, feedURL)
		if err != nil {
			lgr.Printf("[WARN] read_feeds skipped %s: %v", feedURL, err)
			continue
		}
		for _, item := range items {
			article := feedArticle{
				URL:     item.URL,
				Title:   item.Title,
				Summary: item.Excerpt,
				Source:  item.SourceName,
			}
			if !item.Published.IsZero() {
				article.Date = item.Published.Format("2006-01-02")
			}
			articles = append(articles, article)
		}
	}

	data, err := json.Marshal(articles)
	if err != nil {
		return "", fmt.Errorf("marshal read_feeds result: %w", err)
	}
	return string(data), nil
}

// SearchTool exposes web search to the agent
type SearchTool struct {
	searcher Searcher
}

// NewSearchTool creates the search_web tool
func NewSearchTool(searcher Searcher) *SearchTool {
	return &SearchTool{searcher: searcher}
}

// searchArgs is the search_web argument schema
type searchArgs struct {
	Query string `json:"query" jsonschema:"description=The search query string."`
}

// searchResult is the per-result payload returned by the search_web tool
type searchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Name returns the tool name
func (t *SearchTool) Name() string { return "search_web" }

// Description returns the tool description sent to the model
func (t *SearchTool) Description() string {
	return "Search the web for recent news articles using the Google Custom Search API. " +
		"Returns a list of results with title, link, and snippet."
}

// Parameters returns the argument schema
func (t *SearchTool) Parameters() json.RawMessage { return paramsSchema(&searchArgs{}) }

// Execute runs one search query. API failures are returned as an error
// payload so the model knows the search did not happen.
func (t *SearchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var parsed searchArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return "", fmt.Errorf("parse search_web arguments: %w", err)
	}
	if parsed.Query == "" {
		return "", fmt.Errorf("search_web requires a query")
	}

	items, err := t.searcher.Search(ctx, parsed.Query)
	if err != nil {
		lgr.Printf("[WARN] search_web failed for %q: %v", parsed.Query, err)
		return errorResult(err), nil
	}

	results := make([]searchResult, 0, len(items))
	for _, item := range items {
		results = append(results, searchResult{Title: item.Title, Link: item.URL, Snippet: item.Excerpt})
	}

	data, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("marshal search_web result: %w", err)
	}
	return string(data), nil
}

// ScrapeTool exposes listing page scraping to the agent
type ScrapeTool struct {
	scraper      PageScraper
	defaultPages []string
}

// NewScrapeTool creates the scrape_pages tool with a default page list
func NewScrapeTool(scraper PageScraper, defaultPages []string) *ScrapeTool {
	return &ScrapeTool{scraper: scraper, defaultPages: defaultPages}
}

// scrapeArgs is the scrape_pages argument schema
type scrapeArgs struct {
	URLs []string `json:"urls,omitempty" jsonschema:"description=Optional list of page URLs to scrape. Each URL should point to a homepage or listing page. When omitted the built-in page list is used."`
}

// scrapeEntry is the per-entry payload returned by the scrape_pages tool
type scrapeEntry struct {
	URL        string `json:"url"`
	Text       string `json:"text"`
	SourcePage string `json:"source_page"`
}

// scrapeResult is the full payload returned by the scrape_pages tool
type scrapeResult struct {
	Results []scrapeEntry  `json:"results"`
	Skipped []skippedEntry `json:"skipped"`
}

type skippedEntry struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// Name returns the tool name
func (t *ScrapeTool) Name() string { return "scrape_pages" }

// Description returns the tool description sent to the model
func (t *ScrapeTool) Description() string {
	return "Scrape one or more web pages (homepages, forum listings, directory pages) to " +
		"extract link entries and their surrounding text. If no URLs are provided, the " +
		"default curated list configured in the application is used. Returns a JSON object " +
		"with 'results' (entries with url, text, and source_page) and 'skipped' (pages that " +
		"could not be accessed, with the reason)."
}

// Parameters returns the argument schema
func (t *ScrapeTool) Parameters() json.RawMessage { return paramsSchema(&scrapeArgs{}) }

// Execute scrapes the requested pages, reporting inaccessible ones in skipped
func (t *ScrapeTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var parsed scrapeArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &parsed); err != nil {
			return "", fmt.Errorf("parse scrape_pages arguments: %w", err)
		}
	}

	pages := parsed.URLs
	if len(pages) == 0 {
		pages = t.defaultPages
	}

	items, skipped := t.scraper.Scrape(ctx, pages)

	result := scrapeResult{Results: []scrapeEntry{}, Skipped: []skippedEntry{}}
	for _, item := range items {
		result.Results = append(result.Results, scrapeEntry{URL: item.URL, Text: item.Excerpt, SourcePage: item.SourceName})
	}
	for _, s := range skipped {
		result.Skipped = append(result.Skipped, skippedEntry{URL: s.URL, Reason: s.Reason})
	}

	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal scrape_pages result: %w", err)
	}
	return string(data), nil
}
