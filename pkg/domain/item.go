package domain

import "time"

// Source identifies which collector produced an item
type Source string

// collector sources
const (
	SourceFeed   Source = "feed"
	SourceSearch Source = "search"
	SourceScrape Source = "scrape"
)

// Item is a normalized article or search result, immutable once fetched
type Item struct {
	Source     Source
	SourceName string // feed URL, "Google Search" or the scraped page URL
	Title      string
	URL        string
	Published  time.Time // zero when the source carries no date
	Excerpt    string    // summary, snippet or surrounding text, HTML stripped
}

// Match pairs an item with one matched primary keyword. An item matching
// several primary keywords produces several matches, in keyword list order.
type Match struct {
	Item      Item
	Keyword   string
	Secondary []string // secondary keywords found alongside, recorded only
	Regions   []string // region keywords found
}

// SkippedPage records a page the scraper could not process and why
type SkippedPage struct {
	URL    string
	Reason string
}

// RunStats summarizes a single monitor run
type RunStats struct {
	StartedAt      time.Time
	FinishedAt     time.Time
	FeedsOK        int
	FeedsFailed    int
	SearchesOK     int
	SearchesFailed int
	PagesScraped   int
	PagesSkipped   int
	ItemsFetched   int
	ItemsMatched   int
	Duplicates     int
}
