package monitor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/newswatch/pkg/domain"
	"github.com/umputun/newswatch/pkg/filter"
	"github.com/umputun/newswatch/pkg/report"
)

type mockReader struct {
	items map[string][]domain.Item
	errs  map[string]error
}

func (m *mockReader) Read(_ context.Context, feedURL string) ([]domain.Item, error) {
	if err := m.errs[feedURL]; err != nil {
		return nil, err
	}
	return m.items[feedURL], nil
}

type mockSearcher struct {
	items map[string][]domain.Item
	errs  map[string]error
}

func (m *mockSearcher) Search(_ context.Context, query string) ([]domain.Item, error) {
	if err := m.errs[query]; err != nil {
		return nil, err
	}
	return m.items[query], nil
}

type mockScraper struct {
	items   []domain.Item
	skipped []domain.SkippedPage
}

func (m *mockScraper) Scrape(_ context.Context, _ []string) ([]domain.Item, []domain.SkippedPage) {
	return m.items, m.skipped
}

type mockExtractor struct {
	texts map[string]string
	calls []string
}

func (m *mockExtractor) Extract(_ context.Context, url string) (string, error) {
	m.calls = append(m.calls, url)
	if text, ok := m.texts[url]; ok {
		return text, nil
	}
	return "", fmt.Errorf("no content for %s", url)
}

type mockJournal struct {
	stats   domain.RunStats
	matches []domain.Match
	saved   bool
}

func (m *mockJournal) SaveRun(_ context.Context, stats domain.RunStats, matches []domain.Match) (int64, error) {
	m.stats, m.matches, m.saved = stats, matches, true
	return 1, nil
}

func feedItem(feed, title, url string) domain.Item {
	return domain.Item{Source: domain.SourceFeed, SourceName: feed, Title: title, URL: url}
}

func testFilter() *filter.Filter {
	return filter.New(filter.Lists{
		Primary: []string{"IPTV", "pirata"},
		Region:  []string{"México"},
	})
}

func TestMonitor_Run(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "report.csv")

	reader := &mockReader{
		items: map[string][]domain.Item{
			"http://feed-a": {
				feedItem("http://feed-a", "New IPTV crackdown announced", "http://a/1"),
				feedItem("http://feed-a", "Weather today", "http://a/2"),
			},
		},
		errs: map[string]error{"http://broken": fmt.Errorf("connection refused")},
	}
	searcher := &mockSearcher{
		items: map[string][]domain.Item{
			"iptv": {{Source: domain.SourceSearch, SourceName: "Google Search",
				Title: "Sitio pirata clausurado", URL: "http://s/1"}},
		},
	}
	journal := &mockJournal{}

	m := New(Params{
		Reader:         reader,
		Searcher:       searcher,
		Scraper:        &mockScraper{},
		Filter:         testFilter(),
		Journal:        journal,
		Feeds:          []string{"http://feed-a", "http://broken"},
		SearchKeywords: []string{"iptv"},
		OutputFile:     outFile,
	})

	stats, matches, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FeedsOK)
	assert.Equal(t, 1, stats.FeedsFailed, "broken feed skipped, not fatal")
	assert.Equal(t, 1, stats.SearchesOK)
	assert.Equal(t, 3, stats.ItemsFetched)
	assert.Equal(t, 2, stats.ItemsMatched)
	require.Len(t, matches, 2)
	assert.Equal(t, "IPTV", matches[0].Keyword)
	assert.Equal(t, "pirata", matches[1].Keyword)

	// the report on disk round-trips to the same rows
	text, err := report.ReadFileText(outFile)
	require.NoError(t, err)
	rows, err := report.Read(strings.NewReader(text))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "http://feed-a", rows[0].Source)
	assert.Equal(t, "New IPTV crackdown announced", rows[0].Title)
	assert.Equal(t, "IPTV", rows[0].MatchedKeyword)

	assert.True(t, journal.saved)
	assert.Equal(t, stats.ItemsMatched, journal.stats.ItemsMatched)
}

func TestMonitor_RunDedupFirstWins(t *testing.T) {
	reader := &mockReader{items: map[string][]domain.Item{
		"http://feed-a": {feedItem("http://feed-a", "IPTV raid reported", "http://dup")},
		"http://feed-b": {feedItem("http://feed-b", "IPTV raid reported again", "http://dup")},
	}}

	m := New(Params{
		Reader:     reader,
		Filter:     testFilter(),
		Feeds:      []string{"http://feed-a", "http://feed-b"},
		OutputFile: filepath.Join(t.TempDir(), "report.csv"),
	})

	stats, matches, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "http://feed-a", matches[0].Item.SourceName, "first occurrence wins")
	assert.Equal(t, 1, stats.Duplicates)
}

func TestMonitor_RunRegionGateOnScrapedOnly(t *testing.T) {
	reader := &mockReader{items: map[string][]domain.Item{
		"http://feed-a": {feedItem("http://feed-a", "IPTV news from Spain", "http://f/1")},
	}}
	scraper := &mockScraper{
		items: []domain.Item{
			{Source: domain.SourceScrape, SourceName: "http://page", URL: "http://p/1",
				Excerpt: "IPTV pirata en México crece"},
			{Source: domain.SourceScrape, SourceName: "http://page", URL: "http://p/2",
				Excerpt: "IPTV news without any region"},
		},
		skipped: []domain.SkippedPage{{URL: "http://blocked", Reason: "HTTP 403"}},
	}

	m := New(Params{
		Reader:      reader,
		Scraper:     scraper,
		Filter:      testFilter(),
		Feeds:       []string{"http://feed-a"},
		ScrapePages: []string{"http://page", "http://blocked"},
		OutputFile:  filepath.Join(t.TempDir(), "report.csv"),
	})

	stats, matches, err := m.Run(context.Background())
	require.NoError(t, err)

	// feed item passes without a region, scraped entry needs one
	urls := make([]string, 0, len(matches))
	for _, match := range matches {
		urls = append(urls, match.Item.URL)
	}
	assert.Contains(t, urls, "http://f/1")
	assert.Contains(t, urls, "http://p/1")
	assert.NotContains(t, urls, "http://p/2")

	assert.Equal(t, 1, stats.PagesScraped)
	assert.Equal(t, 1, stats.PagesSkipped)
}

func TestMonitor_RunSearchFailureIsolated(t *testing.T) {
	searcher := &mockSearcher{
		items: map[string][]domain.Item{
			"good": {{Source: domain.SourceSearch, SourceName: "Google Search",
				Title: "pirata site", URL: "http://s/1"}},
		},
		errs: map[string]error{"bad": fmt.Errorf("quota exceeded")},
	}

	m := New(Params{
		Reader:         &mockReader{},
		Searcher:       searcher,
		Filter:         testFilter(),
		SearchKeywords: []string{"bad", "good"},
		OutputFile:     filepath.Join(t.TempDir(), "report.csv"),
	})

	stats, matches, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SearchesFailed)
	assert.Equal(t, 1, stats.SearchesOK)
	require.Len(t, matches, 1, "failed query does not suppress the others")
}

func TestMonitor_RunZeroSearchResults(t *testing.T) {
	m := New(Params{
		Reader:         &mockReader{},
		Searcher:       &mockSearcher{},
		Filter:         testFilter(),
		SearchKeywords: []string{"nothing"},
		OutputFile:     filepath.Join(t.TempDir(), "report.csv"),
	})

	stats, matches, err := m.Run(context.Background())
	require.NoError(t, err, "zero results is not an error")
	assert.Empty(t, matches)
	assert.Equal(t, 1, stats.SearchesOK)
}

func TestMonitor_RunEnrichment(t *testing.T) {
	reader := &mockReader{items: map[string][]domain.Item{
		"http://feed-a": {
			feedItem("http://feed-a", "Breaking news", "http://a/1"), // no excerpt, no keyword in title
			{Source: domain.SourceFeed, SourceName: "http://feed-a", Title: "Other news",
				URL: "http://a/2", Excerpt: "a long enough excerpt already present here"},
		},
	}}
	extractor := &mockExtractor{texts: map[string]string{
		"http://a/1": "full article text mentioning IPTV services",
	}}

	m := New(Params{
		Reader:        reader,
		Filter:        testFilter(),
		Extractor:     extractor,
		MinExcerptLen: 20,
		Feeds:         []string{"http://feed-a"},
		OutputFile:    filepath.Join(t.TempDir(), "report.csv"),
	})

	_, matches, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"http://a/1"}, extractor.calls, "only short excerpts get extraction")
	require.Len(t, matches, 1)
	assert.Equal(t, "http://a/1", matches[0].Item.URL, "extracted text made the item match")
}

func TestMonitor_RunCanceledKeepsOldReport(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "report.csv")
	previous := "source,title,url,matched_keyword\nfeed-a,old article,http://old/1,IPTV\n"
	require.NoError(t, os.WriteFile(outFile, []byte(previous), 0o600))

	reader := &mockReader{items: map[string][]domain.Item{
		"http://feed-a": {feedItem("http://feed-a", "IPTV raid", "http://a/1")},
	}}

	m := New(Params{
		Reader:     reader,
		Filter:     testFilter(),
		Feeds:      []string{"http://feed-a"},
		OutputFile: outFile,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := m.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Equal(t, previous, string(data), "previous report left intact")
}

func TestMonitor_RunReportWriteFatal(t *testing.T) {
	m := New(Params{
		Reader:     &mockReader{items: map[string][]domain.Item{"http://f": nil}},
		Filter:     testFilter(),
		Feeds:      []string{"http://f"},
		OutputFile: filepath.Join(t.TempDir(), "missing-dir", "report.csv"),
	})

	_, _, err := m.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write report")
}
