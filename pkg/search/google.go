package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/umputun/newswatch/pkg/domain"
)

const defaultBaseURL = "https://www.googleapis.com/customsearch/v1"

// sourceName labels every search result in reports
const sourceName = "Google Search"

// Client queries the Google Custom Search JSON API
type Client struct {
	apiKey       string
	engineID     string
	baseURL      string
	dateRestrict string
	results      int
	client       *http.Client
}

// Opts holds search client options
type Opts struct {
	APIKey       string
	EngineID     string
	DateRestrict string        // google dateRestrict value, e.g. "w1"
	Results      int           // results per query, 1-10
	Timeout      time.Duration // per-request timeout
	BaseURL      string        // override for tests
}

// NewClient creates a search client. APIKey and EngineID must be set.
func NewClient(opts Opts) (*Client, error) {
	if opts.APIKey == "" || opts.EngineID == "" {
		return nil, fmt.Errorf("google search credentials are not configured")
	}
	if opts.Results <= 0 {
		opts.Results = 5
	}
	if opts.Results > 10 {
		opts.Results = 10
	}
	if opts.DateRestrict == "" {
		opts.DateRestrict = "w1"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:       opts.APIKey,
		engineID:     opts.EngineID,
		baseURL:      baseURL,
		dateRestrict: opts.DateRestrict,
		results:      opts.Results,
		client:       &http.Client{Timeout: opts.Timeout},
	}, nil
}

// searchResponse is the subset of the CSE response we consume
type searchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Search runs one query and returns normalized items. Zero results is not
// an error; quota and auth failures are.
func (c *Client) Search(ctx context.Context, query string) ([]domain.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(query), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	defer resp.Body.Close()

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode search response for %q: %w", query, err)
	}

	// the API reports quota and auth problems in the error envelope
	if body.Error != nil {
		return nil, fmt.Errorf("search %q failed: %s (%s)", query, body.Error.Message, body.Error.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search %q: unexpected status code %d", query, resp.StatusCode)
	}

	items := make([]domain.Item, 0, len(body.Items))
	for _, res := range body.Items {
		items = append(items, domain.Item{
			Source:     domain.SourceSearch,
			SourceName: sourceName,
			Title:      res.Title,
			URL:        res.Link,
			Excerpt:    res.Snippet,
		})
	}
	return items, nil
}

// requestURL builds the CSE request for a query
func (c *Client) requestURL(query string) string {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(c.results))
	params.Set("dateRestrict", c.dateRestrict)
	return c.baseURL + "?" + params.Encode()
}
