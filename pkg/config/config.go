package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Feeds []string `yaml:"feeds" json:"feeds" jsonschema:"description=RSS/Atom feed URLs to monitor"`

	Keywords KeywordsConfig `yaml:"keywords" json:"keywords" jsonschema:"description=Keyword lists driving the filter"`

	Search SearchConfig `yaml:"search" json:"search" jsonschema:"description=Google Custom Search configuration"`

	Scrape ScrapeConfig `yaml:"scrape" json:"scrape" jsonschema:"description=Listing page scraper configuration"`

	LLM LLMConfig `yaml:"llm" json:"llm" jsonschema:"description=LLM configuration for summarization and the agent loop"`

	Extraction ExtractionConfig `yaml:"extraction" json:"extraction" jsonschema:"description=Full-text extraction of matched articles"`

	Output struct {
		File string `yaml:"file" json:"file" jsonschema:"default=monitor_results.csv,description=CSV report path"`
	} `yaml:"output" json:"output" jsonschema:"description=Report output configuration"`

	History struct {
		DSN string `yaml:"dsn" json:"dsn" jsonschema:"description=SQLite DSN for the run journal, empty disables it"`
	} `yaml:"history" json:"history" jsonschema:"description=Run journal configuration"`

	Fetch struct {
		Timeout   time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Per-feed fetch timeout"`
		UserAgent string        `yaml:"user_agent" json:"user_agent" jsonschema:"description=User agent for feed requests"`
	} `yaml:"fetch" json:"fetch" jsonschema:"description=Feed fetching configuration"`
}

// KeywordsConfig holds the keyword lists used by the filter
type KeywordsConfig struct {
	Primary   []string `yaml:"primary" json:"primary" jsonschema:"required,description=At least one must occur for an item to match"`
	Secondary []string `yaml:"secondary" json:"secondary" jsonschema:"description=Supporting keywords, recorded alongside matches"`
	Exclusion []string `yaml:"exclusion" json:"exclusion" jsonschema:"description=Any occurrence rejects the item"`
	Region    []string `yaml:"region" json:"region" jsonschema:"description=Region keywords, gate scraped entries and are recorded elsewhere"`
}

// SearchConfig holds Google Custom Search settings
type SearchConfig struct {
	APIKey       string        `yaml:"api_key" json:"api_key" jsonschema:"description=Google API key (can use environment variable)"`
	EngineID     string        `yaml:"engine_id" json:"engine_id" jsonschema:"description=Custom search engine ID"`
	Keywords     []string      `yaml:"keywords" json:"keywords" jsonschema:"description=Queries, one search request each"`
	Results      int           `yaml:"results" json:"results" jsonschema:"default=5,minimum=1,maximum=10,description=Results per query"`
	DateRestrict string        `yaml:"date_restrict" json:"date_restrict" jsonschema:"default=w1,description=Google dateRestrict value (d/w/m/y + count)"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=10s,description=Per-request timeout"`
}

// ScrapeConfig holds listing page scraper settings
type ScrapeConfig struct {
	Pages      []string      `yaml:"pages" json:"pages" jsonschema:"description=Listing/homepage URLs to scrape"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=15s,description=Per-page fetch timeout"`
	MaxEntries int           `yaml:"max_entries" json:"max_entries" jsonschema:"default=200,description=Entry cap per page"`
	MinTextLen int           `yaml:"min_text_len" json:"min_text_len" jsonschema:"default=15,description=Minimum entry text length"`
	UserAgent  string        `yaml:"user_agent" json:"user_agent" jsonschema:"description=User agent for page requests"`
}

// AgentConfig holds agent loop settings
type AgentConfig struct {
	MaxToolCalls int    `yaml:"max_tool_calls" json:"max_tool_calls" jsonschema:"default=8,minimum=1,description=Hard cap on tool-executing iterations"`
	Instructions string `yaml:"instructions" json:"instructions" jsonschema:"description=System-level instructions for the agent (optional)"`
}

// LLMConfig holds LLM configuration for summarization and the agent loop
type LLMConfig struct {
	Endpoint    string        `yaml:"endpoint" json:"endpoint" jsonschema:"description=OpenAI-compatible API endpoint, empty for api.openai.com"`
	APIKey      string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model       string        `yaml:"model" json:"model" jsonschema:"default=gpt-4o-mini,description=Model name"`
	Temperature float64       `yaml:"temperature" json:"temperature" jsonschema:"default=0.3,description=Temperature for response generation"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=2000,description=Maximum tokens in response"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=60s,description=Request timeout"`
	Agent       AgentConfig   `yaml:"agent" json:"agent" jsonschema:"description=Agent loop settings"`
}

// ExtractionConfig holds full-text extraction settings
type ExtractionConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Enable full-text extraction for matched feed items"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Extraction timeout per article"`
	MinTextLength int           `yaml:"min_text_length" json:"min_text_length" jsonschema:"default=100,description=Minimum text length to consider valid"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Newswatch/1.0,description=User agent for HTTP requests"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables, credentials stay out of the file
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// setDefaults fills zero values with defaults
func setDefaults(cfg *Config) {
	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = 30 * time.Second
	}

	if cfg.Search.Results == 0 {
		cfg.Search.Results = 5
	}
	if cfg.Search.DateRestrict == "" {
		cfg.Search.DateRestrict = "w1"
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = 10 * time.Second
	}

	if cfg.Scrape.Timeout == 0 {
		cfg.Scrape.Timeout = 15 * time.Second
	}
	if cfg.Scrape.MaxEntries == 0 {
		cfg.Scrape.MaxEntries = 200
	}
	if cfg.Scrape.MinTextLen == 0 {
		cfg.Scrape.MinTextLen = 15
	}

	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.3
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2000
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.LLM.Agent.MaxToolCalls == 0 {
		cfg.LLM.Agent.MaxToolCalls = 8
	}

	if cfg.Extraction.Timeout == 0 {
		cfg.Extraction.Timeout = 30 * time.Second
	}
	if cfg.Extraction.MinTextLength == 0 {
		cfg.Extraction.MinTextLength = 100
	}
	if cfg.Extraction.UserAgent == "" {
		cfg.Extraction.UserAgent = "Newswatch/1.0"
	}

	if cfg.Output.File == "" {
		cfg.Output.File = "monitor_results.csv"
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if len(cfg.Feeds) == 0 && len(cfg.Search.Keywords) == 0 && len(cfg.Scrape.Pages) == 0 {
		return fmt.Errorf("no sources configured, need feeds, search.keywords or scrape.pages")
	}
	if len(cfg.Keywords.Primary) == 0 {
		return fmt.Errorf("keywords.primary is required")
	}

	if len(cfg.Search.Keywords) > 0 {
		if cfg.Search.APIKey == "" {
			return fmt.Errorf("search.api_key is required when search keywords are configured")
		}
		if cfg.Search.EngineID == "" {
			return fmt.Errorf("search.engine_id is required when search keywords are configured")
		}
		if cfg.Search.Results < 1 || cfg.Search.Results > 10 {
			return fmt.Errorf("search.results must be between 1 and 10")
		}
	}

	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}
	if cfg.LLM.Agent.MaxToolCalls < 1 {
		return fmt.Errorf("llm.agent.max_tool_calls must be at least 1")
	}

	if cfg.Extraction.Enabled {
		if cfg.Extraction.Timeout < time.Second {
			return fmt.Errorf("extraction timeout must be at least 1 second")
		}
		if cfg.Extraction.MinTextLength < 0 {
			return fmt.Errorf("extraction min_text_length must be non-negative")
		}
	}

	return nil
}

// LLMConfigured reports whether the LLM can be used, i.e. the key is set
func (c *Config) LLMConfigured() bool {
	return c.LLM.APIKey != ""
}

// GetLLMConfig returns LLM configuration
func (c *Config) GetLLMConfig() LLMConfig {
	return c.LLM
}

// GetExtractionConfig returns full-text extraction configuration
func (c *Config) GetExtractionConfig() ExtractionConfig {
	return c.Extraction
}
