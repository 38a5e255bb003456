package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
feeds:
  - https://example.com/rss
  - https://other.example.com/feed

keywords:
  primary: [pirata, IPTV]
  secondary: [gratis]
  exclusion: [oficial]
  region: [México, Colombia]

search:
  api_key: test-key
  engine_id: test-cx
  keywords: ["iptv pirata"]
  results: 3

scrape:
  pages: [https://example.com/foro]

llm:
  api_key: llm-key
  model: gpt-4o
  temperature: 0.5
  agent:
    max_tool_calls: 4

output:
  file: out.csv
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Len(t, cfg.Feeds, 2)
	assert.Equal(t, []string{"pirata", "IPTV"}, cfg.Keywords.Primary)
	assert.Equal(t, "test-key", cfg.Search.APIKey)
	assert.Equal(t, 3, cfg.Search.Results)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 4, cfg.LLM.Agent.MaxToolCalls)
	assert.Equal(t, "out.csv", cfg.Output.File)
	assert.True(t, cfg.LLMConfigured())
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
feeds: [https://example.com/rss]
keywords:
  primary: [pirata]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 5, cfg.Search.Results)
	assert.Equal(t, "w1", cfg.Search.DateRestrict)
	assert.Equal(t, 10*time.Second, cfg.Search.Timeout)
	assert.Equal(t, 15*time.Second, cfg.Scrape.Timeout)
	assert.Equal(t, 200, cfg.Scrape.MaxEntries)
	assert.Equal(t, 15, cfg.Scrape.MinTextLen)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 0.001)
	assert.Equal(t, 2000, cfg.LLM.MaxTokens)
	assert.Equal(t, 8, cfg.LLM.Agent.MaxToolCalls)
	assert.Equal(t, "monitor_results.csv", cfg.Output.File)
	assert.False(t, cfg.LLMConfigured())
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_SEARCH_KEY", "expanded-key")
	t.Setenv("TEST_ENGINE_ID", "expanded-cx")

	path := writeConfig(t, `
feeds: [https://example.com/rss]
keywords:
  primary: [pirata]
search:
  api_key: ${TEST_SEARCH_KEY}
  engine_id: ${TEST_ENGINE_ID}
  keywords: [iptv]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "expanded-key", cfg.Search.APIKey)
	assert.Equal(t, "expanded-cx", cfg.Search.EngineID)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "no sources",
			content: "keywords:\n  primary: [pirata]\n",
			wantErr: "no sources configured",
		},
		{
			name:    "no primary keywords",
			content: "feeds: [https://example.com/rss]\n",
			wantErr: "keywords.primary is required",
		},
		{
			name: "search keywords without credentials",
			content: `
feeds: [https://example.com/rss]
keywords:
  primary: [pirata]
search:
  keywords: [iptv]
`,
			wantErr: "search.api_key is required",
		},
		{
			name: "search keywords without engine id",
			content: `
feeds: [https://example.com/rss]
keywords:
  primary: [pirata]
search:
  api_key: k
  keywords: [iptv]
`,
			wantErr: "search.engine_id is required",
		},
		{
			name: "temperature out of range",
			content: `
feeds: [https://example.com/rss]
keywords:
  primary: [pirata]
llm:
  temperature: 3.5
`,
			wantErr: "llm.temperature must be between 0 and 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_FileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "feeds: [unclosed\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse config")
	})
}
