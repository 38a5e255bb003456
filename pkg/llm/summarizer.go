package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/umputun/newswatch/pkg/config"
)

// Summarizer turns a collected report into a natural-language digest using
// an OpenAI-compatible model
type Summarizer struct {
	client    *openai.Client
	config    config.LLMConfig
	systemMsg string
}

// system prompt template for report summarization, filled with the
// configured keyword lists
const summaryInstructions = `You are a content monitoring assistant.

You will receive the contents of a CSV file with articles collected from
RSS feeds, web searches, and scraped pages. Every article has already been
pre-filtered through keyword filters. Apply a second pass: discard any
article that is NOT relevant to the keyword and region criteria below.

REGION keywords (article MUST mention at least one):
  %s

PRIMARY keywords (preferred):
  %s

SECONDARY keywords (supporting):
  %s

Your job is to:
  1. Remove duplicate articles (same URL or same headline).
  2. Discard any article whose title does not relate to at least one REGION keyword.
  3. Return a numbered list of the remaining articles with:
     - Title
     - URL
     - Source
     - A one-line summary
  4. At the end, print a short summary line:
     "Total relevant articles found: <N>"`

// NewSummarizer creates a summarizer from LLM config
func NewSummarizer(cfg config.LLMConfig, keywords config.KeywordsConfig) *Summarizer {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}

	systemMsg := fmt.Sprintf(summaryInstructions,
		strings.Join(keywords.Region, ", "),
		strings.Join(keywords.Primary, ", "),
		strings.Join(keywords.Secondary, ", "))

	return &Summarizer{
		client:    openai.NewClientWithConfig(clientConfig),
		config:    cfg,
		systemMsg: systemMsg,
	}
}

// Summarize sends the raw CSV report to the model and returns its digest
func (s *Summarizer) Summarize(ctx context.Context, csvText string) (string, error) {
	if strings.TrimSpace(csvText) == "" {
		return "", fmt.Errorf("nothing to summarize")
	}

	req := openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Temperature: float32(s.config.Temperature),
		MaxTokens:   s.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: s.systemMsg},
			{Role: openai.ChatMessageRoleUser, Content: csvText},
		},
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", describeError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from llm")
	}

	return resp.Choices[0].Message.Content, nil
}

// describeError maps common API failures onto readable errors
func describeError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("invalid API key, check credentials: %w", err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("rate limited or out of credits: %w", err)
		}
	}
	return fmt.Errorf("llm request failed: %w", err)
}
