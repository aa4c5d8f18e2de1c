// Package websearch provides a web search tool backed by the Tavily search API.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hupe1980/agentloop/tool"
)

// DefaultEndpoint is the Tavily search endpoint.
const DefaultEndpoint = "https://api.tavily.com/search"

// Result is a single search hit.
type Result struct {
	URL     string  `json:"url"`
	Title   string  `json:"title,omitempty"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// Options configures a Client.
type Options struct {
	Endpoint   string
	MaxResults int
	HTTPClient *http.Client
}

// Client calls the Tavily search API.
type Client struct {
	apiKey string
	opts   Options
}

// NewClient creates a Tavily client. MaxResults defaults to 1.
func NewClient(apiKey string, optFns ...func(o *Options)) *Client {
	opts := Options{
		Endpoint:   DefaultEndpoint,
		MaxResults: 1,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{apiKey: apiKey, opts: opts}
}

type searchRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

// Search runs query and returns up to MaxResults hits.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	if c.apiKey == "" {
		return nil, errors.New("tavily api key is not configured")
	}

	body, err := json.Marshal(searchRequest{APIKey: c.apiKey, Query: query, MaxResults: c.opts.MaxResults})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call Tavily API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("tavily API error (status %d): %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if n := c.opts.MaxResults; n > 0 && len(out.Results) > n {
		out.Results = out.Results[:n]
	}

	return out.Results, nil
}

// Args are the arguments accepted by the search tool.
type Args struct {
	Query string `json:"query" description:"The search query"`
}

// Validate rejects blank queries.
func (a Args) Validate() error {
	if a.Query == "" {
		return errors.New("query must not be empty")
	}
	return nil
}

// NewTool exposes the client as the "search" tool.
func NewTool(c *Client) tool.Tool {
	return tool.NewTypedTool(
		"search",
		"A search engine optimized for comprehensive, accurate, and trusted results. Useful for when you need to answer questions about current events. Input should be a search query.",
		func(ctx context.Context, args Args) (any, error) {
			return c.Search(ctx, args.Query)
		},
	)
}
