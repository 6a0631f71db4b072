// Package websearch is a client for a Tavily-compatible web search API.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the hosted search endpoint.
const DefaultBaseURL = "https://api.tavily.com/search"

const (
	defaultMaxResults = 5
	maxMaxResults     = 20
	maxErrorBody      = 4 << 10
)

// Client posts search requests with an API key.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// New returns a client. A nil httpClient gets a 30s timeout.
func New(baseURL, apiKey string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{BaseURL: baseURL, APIKey: apiKey, HTTP: httpClient}
}

// Params are the search inputs. Topic is "general" or "news"; empty leaves the API default.
type Params struct {
	Query      string
	MaxResults int
	Topic      string
}

// Result is one normalized hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score,omitempty"`
}

// StatusError reports a non-2xx answer from the API with the body it sent.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("search api status %d", e.Code)
	}
	return fmt.Sprintf("search api status %d: %s", e.Code, e.Body)
}

type searchRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
	Topic      string `json:"topic,omitempty"`
}

type searchResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// clampResults applies the default and the upper bound to a requested result count.
func clampResults(n int) int {
	switch {
	case n <= 0:
		return defaultMaxResults
	case n > maxMaxResults:
		return maxMaxResults
	default:
		return n
	}
}

// Search runs one query.
func (c *Client) Search(ctx context.Context, p Params) ([]Result, error) {
	if c.APIKey == "" {
		return nil, errors.New("search api key missing")
	}
	payload, err := json.Marshal(searchRequest{
		APIKey:     c.APIKey,
		Query:      p.Query,
		MaxResults: clampResults(p.MaxResults),
		Topic:      p.Topic,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	out := make([]Result, 0, len(sr.Results))
	for _, r := range sr.Results {
		out = append(out, Result{Title: r.Title, URL: r.URL, Snippet: r.Content, Score: r.Score})
	}
	return out, nil
}
