// Package sam provides a minimal client for the SAM.gov Opportunities API.
package sam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public opportunities search endpoint.
const DefaultBaseURL = "https://api.sam.gov/opportunities/v2/search"

// maxErrorBody bounds how much of a failed response is echoed back in errors.
const maxErrorBody = 4 << 10

// Client is a minimal HTTP client for SAM.gov opportunities search.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// New returns a new client. If httpClient is nil, a default with 15s timeout is used.
func New(baseURL, apiKey string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), APIKey: apiKey, HTTP: httpClient}
}

// SearchParams defines supported search filters. Days bounds the posted/modified window.
type SearchParams struct {
	Q          string
	NAICS      []string
	Days       int
	Limit      int
	NoticeType string
	Org        string
}

// Opportunity is a small normalized view of an opportunity.
type Opportunity struct {
	Title    string    `json:"title"`
	Agency   string    `json:"agency"`
	Modified time.Time `json:"modified"`
	URL      string    `json:"url"`
	NoticeID string    `json:"noticeId,omitempty"`
}

// StatusError reports a non-2xx answer from the API with the body it sent.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("sam api status %d", e.Code)
	}
	return fmt.Sprintf("sam api status %d: %s", e.Code, e.Body)
}

// Search performs a search against the opportunities API and returns normalized results.
// The API's field names have drifted over time; normalization accepts the known variants.
func (c *Client) Search(ctx context.Context, p SearchParams) ([]Opportunity, error) {
	if c.APIKey == "" {
		return nil, errors.New("sam api key missing")
	}
	reqURL, err := c.buildSearchURL(p, time.Now())
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	var body any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode sam response: %w", err)
	}
	return normalize(extractItems(body)), nil
}

// buildSearchURL composes the search URL with query params.
func (c *Client) buildSearchURL(p SearchParams, now time.Time) (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	q := u.Query()
	q.Set("api_key", c.APIKey)
	if p.Q != "" {
		q.Set("title", p.Q)
	}
	if len(p.NAICS) > 0 {
		q.Set("ncode", strings.Join(p.NAICS, ","))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.NoticeType != "" {
		q.Set("ptype", p.NoticeType)
	}
	if p.Org != "" {
		q.Set("organizationName", p.Org)
	}
	if p.Days > 0 {
		q.Set("postedFrom", now.AddDate(0, 0, -p.Days).Format("01/02/2006"))
		q.Set("postedTo", now.Format("01/02/2006"))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// extractItems tries common result field names or array root.
func extractItems(body any) []any {
	if m, ok := body.(map[string]any); ok {
		for _, key := range []string{"opportunitiesData", "data", "results"} {
			if arr, ok := m[key].([]any); ok {
				return arr
			}
		}
	}
	if arr, ok := body.([]any); ok {
		return arr
	}
	return nil
}

func normalize(items []any) []Opportunity {
	out := make([]Opportunity, 0, len(items))
	for _, it := range items {
		m, _ := it.(map[string]any)
		out = append(out, Opportunity{
			Title:    firstNonEmpty(getString(m, "title"), getString(m, "noticeTitle")),
			Agency:   firstNonEmpty(getString(m, "fullParentPathName"), getString(m, "agency"), getString(m, "department")),
			URL:      firstNonEmpty(getString(m, "uiLink"), getString(m, "url")),
			Modified: parseTime(firstNonEmpty(getString(m, "lastModifiedDate"), getString(m, "dateModified"), getString(m, "postedDate"))),
			NoticeID: getString(m, "noticeId"),
		})
	}
	return out
}

func getString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
