package server

import (
	"context"
	"strings"

	"portal-relay/internal/metrics"
	"portal-relay/internal/sam"
	"portal-relay/internal/websearch"
)

// Searcher runs web searches for web_search.
type Searcher interface {
	Search(ctx context.Context, p websearch.Params) ([]websearch.Result, error)
}

// OpportunitySearcher queries SAM.gov for sam_search.
type OpportunitySearcher interface {
	Search(ctx context.Context, p sam.SearchParams) ([]sam.Opportunity, error)
}

// WebSearchParams are the parameters of web_search.
type WebSearchParams struct {
	Query      string `json:"query" jsonschema_description:"Search string."`
	MaxResults int    `json:"max_results,omitempty" jsonschema_description:"Number of results (default 5, max 20)."`
	Topic      string `json:"topic,omitempty" jsonschema:"enum=general,enum=news" jsonschema_description:"Search category."`
}

func newWebSearchTool(c Searcher) Tool {
	return newTypedTool(KindWebSearch,
		"Search the web for partner and market research.",
		func(p *WebSearchParams) error {
			if strings.TrimSpace(p.Query) == "" {
				return missingParam("query")
			}
			if p.MaxResults < 0 {
				return invalidParam("max_results")
			}
			if p.Topic != "" && p.Topic != "general" && p.Topic != "news" {
				return invalidParam("topic")
			}
			return nil
		},
		func(ctx context.Context, p WebSearchParams) (any, error) {
			metrics.DownstreamSessions.WithLabelValues("search").Inc()
			return c.Search(ctx, websearch.Params{Query: p.Query, MaxResults: p.MaxResults, Topic: p.Topic})
		},
	)
}

// SAMSearchParams are the parameters of sam_search.
type SAMSearchParams struct {
	Days         int      `json:"days" jsonschema:"minimum=1" jsonschema_description:"Look back this many days of postings."`
	Q            string   `json:"q,omitempty" jsonschema_description:"Title keywords."`
	NAICS        []string `json:"naics,omitempty" jsonschema_description:"NAICS codes."`
	Limit        int      `json:"limit,omitempty" jsonschema:"minimum=1,maximum=100"`
	NoticeType   string   `json:"noticeType,omitempty"`
	Organization string   `json:"organization,omitempty"`
}

func newSAMSearchTool(c OpportunitySearcher) Tool {
	return newTypedTool(KindSAMSearch,
		"Search SAM.gov contract opportunities for sourcing.",
		func(p *SAMSearchParams) error {
			if p.Days < 1 {
				return invalidParam("days")
			}
			if p.Limit < 0 || p.Limit > 100 {
				return invalidParam("limit")
			}
			return nil
		},
		func(ctx context.Context, p SAMSearchParams) (any, error) {
			metrics.DownstreamSessions.WithLabelValues("sam").Inc()
			return c.Search(ctx, sam.SearchParams{
				Q: p.Q, NAICS: p.NAICS, Days: p.Days, Limit: p.Limit, NoticeType: p.NoticeType, Org: p.Organization,
			})
		},
	)
}
