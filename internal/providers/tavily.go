package providers

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

// TavilyClient runs web searches, used as the fallback research channel when
// a structured API has no coverage.
type TavilyClient struct {
	apiKey  string
	http    httpDoer
	logger  *zap.Logger
	baseURL string
}

// NewTavilyClient builds the adapter.
func NewTavilyClient(apiKey string, http httpDoer, logger *zap.Logger) *TavilyClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TavilyClient{
		apiKey:  apiKey,
		http:    http,
		logger:  logger.Named("tavily"),
		baseURL: "https://api.tavily.com/search",
	}
}

// Configured reports whether an API key is present.
func (c *TavilyClient) Configured() bool { return c.apiKey != "" }

// SearchResult is one web hit.
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Answer holds the synthesized answer plus the raw hits behind it.
type Answer struct {
	Answer  string         `json:"answer"`
	Results []SearchResult `json:"results"`
}

// Search runs one query and returns the synthesized answer with its sources.
func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int) (*Answer, string) {
	if !c.Configured() {
		return nil, "tavily key not configured"
	}
	if maxResults < 1 {
		maxResults = 5
	}

	doc, err := c.http.PostJSON(ctx, "web_search", c.baseURL,
		map[string]any{
			"query":          query,
			"search_depth":   "basic",
			"include_answer": true,
			"max_results":    maxResults,
		},
		map[string]string{"Authorization": "Bearer " + c.apiKey})
	if err != nil {
		return nil, reasonf("web search failed: %v", err)
	}
	var ans Answer
	if err := decodeInto(doc, &ans); err != nil {
		return nil, reasonf("web search payload malformed: %v", err)
	}
	if ans.Answer == "" && len(ans.Results) == 0 {
		return nil, "web search returned nothing for: " + query
	}
	return &ans, ""
}

// FestivalEvents searches for festivals and events overlapping the window and
// shapes the hits into event records.
func (c *TavilyClient) FestivalEvents(ctx context.Context, destination, window string) ([]state.EventInfo, string) {
	ans, reason := c.Search(ctx, fmt.Sprintf("festivals and events in %s during %s", destination, window), 5)
	if ans == nil {
		return nil, reason
	}
	var out []state.EventInfo
	for _, r := range ans.Results {
		if r.Title == "" {
			continue
		}
		out = append(out, state.EventInfo{
			Name:        r.Title,
			Description: truncateWords(r.Content, 60),
			Source:      state.SourceTavilyWeb,
		})
	}
	if len(out) == 0 && ans.Answer != "" {
		out = append(out, state.EventInfo{
			Name:        "Local events overview",
			Description: truncateWords(ans.Answer, 80),
			Source:      state.SourceTavilyWeb,
		})
	}
	return out, ""
}

func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ") + "..."
}
