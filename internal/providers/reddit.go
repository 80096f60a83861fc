package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

// RedditClient pulls traveler advice from subreddit search using the app-only
// OAuth flow.
type RedditClient struct {
	clientID     string
	clientSecret string
	userAgent    string
	http         httpDoer
	logger       *zap.Logger
	authURL      string
	apiURL       string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
	now         func() time.Time
}

// NewRedditClient builds the adapter.
func NewRedditClient(clientID, clientSecret, userAgent string, http httpDoer, logger *zap.Logger) *RedditClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if userAgent == "" {
		userAgent = "tripplanner/1.0"
	}
	return &RedditClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		userAgent:    userAgent,
		http:         http,
		logger:       logger.Named("reddit"),
		authURL:      "https://www.reddit.com/api/v1/access_token",
		apiURL:       "https://oauth.reddit.com",
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Configured reports whether app credentials are present.
func (c *RedditClient) Configured() bool {
	return c.clientID != "" && c.clientSecret != ""
}

func (c *RedditClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && c.now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))

	doc, err := c.http.PostForm(ctx, c.authURL, form, map[string]string{
		"Authorization": "Basic " + basic,
		"User-Agent":    c.userAgent,
	})
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(doc, &tok); err != nil || tok.AccessToken == "" {
		return "", fmt.Errorf("unexpected token response")
	}
	c.accessToken = tok.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(tok.ExpiresIn-60) * time.Second)
	return c.accessToken, nil
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title     string  `json:"title"`
				Selftext  string  `json:"selftext"`
				Subreddit string  `json:"subreddit"`
				Score     int     `json:"score"`
				UpvoteRatio float64 `json:"upvote_ratio"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// LocalTips searches India travel subreddits for advice about the destination
// and shapes high-signal posts into tips.
func (c *RedditClient) LocalTips(ctx context.Context, destination string) ([]state.LocalTip, string) {
	if !c.Configured() {
		return nil, "reddit credentials not configured"
	}
	tok, err := c.token(ctx)
	if err != nil {
		return nil, reasonf("reddit auth failed: %v", err)
	}

	var listing redditListing
	err = c.http.GetJSONInto(ctx, "places", c.apiURL+"/r/IndiaTravel+india/search",
		map[string]string{
			"q":               destination + " tips",
			"restrict_sr":     "true",
			"sort":            "relevance",
			"t":               "year",
			"limit":           "10",
			"raw_json":        "1",
		},
		map[string]string{
			"Authorization": "Bearer " + tok,
			"User-Agent":    c.userAgent,
		},
		&listing)
	if err != nil {
		return nil, reasonf("reddit search failed: %v", err)
	}

	var out []state.LocalTip
	for _, ch := range listing.Data.Children {
		p := ch.Data
		if p.Title == "" || p.Score < 5 {
			continue
		}
		out = append(out, state.LocalTip{
			Title:    p.Title,
			Detail:   truncateWords(strings.TrimSpace(p.Selftext), 80),
			Category: tipCategory(p.Title + " " + p.Selftext),
			Source:   state.SourceAPI,
		})
		if len(out) == 8 {
			break
		}
	}
	if len(out) == 0 {
		return nil, "no usable reddit posts for " + destination
	}
	return out, ""
}

// tipCategory does a keyword pass so scam warnings surface distinctly.
func tipCategory(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "scam") || strings.Contains(lower, "tout") || strings.Contains(lower, "overcharg"):
		return "scam_warning"
	case strings.Contains(lower, "hidden") || strings.Contains(lower, "offbeat") || strings.Contains(lower, "underrated"):
		return "hidden_gem"
	case strings.Contains(lower, "food") || strings.Contains(lower, "eat") || strings.Contains(lower, "restaurant"):
		return "food"
	default:
		return "advice"
	}
}
