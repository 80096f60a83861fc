// Package fetch is the uniform outbound HTTP client: bounded retries with
// exponential backoff, per-request timeouts, and write-through into the
// two-tier response cache keyed by request fingerprint.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/cache"
)

// StatusError is a non-retryable HTTP failure carrying the parsed status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.Code, truncate(e.Body, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// TTLFunc maps a cache namespace to its TTL.
type TTLFunc func(namespace string) time.Duration

// Client performs cached GETs with retry. Duplicate concurrent fetches for
// one key are collapsed via singleflight; the contract remains at-least-once
// HTTP execution, and duplicate fetches never corrupt the cache.
type Client struct {
	http     *http.Client
	cache    *cache.TwoTier
	ttlFor   TTLFunc
	logger   *zap.Logger
	group    singleflight.Group
	attempts int
	baseWait time.Duration
	maxWait  time.Duration
	sleep    func(time.Duration)
}

// New builds a client. responseCache may be nil to disable caching.
func New(timeout time.Duration, responseCache *cache.TwoTier, ttlFor TTLFunc, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttlFor == nil {
		ttlFor = func(string) time.Duration { return time.Hour }
	}
	return &Client{
		http:     &http.Client{Timeout: timeout},
		cache:    responseCache,
		ttlFor:   ttlFor,
		logger:   logger.Named("fetch"),
		attempts: 3,
		baseWait: time.Second,
		maxWait:  4 * time.Second,
		sleep:    time.Sleep,
	}
}

// GetJSON fetches a JSON document, consulting the cache first. On a miss it
// performs the request with retry and writes the document through both tiers.
func (c *Client) GetJSON(ctx context.Context, namespace, rawURL string, params, headers map[string]string) (json.RawMessage, error) {
	key := cache.Key(namespace, rawURL, params)
	if c.cache != nil {
		if doc, err := c.cache.Get(ctx, key); err == nil {
			c.logger.Debug("cache hit", zap.String("namespace", namespace), zap.String("url", rawURL))
			return json.RawMessage(doc), nil
		}
	}

	doc, err, _ := c.group.Do(key, func() (any, error) {
		body, err := c.getWithRetry(ctx, rawURL, params, headers)
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			if cerr := c.cache.Set(ctx, key, body, c.ttlFor(namespace)); cerr != nil {
				c.logger.Warn("cache write failed", zap.String("namespace", namespace), zap.Error(cerr))
			}
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(doc.([]byte)), nil
}

// GetJSONInto fetches and decodes into out.
func (c *Client) GetJSONInto(ctx context.Context, namespace, rawURL string, params, headers map[string]string, out any) error {
	doc, err := c.GetJSON(ctx, namespace, rawURL, params, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(doc, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", namespace, err)
	}
	return nil
}

// PostJSON performs a JSON POST with the same retry and cache semantics as
// GetJSON; the serialized body joins the cache fingerprint.
func (c *Client) PostJSON(ctx context.Context, namespace, rawURL string, body any, headers map[string]string) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	key := cache.Key(namespace, rawURL, map[string]string{"body": string(payload)})
	if c.cache != nil {
		if doc, err := c.cache.Get(ctx, key); err == nil {
			return json.RawMessage(doc), nil
		}
	}

	doc, err, _ := c.group.Do(key, func() (any, error) {
		var lastErr error
		for attempt := 0; attempt < c.attempts; attempt++ {
			if attempt > 0 {
				c.sleep(c.backoff(attempt))
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(string(payload)))
			if err != nil {
				return nil, fmt.Errorf("failed to create request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")
			for k, v := range headers {
				req.Header.Set(k, v)
			}
			respBody, retryable, err := c.do(req)
			if err == nil {
				if c.cache != nil {
					if cerr := c.cache.Set(ctx, key, respBody, c.ttlFor(namespace)); cerr != nil {
						c.logger.Warn("cache write failed", zap.String("namespace", namespace), zap.Error(cerr))
					}
				}
				return respBody, nil
			}
			lastErr = err
			if !retryable {
				return nil, err
			}
		}
		return nil, lastErr
	})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(doc.([]byte)), nil
}

// PostForm performs an uncached form POST with the same retry policy.
// Used for OAuth token endpoints.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, headers map[string]string) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			c.sleep(c.backoff(attempt))
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		body, retryable, err := c.do(req)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) getWithRetry(ctx context.Context, rawURL string, params, headers map[string]string) ([]byte, error) {
	full := rawURL
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		full = rawURL + sep + q.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt)
			c.logger.Debug("retrying", zap.String("url", rawURL), zap.Int("attempt", attempt+1), zap.Duration("wait", wait))
			c.sleep(wait)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		body, retryable, err := c.do(req)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// do executes one request. The bool reports whether the failure is retryable
// (connect/read timeouts, HTTP 5xx, HTTP 429).
func (c *Client) do(req *http.Request) ([]byte, bool, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, &StatusError{Code: resp.StatusCode, Body: string(body)}
	default:
		return nil, false, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
}

// backoff returns the wait before the given retry attempt: 1s, 2s, capped 4s.
func (c *Client) backoff(attempt int) time.Duration {
	wait := c.baseWait << (attempt - 1)
	if wait > c.maxWait {
		wait = c.maxWait
	}
	return wait
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
