// Package cache implements the two-tier response cache fronting outbound
// HTTP: a process-local LRU with absolute expiry, backed by a durable
// key-value tier (SQLite api_cache table, or Redis when configured).
package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrMiss is returned when a key is absent or expired in both tiers.
var ErrMiss = errors.New("cache: miss")

// KV is the durable second tier. Implementations must support concurrent
// reads and last-writer-wins semantics for same-key writes.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, doc []byte, ttl time.Duration) error
}

// Key computes the cache fingerprint: SHA-256 over the canonical JSON of
// [namespace, url, sorted params].
func Key(namespace, url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sorted := make([][2]string, 0, len(params))
	for _, k := range keys {
		sorted = append(sorted, [2]string{k, params[k]})
	}
	payload, _ := json.Marshal([]any{namespace, url, sorted})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

type lruEntry struct {
	key     string
	doc     []byte
	expires time.Time
}

// TwoTier is the combined cache. Tier 1 is checked first; on a Tier 1 miss
// the durable tier is consulted and its document returned as-is. The KV
// interface carries no remaining-TTL, so a durable hit does not re-enter
// Tier 1; the entry lands there again on the next Set.
type TwoTier struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	maxSize int
	kv      KV
	now     func() time.Time
}

// New builds a two-tier cache. kv may be nil, leaving only the in-process
// tier active.
func New(maxSize int, kv KV) *TwoTier {
	if maxSize <= 0 {
		maxSize = 512
	}
	return &TwoTier{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
		kv:      kv,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the cached document or ErrMiss.
func (c *TwoTier) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		ent := el.Value.(*lruEntry)
		if c.now().Before(ent.expires) {
			c.order.MoveToFront(el)
			doc := ent.doc
			c.mu.Unlock()
			return doc, nil
		}
		// Lazily evict the expired entry on read.
		c.order.Remove(el)
		delete(c.entries, key)
	}
	c.mu.Unlock()

	if c.kv == nil {
		return nil, ErrMiss
	}
	doc, err := c.kv.Get(ctx, key)
	if err != nil {
		return nil, ErrMiss
	}
	return doc, nil
}

// Set writes through both tiers.
func (c *TwoTier) Set(ctx context.Context, key string, doc []byte, ttl time.Duration) error {
	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		el.Value.(*lruEntry).doc = doc
		el.Value.(*lruEntry).expires = c.now().Add(ttl)
		c.order.MoveToFront(el)
	} else {
		el := c.order.PushFront(&lruEntry{key: key, doc: doc, expires: c.now().Add(ttl)})
		c.entries[key] = el
		for len(c.entries) > c.maxSize {
			oldest := c.order.Back()
			if oldest == nil {
				break
			}
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*lruEntry).key)
		}
	}
	c.mu.Unlock()

	if c.kv == nil {
		return nil
	}
	return c.kv.Set(ctx, key, doc, ttl)
}

// Len reports the number of live Tier-1 entries.
func (c *TwoTier) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
