package cache

import (
	"context"
	"time"
)

// apiCacheStore is the subset of the store used as a durable tier.
type apiCacheStore interface {
	CacheGet(ctx context.Context, key string) ([]byte, error)
	CacheSet(ctx context.Context, key string, doc []byte, ttl time.Duration) error
}

// StoreKV adapts the SQLite api_cache table to the KV interface.
type StoreKV struct {
	store apiCacheStore
}

// NewStoreKV wraps the store's api_cache table as a durable tier.
func NewStoreKV(s apiCacheStore) *StoreKV { return &StoreKV{store: s} }

// Get implements KV.
func (s *StoreKV) Get(ctx context.Context, key string) ([]byte, error) {
	doc, err := s.store.CacheGet(ctx, key)
	if err != nil {
		return nil, ErrMiss
	}
	return doc, nil
}

// Set implements KV.
func (s *StoreKV) Set(ctx context.Context, key string, doc []byte, ttl time.Duration) error {
	return s.store.CacheSet(ctx, key, doc, ttl)
}
