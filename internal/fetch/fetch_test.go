package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/cache"
)

func newTestClient(c *cache.TwoTier) *Client {
	cl := New(5*time.Second, c, func(string) time.Duration { return time.Minute }, zap.NewNop())
	cl.sleep = func(time.Duration) {} // no real waiting in tests
	return cl
}

func TestGetJSONCachesSecondCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"data":[1,2,3]}`))
	}))
	defer srv.Close()

	cl := newTestClient(cache.New(16, nil))
	ctx := context.Background()
	params := map[string]string{"q": "rishikesh"}

	doc1, err := cl.GetJSON(ctx, "places", srv.URL, params, nil)
	require.NoError(t, err)
	doc2, err := cl.GetJSON(ctx, "places", srv.URL, params, nil)
	require.NoError(t, err)

	assert.JSONEq(t, string(doc1), string(doc2))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "warm key must not refetch")
}

func TestGetJSONRefetchesAfterTTL(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cl := New(5*time.Second, cache.New(16, nil), func(string) time.Duration { return time.Nanosecond }, zap.NewNop())
	cl.sleep = func(time.Duration) {}
	ctx := context.Background()

	_, err := cl.GetJSON(ctx, "weather", srv.URL, nil, nil)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = cl.GetJSON(ctx, "weather", srv.URL, nil, nil)
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(&calls), "expired key must refetch")
}

func TestRetryBoundOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cl := newTestClient(nil)
	_, err := cl.GetJSON(context.Background(), "flights", srv.URL, nil, nil)

	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusInternalServerError))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls), "exactly 3 attempts on a deterministic 500")
}

func TestRetriesOn429(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	cl := newTestClient(nil)
	doc, err := cl.GetJSON(context.Background(), "search", srv.URL, nil, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(doc))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestClientErrorFailsFast(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	cl := newTestClient(nil)
	_, err := cl.GetJSON(context.Background(), "hotels", srv.URL, nil, nil)

	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusBadRequest))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "4xx other than 429 must not retry")
}

func TestBackoffSchedule(t *testing.T) {
	cl := newTestClient(nil)
	assert.Equal(t, time.Second, cl.backoff(1))
	assert.Equal(t, 2*time.Second, cl.backoff(2))
	assert.Equal(t, 4*time.Second, cl.backoff(3))
	assert.Equal(t, 4*time.Second, cl.backoff(4), "backoff is capped at 4s")
}

func TestGetJSONIntoDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	cl := newTestClient(nil)
	var out map[string]any
	err := cl.GetJSONInto(context.Background(), "places", srv.URL, nil, nil, &out)
	assert.Error(t, err)
}
