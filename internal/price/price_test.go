package price

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(apiURL string) *Service {
	return &Service{
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: FETCH_TIMEOUT},
		cache:      make(map[string]cachedPrice),
	}
}

func TestGetPrice_FetchAndCache(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Contains(t, r.URL.RawQuery, "ids=bitcoin")
		w.Write([]byte(`{"bitcoin":{"usd":50000}}`))
	}))
	defer ts.Close()

	s := newTestService(ts.URL)

	usd, err := s.GetPrice(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, 50000.0, usd)

	// Second call within the freshness window must be served from cache.
	usd, err = s.GetPrice(context.Background(), "btc")
	require.NoError(t, err)
	assert.Equal(t, 50000.0, usd)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestGetPrice_StaleCacheOnUpstreamFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	s := newTestService(ts.URL)
	s.cache["ETH"] = cachedPrice{usd: 2500, fetched: time.Now().Add(-time.Minute)}

	usd, err := s.GetPrice(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, 2500.0, usd, "stale cache should be served when upstream fails")
}

func TestGetPrice_FallbackWithoutCache(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	s := newTestService(ts.URL)

	usd, err := s.GetPrice(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, fallbackPrices["BTC"], usd)
}

func TestGetPrice_UnsupportedSymbol(t *testing.T) {
	s := newTestService("http://localhost:0")

	_, err := s.GetPrice(context.Background(), "DOGE")
	assert.Error(t, err)
}

func TestGetPrice_InvalidQuoteRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bitcoin":{"usd":0}}`))
	}))
	defer ts.Close()

	s := newTestService(ts.URL)

	// A zero quote falls through to the fixed fallback, never to a zero
	// valuation.
	usd, err := s.GetPrice(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, fallbackPrices["BTC"], usd)
}
