package price

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

const (
	CACHE_TTL     = 10 * time.Second
	FETCH_TIMEOUT = 3 * time.Second
	MAX_RETRIES   = 2

	REDIS_KEY_PRICE = "crash:price:"
)

// coingeckoIDs maps wallet symbols to CoinGecko asset ids.
var coingeckoIDs = map[string]string{
	"BTC": "bitcoin",
	"ETH": "ethereum",
}

// fallbackPrices are last-resort quotes used when the upstream is down and
// no cached value exists. Better a stale valuation than a stalled round.
var fallbackPrices = map[string]float64{
	"BTC": 60000,
	"ETH": 3000,
}

type cachedPrice struct {
	usd     float64
	fetched time.Time
}

// Service is the USD price oracle for bet valuation. Quotes are cached for
// CACHE_TTL; on upstream failure the stale cache is served, and with no
// cache at all a fixed fallback applies. Lookups never block past the fetch
// timeout, so the game engine is insulated from network flakiness.
type Service struct {
	apiURL     string
	httpClient *http.Client
	redis      *redis.Client // optional cross-process cache

	mu    sync.Mutex
	cache map[string]cachedPrice
}

func New(redisClient *redis.Client) *Service {
	apiURL := os.Getenv("COINGECKO_API")
	if apiURL == "" {
		apiURL = "https://api.coingecko.com/api/v3/simple/price"
	}
	return &Service{
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: FETCH_TIMEOUT},
		redis:      redisClient,
		cache:      make(map[string]cachedPrice),
	}
}

// GetPrice returns the USD price of one unit of the given crypto type.
// Unknown symbols are rejected outright.
func (s *Service) GetPrice(ctx context.Context, cryptoType string) (float64, error) {
	symbol := strings.ToUpper(cryptoType)
	coinID, ok := coingeckoIDs[symbol]
	if !ok {
		return 0, fmt.Errorf("unsupported crypto type %q", cryptoType)
	}

	s.mu.Lock()
	cached, hasCached := s.cache[symbol]
	s.mu.Unlock()

	if hasCached && time.Since(cached.fetched) < CACHE_TTL {
		return cached.usd, nil
	}

	usd, err := s.fetch(ctx, coinID)
	if err == nil {
		s.store(ctx, symbol, usd)
		return usd, nil
	}
	log.Printf("[PRICE] Fetch failed for %s: %v", symbol, err)

	// Stale local cache beats the upstream being down.
	if hasCached {
		log.Printf("[PRICE] Using stale cached %s price: %.2f", symbol, cached.usd)
		return cached.usd, nil
	}

	// A neighbour process may have a fresher quote in Redis.
	if usd, ok := s.redisGet(ctx, symbol); ok {
		return usd, nil
	}

	if fb, ok := fallbackPrices[symbol]; ok {
		log.Printf("[PRICE] Using fallback %s price: %.2f", symbol, fb)
		return fb, nil
	}
	return 0, err
}

// fetch queries CoinGecko with bounded retries.
func (s *Service) fetch(ctx context.Context, coinID string) (float64, error) {
	var usd float64

	op := func() error {
		reqURL := fmt.Sprintf("%s?ids=%s&vs_currencies=usd", s.apiURL, url.QueryEscape(coinID))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("coingecko returned status %d", resp.StatusCode)
		}

		var body map[string]map[string]float64
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return err
		}

		p := body[coinID]["usd"]
		if p <= 0 {
			return fmt.Errorf("invalid price %v for %s", p, coinID)
		}
		usd = p
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), MAX_RETRIES), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return 0, err
	}
	return usd, nil
}

func (s *Service) store(ctx context.Context, symbol string, usd float64) {
	s.mu.Lock()
	s.cache[symbol] = cachedPrice{usd: usd, fetched: time.Now()}
	s.mu.Unlock()

	if s.redis != nil {
		if err := s.redis.Set(ctx, REDIS_KEY_PRICE+symbol, usd, CACHE_TTL).Err(); err != nil {
			log.Printf("[PRICE] Redis cache write failed: %v", err)
		}
	}
}

func (s *Service) redisGet(ctx context.Context, symbol string) (float64, bool) {
	if s.redis == nil {
		return 0, false
	}
	usd, err := s.redis.Get(ctx, REDIS_KEY_PRICE+symbol).Float64()
	if err != nil || usd <= 0 {
		return 0, false
	}
	log.Printf("[PRICE] Using Redis cached %s price: %.2f", symbol, usd)
	return usd, true
}
