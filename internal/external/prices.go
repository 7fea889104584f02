package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dmelnik/solscope/internal/httputil"
)

const coingeckoURL = "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd"

// PriceClient fetches the SOL/USD spot price. The price is only used to
// decorate persisted runs with a valuation snapshot; a stale or missing
// price never blocks an analysis, so results are cached aggressively.
type PriceClient struct {
	url        string
	httpClient *http.Client
	retry      httputil.RetryConfig

	mu        sync.Mutex
	cached    float64
	lastFetch time.Time
	cacheTTL  time.Duration
}

func NewPriceClient() *PriceClient {
	return &PriceClient{
		url:        coingeckoURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    10 * time.Second,
		},
		cacheTTL: 5 * time.Minute,
	}
}

func (c *PriceClient) SOLPrice(ctx context.Context) (float64, error) {
	c.mu.Lock()
	if c.cached > 0 && time.Since(c.lastFetch) < c.cacheTTL {
		price := c.cached
		c.mu.Unlock()
		return price, nil
	}
	c.mu.Unlock()

	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	})
	if err != nil {
		return 0, fmt.Errorf("coingecko fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("coingecko returned status %d", resp.StatusCode)
	}

	var data struct {
		Solana struct {
			USD float64 `json:"usd"`
		} `json:"solana"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, fmt.Errorf("decode: %w", err)
	}
	if data.Solana.USD <= 0 {
		return 0, fmt.Errorf("invalid price: %f", data.Solana.USD)
	}

	c.mu.Lock()
	c.cached = data.Solana.USD
	c.lastFetch = time.Now()
	c.mu.Unlock()

	return data.Solana.USD, nil
}
