package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dmelnik/solscope/internal/cache"
	"github.com/dmelnik/solscope/internal/httputil"
	"github.com/dmelnik/solscope/internal/models"
)

const (
	defaultRegistryURL = "https://tokens.jup.ag/token"
	cacheTTL           = 24 * time.Hour
)

// Metadata is what the registry knows about a mint.
type Metadata struct {
	Mint     string `json:"mint"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
}

// Resolver maps mint addresses to token metadata via a public registry,
// with a redis layer and an in-process map in front of it. Resolution is
// decoration only: an unknown mint falls back to a shortened address and
// never fails an analysis.
type Resolver struct {
	baseURL    string
	httpClient *http.Client
	retry      httputil.RetryConfig
	cache      *cache.Cache

	mu    sync.RWMutex
	local map[string]Metadata
}

func NewResolver(redisCache *cache.Cache) *Resolver {
	return &Resolver{
		baseURL:    defaultRegistryURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 2,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
		},
		cache: redisCache,
		local: make(map[string]Metadata),
	}
}

// Resolve returns metadata for a mint, hitting memory, then redis, then the
// registry. Failures degrade to a placeholder entry.
func (r *Resolver) Resolve(ctx context.Context, mint string) Metadata {
	if mint == models.NativeAssetID {
		return Metadata{Mint: mint, Symbol: "SOL", Name: "Solana", Decimals: 9}
	}

	r.mu.RLock()
	md, ok := r.local[mint]
	r.mu.RUnlock()
	if ok {
		return md
	}

	key := "token:" + mint
	if found, err := r.cache.Get(ctx, key, &md); err == nil && found {
		r.remember(mint, md)
		return md
	}

	md, err := r.fetch(ctx, mint)
	if err != nil {
		fmt.Printf("[TOKENS] Lookup failed for %s: %v\n", mint, err)
		md = placeholder(mint)
	}

	r.remember(mint, md)
	if err := r.cache.Set(ctx, key, md, cacheTTL); err != nil {
		fmt.Printf("[TOKENS] Cache write failed for %s: %v\n", mint, err)
	}
	return md
}

// Symbol is a convenience for API decoration.
func (r *Resolver) Symbol(ctx context.Context, mint string) string {
	return r.Resolve(ctx, mint).Symbol
}

func (r *Resolver) fetch(ctx context.Context, mint string) (Metadata, error) {
	url := fmt.Sprintf("%s/%s", r.baseURL, mint)

	resp, err := httputil.Do(ctx, r.httpClient, r.retry, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return Metadata{}, fmt.Errorf("registry fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Metadata{}, fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	var data struct {
		Address  string `json:"address"`
		Symbol   string `json:"symbol"`
		Name     string `json:"name"`
		Decimals uint8  `json:"decimals"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Metadata{}, fmt.Errorf("decode: %w", err)
	}
	if data.Symbol == "" {
		return Metadata{}, fmt.Errorf("registry has no symbol for %s", mint)
	}

	return Metadata{Mint: mint, Symbol: data.Symbol, Name: data.Name, Decimals: data.Decimals}, nil
}

func (r *Resolver) remember(mint string, md Metadata) {
	r.mu.Lock()
	r.local[mint] = md
	r.mu.Unlock()
}

func placeholder(mint string) Metadata {
	short := mint
	if len(short) > 8 {
		short = short[:4] + ".." + short[len(short)-2:]
	}
	return Metadata{Mint: mint, Symbol: short}
}
