package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestSOLPriceParsesAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"solana":{"usd":142.35}}`))
	}))
	defer srv.Close()

	c := NewPriceClient()
	c.url = srv.URL

	price, err := c.SOLPrice(context.Background())
	if err != nil {
		t.Fatalf("SOLPrice: %v", err)
	}
	if price != 142.35 {
		t.Fatalf("expected 142.35, got %f", price)
	}

	// Second call within TTL must hit the cache.
	if _, err := c.SOLPrice(context.Background()); err != nil {
		t.Fatalf("cached SOLPrice: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected 1 upstream hit, got %d", hits.Load())
	}
}

func TestSOLPriceRejectsNonPositive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"solana":{"usd":0}}`))
	}))
	defer srv.Close()

	c := NewPriceClient()
	c.url = srv.URL

	if _, err := c.SOLPrice(context.Background()); err == nil {
		t.Fatal("expected error for zero price")
	}
}
