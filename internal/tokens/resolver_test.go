package tokens

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/dmelnik/solscope/internal/models"
)

func TestResolveNative(t *testing.T) {
	r := NewResolver(nil)
	md := r.Resolve(context.Background(), models.NativeAssetID)
	if md.Symbol != "SOL" || md.Decimals != 9 {
		t.Fatalf("unexpected native metadata: %+v", md)
	}
}

func TestResolveFetchesAndRemembers(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"address":"Mint1","symbol":"BONK","name":"Bonk","decimals":5}`))
	}))
	defer srv.Close()

	r := NewResolver(nil)
	r.baseURL = srv.URL

	md := r.Resolve(context.Background(), "Mint1")
	if md.Symbol != "BONK" || md.Decimals != 5 {
		t.Fatalf("unexpected metadata: %+v", md)
	}

	// Second resolve must come from memory.
	r.Resolve(context.Background(), "Mint1")
	if hits.Load() != 1 {
		t.Fatalf("expected 1 registry hit, got %d", hits.Load())
	}
}

func TestResolveDegradesToPlaceholder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := NewResolver(nil)
	r.baseURL = srv.URL

	md := r.Resolve(context.Background(), "UnknownMint1111111111111111111111111111111")
	if md.Symbol == "" {
		t.Fatal("placeholder symbol must not be empty")
	}
	if md.Mint != "UnknownMint1111111111111111111111111111111" {
		t.Fatalf("mint must be preserved: %s", md.Mint)
	}
}
