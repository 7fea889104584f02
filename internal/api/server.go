package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmelnik/solscope/internal/analyzer"
	"github.com/dmelnik/solscope/internal/cache"
	"github.com/dmelnik/solscope/internal/repository"
)

const maxQueryLimit = 1000

// Solana addresses are base58, 32 to 44 characters.
var addressRegexp = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

type Server struct {
	pool       *pgxpool.Pool
	runs       *repository.RunRepo
	wallets    *repository.WalletRepo
	analyzer   *analyzer.Service
	cache      *cache.Cache
	httpServer *http.Server
	apiKey     string
}

func NewServer(pool *pgxpool.Pool, svc *analyzer.Service, redisCache *cache.Cache, port int, apiKey, corsOrigin string) *Server {
	s := &Server{
		pool:     pool,
		runs:     repository.NewRunRepo(pool),
		wallets:  repository.NewWalletRepo(pool),
		analyzer: svc,
		cache:    redisCache,
		apiKey:   apiKey,
	}

	mux := http.NewServeMux()

	// Wallet routes
	mux.HandleFunc("POST /v1/wallets/{address}/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /v1/wallets/{address}/ledger", s.handleLedger)
	mux.HandleFunc("GET /v1/wallets/{address}/positions", s.handlePositions)
	mux.HandleFunc("GET /v1/wallets/{address}/transfers", s.handleTransfers)

	// Tracking routes
	mux.HandleFunc("GET /v1/wallets", s.handleListWallets)
	mux.HandleFunc("POST /v1/wallets/{address}/track", s.handleTrackWallet)
	mux.HandleFunc("DELETE /v1/wallets/{address}/track", s.handleUntrackWallet)

	// Run routes
	mux.HandleFunc("GET /v1/runs/{id}", s.handleGetRun)

	// Health check (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)

	handler := s.authMiddleware(corsMiddleware(mux, corsOrigin))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second, // analyze runs inline and can be slow
	}

	return s
}

func (s *Server) Start() error {
	fmt.Printf("[API] REST API server started on http://localhost%s\n", s.httpServer.Addr)
	fmt.Printf("[API] Health check: http://localhost%s/health\n", s.httpServer.Addr)
	if s.apiKey != "" {
		fmt.Println("[API] Authentication: enabled (Bearer token)")
	} else {
		fmt.Println("[API] Authentication: disabled (no API_KEY configured)")
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- validation helpers ---

func validateAddress(addr string) bool {
	return addressRegexp.MatchString(addr)
}

func parseLimit(r *http.Request, defaultLimit int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxQueryLimit {
		return maxQueryLimit
	}
	return n
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
