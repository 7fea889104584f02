package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmelnik/solscope/internal/analyzer"
	"github.com/dmelnik/solscope/internal/api"
	"github.com/dmelnik/solscope/internal/cache"
	"github.com/dmelnik/solscope/internal/config"
	"github.com/dmelnik/solscope/internal/db"
	"github.com/dmelnik/solscope/internal/external"
	"github.com/dmelnik/solscope/internal/models"
	"github.com/dmelnik/solscope/internal/notifications"
	"github.com/dmelnik/solscope/internal/repository"
	"github.com/dmelnik/solscope/internal/scheduler"
	"github.com/dmelnik/solscope/internal/solana"
	"github.com/dmelnik/solscope/internal/tokens"
)

const banner = `
╔══════════════════════════════════════╗
║     SOLSCOPE Wallet Analyzer v0.3    ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg.Print()

	// Database
	fmt.Printf("\n[DB] Connecting to %s:%d/%s ...\n", cfg.DBHost, cfg.DBPort, cfg.DBName)
	pool, err := db.Connect(cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "[DB] Connection failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		pool.Close()
		fmt.Println("[DB] Connection pool closed")
	}()

	if err := db.TestConnection(pool); err != nil {
		fmt.Fprintf(os.Stderr, "[DB] Test query failed: %v\n", err)
		os.Exit(1)
	}
	if err := db.EnsureSchema(context.Background(), pool); err != nil {
		fmt.Fprintf(os.Stderr, "[DB] Schema migration failed: %v\n", err)
		os.Exit(1)
	}

	// Redis (optional)
	var redisCache *cache.Cache
	if cfg.RedisAddr != "" {
		redisCache, err = cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[CACHE] Redis unavailable, continuing without: %v\n", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			fmt.Printf("[CACHE] Connected to redis at %s\n", cfg.RedisAddr)
		}
	}

	// Repos
	runRepo := repository.NewRunRepo(pool)
	walletRepo := repository.NewWalletRepo(pool)

	// RPC client, token metadata, price feed
	rpc := solana.NewClient(cfg.RPCEndpoint, solana.ClientOptions{
		RateLimitRPS: cfg.RPCRateLimitRPS,
		PageSize:     cfg.SignaturePageSize,
	})
	resolver := tokens.NewResolver(redisCache)
	prices := external.NewPriceClient()

	// Notifications
	notify := notifications.NewSender(cfg.WebhookURL, cfg.BotName)

	// Analyzer service ties the pipeline together
	svc := analyzer.NewService(cfg, rpc, runRepo, walletRepo, resolver, prices, notify)

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. API server
	srv := api.NewServer(pool, svc, redisCache, cfg.APIPort, cfg.APIKey, cfg.CORSAllowOrigin)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "[API] Server error: %v\n", err)
			os.Exit(1)
		}
	}()

	// 2. Refresh scheduler keeps tracked wallets current
	sched := scheduler.NewRefreshScheduler(svc, walletRepo, scheduler.RefreshSchedulerConfig{
		Interval:   time.Duration(cfg.RefreshIntervalHours) * time.Hour,
		RunOnStart: true,
		OnRunComplete: func(wallet string, run *models.AnalysisRun) {
			fmt.Printf("[SCHEDULER] Refreshed %s (run %s)\n", wallet, run.ID)
		},
	})
	sched.Start()

	fmt.Println("\nAll services started successfully")

	// Wait for shutdown signal
	<-ctx.Done()
	fmt.Println("\nShutting down gracefully...")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "[API] Shutdown error: %v\n", err)
	}
	fmt.Println("[API] Server closed")
	fmt.Println("Shutdown complete")
}
