package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmelnik/solscope/internal/analyzer"
	"github.com/dmelnik/solscope/internal/models"
)

// WalletAnalyzer runs one analysis for a wallet. Satisfied by
// analyzer.Service.
type WalletAnalyzer interface {
	Analyze(ctx context.Context, wallet string) (*models.AnalysisRun, *models.Ledger, error)
}

// WalletLister returns the wallets to refresh. Satisfied by
// repository.WalletRepo.
type WalletLister interface {
	List(ctx context.Context) ([]models.TrackedWallet, error)
}

type RefreshSchedulerConfig struct {
	Interval      time.Duration // e.g. 6*time.Hour
	RunOnStart    bool
	OnRunComplete func(wallet string, run *models.AnalysisRun)
}

// RefreshScheduler re-analyzes every tracked wallet on a fixed interval so
// stored ledgers stay close to on-chain state.
type RefreshScheduler struct {
	analyzer WalletAnalyzer
	wallets  WalletLister
	cfg      RefreshSchedulerConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

func NewRefreshScheduler(a WalletAnalyzer, w WalletLister, cfg RefreshSchedulerConfig) *RefreshScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	return &RefreshScheduler{
		analyzer: a,
		wallets:  w,
		cfg:      cfg,
	}
}

func (s *RefreshScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		fmt.Println("[SCHEDULER] Already running")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if s.cfg.RunOnStart {
		// Initial sweep on startup (fire-and-forget)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			s.refreshAll(ctx)
		}()
	}

	// Recurring ticker
	go func() {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
				s.refreshAll(ctx)
				cancel()
			}
		}
	}()

	fmt.Printf("[SCHEDULER] Started (refresh every %s)\n", s.cfg.Interval)
}

func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.stopCh)
	s.running = false
	fmt.Println("[SCHEDULER] Stopped")
}

func (s *RefreshScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RefreshNow sweeps all tracked wallets outside the normal schedule.
func (s *RefreshScheduler) RefreshNow(ctx context.Context) {
	fmt.Println("[SCHEDULER] Manual refresh triggered")
	s.refreshAll(ctx)
}

func (s *RefreshScheduler) refreshAll(ctx context.Context) {
	wallets, err := s.wallets.List(ctx)
	if err != nil {
		fmt.Printf("[SCHEDULER] Could not list tracked wallets: %v\n", err)
		return
	}
	if len(wallets) == 0 {
		fmt.Println("[SCHEDULER] No tracked wallets, nothing to refresh")
		return
	}

	fmt.Printf("[SCHEDULER] Refreshing %d tracked wallet(s)...\n", len(wallets))
	ok, failed := 0, 0
	for _, w := range wallets {
		if ctx.Err() != nil {
			fmt.Printf("[SCHEDULER] Sweep aborted: %v\n", ctx.Err())
			return
		}
		run, _, err := s.analyzer.Analyze(ctx, w.Address)
		if err != nil {
			if errors.Is(err, analyzer.ErrAlreadyRunning) {
				fmt.Printf("[SCHEDULER] Skipping %s, analysis in flight\n", w.Address)
				continue
			}
			failed++
			fmt.Printf("[SCHEDULER] Refresh failed for %s: %v\n", w.Address, err)
			continue
		}
		ok++
		if s.cfg.OnRunComplete != nil {
			s.cfg.OnRunComplete(w.Address, run)
		}
	}
	fmt.Printf("[SCHEDULER] Sweep done: %d ok, %d failed\n", ok, failed)
}
