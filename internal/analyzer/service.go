package analyzer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmelnik/solscope/internal/config"
	"github.com/dmelnik/solscope/internal/engine"
	"github.com/dmelnik/solscope/internal/external"
	"github.com/dmelnik/solscope/internal/labels"
	"github.com/dmelnik/solscope/internal/models"
	"github.com/dmelnik/solscope/internal/notifications"
	"github.com/dmelnik/solscope/internal/repository"
	"github.com/dmelnik/solscope/internal/solana"
	"github.com/dmelnik/solscope/internal/tokens"
)

// ErrAlreadyRunning is returned when an analysis for the same wallet is
// still in flight. Callers should retry after the current run finishes.
var ErrAlreadyRunning = fmt.Errorf("analysis already running for this wallet")

// Service orchestrates one full analysis: fetch history from the node, run
// the engine, enrich with token metadata and a price quote, persist the run.
type Service struct {
	cfg     *config.Config
	rpc     *solana.Client
	runs    *repository.RunRepo
	wallets *repository.WalletRepo
	tokens  *tokens.Resolver
	prices  *external.PriceClient
	notify  *notifications.Sender

	mu       sync.Mutex
	inflight map[string]bool
}

func NewService(cfg *config.Config, rpc *solana.Client,
	runs *repository.RunRepo, wallets *repository.WalletRepo,
	resolver *tokens.Resolver, prices *external.PriceClient,
	notify *notifications.Sender,
) *Service {
	return &Service{
		cfg:      cfg,
		rpc:      rpc,
		runs:     runs,
		wallets:  wallets,
		tokens:   resolver,
		prices:   prices,
		notify:   notify,
		inflight: make(map[string]bool),
	}
}

// Analyze runs the full pipeline for one wallet and returns the persisted
// run header with its ledger. At most one analysis per wallet runs at a time.
func (s *Service) Analyze(ctx context.Context, wallet string) (*models.AnalysisRun, *models.Ledger, error) {
	if !s.acquire(wallet) {
		return nil, nil, ErrAlreadyRunning
	}
	defer s.release(wallet)

	started := time.Now().UTC()
	fmt.Printf("[ANALYZER] Starting analysis for %s\n", wallet)

	sigs, err := s.rpc.GetSignatures(ctx, wallet, s.cfg.MaxTransactions)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch signatures: %w", err)
	}
	txs, err := s.rpc.GetTransactions(ctx, sigs)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch transactions: %w", err)
	}

	eng, err := engine.New(engine.Options{
		Wallet:          wallet,
		MinEventValue:   s.cfg.MinEventValueSOL,
		StitchWindow:    time.Duration(s.cfg.StitchWindowSeconds) * time.Second,
		Labels:          labels.NewRegistry(s.cfg.KnownAddresses),
		CostBasisMethod: s.cfg.CostBasisMethod,
	})
	if err != nil {
		return nil, nil, err
	}

	result := eng.Analyze(txs)
	ledger := result.Ledger

	if problems := engine.VerifyLedger(&ledger); len(problems) > 0 {
		for _, p := range problems {
			fmt.Printf("[ANALYZER] Ledger inconsistency: %s\n", p)
		}
	}

	s.enrichSymbols(ctx, &ledger)

	run := &models.AnalysisRun{
		Wallet:         wallet,
		StartedAt:      started,
		FinishedAt:     time.Now().UTC(),
		TxCount:        result.TxCount,
		EventCount:     len(result.Events),
		MinEventValue:  s.cfg.MinEventValueSOL,
		StitchWindowS:  s.cfg.StitchWindowSeconds,
		TotalDeposited: ledger.TotalDeposited,
		TotalWithdrawn: ledger.TotalWithdrawn,
		TotalRewards:   ledger.TotalRewards,
		RealizedPnl:    ledger.RealizedPnl,
	}
	if price, err := s.prices.SOLPrice(ctx); err == nil {
		run.SolPriceUSD = &price
	} else {
		fmt.Printf("[ANALYZER] SOL price unavailable: %v\n", err)
	}

	id, err := s.runs.SaveRun(ctx, run, &ledger)
	if err != nil {
		return nil, nil, fmt.Errorf("persist run: %w", err)
	}
	run.ID = id

	if tracked, err := s.wallets.Get(ctx, wallet); err == nil && tracked != nil {
		if err := s.wallets.MarkRun(ctx, wallet, id); err != nil {
			fmt.Printf("[ANALYZER] Failed to mark run: %v\n", err)
		}
	}

	fmt.Printf("[ANALYZER] Done: %d txs -> %d events, %d positions, pnl %.4f SOL\n",
		run.TxCount, run.EventCount, len(ledger.Positions), ledger.RealizedPnl)
	s.notify.Send(fmt.Sprintf("Analyzed %s: %d positions, realized pnl %.4f SOL",
		wallet, len(ledger.Positions), ledger.RealizedPnl))

	return run, &ledger, nil
}

// LatestLedger returns the most recent stored run and ledger for a wallet,
// both nil when the wallet was never analyzed.
func (s *Service) LatestLedger(ctx context.Context, wallet string) (*models.AnalysisRun, *models.Ledger, error) {
	run, err := s.runs.LatestRun(ctx, wallet)
	if err != nil || run == nil {
		return nil, nil, err
	}
	ledger, err := s.runs.GetLedger(ctx, run.ID)
	if err != nil {
		return nil, nil, err
	}
	return run, ledger, nil
}

func (s *Service) enrichSymbols(ctx context.Context, ledger *models.Ledger) {
	for i := range ledger.Positions {
		meta := s.tokens.Resolve(ctx, ledger.Positions[i].AssetID)
		ledger.Positions[i].Symbol = meta.Symbol
	}
}

func (s *Service) acquire(wallet string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[wallet] {
		return false
	}
	s.inflight[wallet] = true
	return true
}

func (s *Service) release(wallet string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, wallet)
}
