package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmelnik/solscope/internal/analyzer"
	"github.com/dmelnik/solscope/internal/models"
)

type analyzeResponse struct {
	Run    *models.AnalysisRun `json:"run"`
	Ledger *models.Ledger      `json:"ledger"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if !validateAddress(address) {
		writeError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}

	run, ledger, err := s.analyzer.Analyze(r.Context(), address)
	if err != nil {
		if errors.Is(err, analyzer.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "analysis already running for this wallet")
			return
		}
		fmt.Printf("Error analyzing %s: %v\n", address, err)
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{Run: run, Ledger: ledger})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if !validateAddress(address) {
		writeError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}

	run, ledger, err := s.analyzer.LatestLedger(r.Context(), address)
	if err != nil {
		fmt.Printf("Error fetching ledger for %s: %v\n", address, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch ledger")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "wallet has not been analyzed yet")
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{Run: run, Ledger: ledger})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if !validateAddress(address) {
		writeError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}

	_, ledger, err := s.analyzer.LatestLedger(r.Context(), address)
	if err != nil {
		fmt.Printf("Error fetching positions for %s: %v\n", address, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch positions")
		return
	}
	if ledger == nil {
		writeError(w, http.StatusNotFound, "wallet has not been analyzed yet")
		return
	}

	positions := ledger.Positions
	if r.URL.Query().Get("open") == "true" {
		open := positions[:0:0]
		for _, p := range positions {
			if !p.IsFullyClosed {
				open = append(open, p)
			}
		}
		positions = open
	}
	if limit := parseLimit(r, maxQueryLimit); len(positions) > limit {
		positions = positions[:limit]
	}

	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if !validateAddress(address) {
		writeError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}

	_, ledger, err := s.analyzer.LatestLedger(r.Context(), address)
	if err != nil {
		fmt.Printf("Error fetching transfers for %s: %v\n", address, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch transfers")
		return
	}
	if ledger == nil {
		writeError(w, http.StatusNotFound, "wallet has not been analyzed yet")
		return
	}

	transfers := ledger.Transfers
	if limit := parseLimit(r, 100); len(transfers) > limit {
		transfers = transfers[:limit]
	}

	writeJSON(w, http.StatusOK, transfers)
}

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := s.wallets.List(r.Context())
	if err != nil {
		fmt.Printf("Error listing wallets: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to list wallets")
		return
	}
	writeJSON(w, http.StatusOK, wallets)
}

func (s *Server) handleTrackWallet(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if !validateAddress(address) {
		writeError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}

	var body struct {
		Label *string `json:"label"`
	}
	if r.Body != nil {
		// empty body is fine, label is optional
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	if err := s.wallets.Track(r.Context(), address, body.Label); err != nil {
		fmt.Printf("Error tracking %s: %v\n", address, err)
		writeError(w, http.StatusInternalServerError, "failed to track wallet")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"address": address, "status": "tracked"})
}

func (s *Server) handleUntrackWallet(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if !validateAddress(address) {
		writeError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}

	if err := s.wallets.Untrack(r.Context(), address); err != nil {
		fmt.Printf("Error untracking %s: %v\n", address, err)
		writeError(w, http.StatusInternalServerError, "failed to untrack wallet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": address, "status": "untracked"})
}
