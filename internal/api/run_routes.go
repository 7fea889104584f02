package api

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		fmt.Printf("Error fetching run %s: %v\n", id, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch run")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	ledger, err := s.runs.GetLedger(r.Context(), id)
	if err != nil {
		fmt.Printf("Error fetching ledger for run %s: %v\n", id, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch run ledger")
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{Run: run, Ledger: ledger})
}
