package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/settleops/recon-engine/internal/domain"
	"github.com/settleops/recon-engine/internal/engine/rollback"
)

// RollbackHandler exposes one endpoint per undo level plus the ledger query.
type RollbackHandler struct {
	manager *rollback.Manager
}

func NewRollbackHandler(manager *rollback.Manager) *RollbackHandler {
	return &RollbackHandler{manager: manager}
}

// Ingestion removes one file's contribution from the run.
func (h *RollbackHandler) Ingestion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "rollback/bad-request", "invalid request body")
		return
	}
	h.perform(w, r, rollback.Request{
		RunID: chi.URLParam(r, "runID"),
		Level: domain.RollbackIngestion,
		File:  req.Filename,
	})
}

// MidRecon discards in-flight reconciliation state.
func (h *RollbackHandler) MidRecon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "rollback/bad-request", "invalid request body")
		return
	}
	h.perform(w, r, rollback.Request{
		RunID:  chi.URLParam(r, "runID"),
		Level:  domain.RollbackMidRecon,
		Reason: req.Reason,
	})
}

// Cycle restores one named cycle to UNMATCHED.
func (h *RollbackHandler) Cycle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CycleID string `json:"cycle_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "rollback/bad-request", "invalid request body")
		return
	}
	h.perform(w, r, rollback.Request{
		RunID: chi.URLParam(r, "runID"),
		Level: domain.RollbackCycleWise,
		Cycle: req.CycleID,
	})
}

// Accounting reverts settled instruction batches to pending.
func (h *RollbackHandler) Accounting(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "rollback/bad-request", "invalid request body")
		return
	}
	h.perform(w, r, rollback.Request{
		RunID:  chi.URLParam(r, "runID"),
		Level:  domain.RollbackAccounting,
		Reason: req.Reason,
	})
}

// History lists the recorded checkpoint ledger.
func (h *RollbackHandler) History(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	checkpoints, err := h.manager.History(r.Context(), runID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":    runID,
		"rollbacks": checkpoints,
	})
}

func (h *RollbackHandler) perform(w http.ResponseWriter, r *http.Request, req rollback.Request) {
	res, err := h.manager.Rollback(r.Context(), req)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "success",
		"rollback_id": res.RollbackID,
		"result":      res.Detail,
	})
}
