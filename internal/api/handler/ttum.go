package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/settleops/recon-engine/internal/service"
)

// TTUMHandler exposes instruction-batch generation and lifecycle.
type TTUMHandler struct {
	svc *service.TTUMService
}

func NewTTUMHandler(svc *service.TTUMService) *TTUMHandler {
	return &TTUMHandler{svc: svc}
}

// Generate builds instruction batches from the committed classification.
// Missing GL mappings fail only their batch and are reported alongside the
// batches that succeeded.
func (h *TTUMHandler) Generate(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	var req struct {
		Cycle string `json:"cycle,omitempty"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondError(w, r, http.StatusBadRequest, "ttum/bad-request", "invalid request body")
			return
		}
	}

	res, err := h.svc.Generate(r.Context(), runID, req.Cycle)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if len(res.Failures) > 0 {
		status = http.StatusMultiStatus
	}
	RespondJSON(w, status, res)
}

// List serves the run's persisted batches.
func (h *TTUMHandler) List(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	batches, err := h.svc.List(r.Context(), runID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  runID,
		"batches": batches,
	})
}

// Settle records downstream settlement confirmation for pending batches.
func (h *TTUMHandler) Settle(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	settled, err := h.svc.MarkSettled(r.Context(), runID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  runID,
		"settled": settled,
	})
}
