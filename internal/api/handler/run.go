package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/settleops/recon-engine/internal/service"
)

// RunHandler exposes run invocation, queries and force-match.
type RunHandler struct {
	coordinator *service.Coordinator
	queries     *service.QueryService
}

func NewRunHandler(coordinator *service.Coordinator, queries *service.QueryService) *RunHandler {
	return &RunHandler{coordinator: coordinator, queries: queries}
}

// Invoke starts matching and classification for a run.
func (h *RunHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunID     string `json:"run_id"`
		Direction string `json:"direction"`
		Cycle     string `json:"cycle,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "run/bad-request", "invalid request body")
		return
	}
	if req.RunID == "" {
		RespondError(w, r, http.StatusBadRequest, "run/bad-request", "run_id is required")
		return
	}

	res, err := h.coordinator.Run(r.Context(), req.RunID, req.Direction, req.Cycle)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, res)
}

// Summary serves the per-run count/amount rollups.
func (h *RunHandler) Summary(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	summary, err := h.queries.Summary(r.Context(), runID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, summary)
}

// Records serves the raw classification snapshot per reference number.
func (h *RunHandler) Records(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	cycle := r.URL.Query().Get("cycle")
	recs, err := h.queries.Records(r.Context(), runID, cycle)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  runID,
		"records": recs,
	})
}

// Cycles lists cycle identifiers present in the run's output.
func (h *RunHandler) Cycles(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	cycles, err := h.queries.Cycles(r.Context(), runID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"cycles": cycles,
	})
}

// Integrity lists the run's per-record data-quality findings.
func (h *RunHandler) Integrity(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	errs, err := h.queries.IntegrityErrors(r.Context(), runID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"errors": errs,
	})
}

// ForceMatch applies the manual FORCE_MATCHED transition.
func (h *RunHandler) ForceMatch(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	var req service.ForceMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "run/bad-request", "invalid request body")
		return
	}
	if req.Reference == "" {
		RespondError(w, r, http.StatusBadRequest, "run/bad-request", "reference is required")
		return
	}

	res, err := h.coordinator.ForceMatch(r.Context(), runID, req)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, res)
}
