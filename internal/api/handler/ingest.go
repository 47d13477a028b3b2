package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/settleops/recon-engine/internal/service"
)

// IngestHandler is the boundary the external ingestion adapter calls with
// normalized transaction batches.
type IngestHandler struct {
	svc *service.IngestService
}

func NewIngestHandler(svc *service.IngestService) *IngestHandler {
	return &IngestHandler{svc: svc}
}

// PostRecords appends a validated record batch to the run's canonical store.
// Malformed records are reported per record; the valid remainder is ingested.
func (h *IngestHandler) PostRecords(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	var req struct {
		Direction string                `json:"direction"`
		Records   []service.RecordInput `json:"records"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "ingest/bad-request", "invalid request body")
		return
	}
	if len(req.Records) == 0 {
		RespondError(w, r, http.StatusBadRequest, "ingest/bad-request", "records is required")
		return
	}

	accepted, rejected, err := h.svc.AddRecords(r.Context(), runID, req.Direction, req.Records)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	status := http.StatusCreated
	if len(rejected) > 0 {
		status = http.StatusMultiStatus
	}
	RespondJSON(w, status, map[string]interface{}{
		"run_id":   runID,
		"accepted": accepted,
		"rejected": rejected,
	})
}
