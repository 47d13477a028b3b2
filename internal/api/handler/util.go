package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/settleops/recon-engine/internal/api/problem"
	"github.com/settleops/recon-engine/internal/domain"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// RespondServiceError maps domain errors onto the HTTP contract.
func RespondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var precondition *domain.PreconditionError
	var runState *domain.RunStateError
	switch {
	case errors.As(err, &runState):
		RespondError(w, r, http.StatusConflict, "run/state", err.Error())
	case errors.Is(err, domain.ErrRunNotFound):
		RespondError(w, r, http.StatusNotFound, "run/not-found", err.Error())
	case errors.Is(err, domain.ErrRunConflict):
		RespondError(w, r, http.StatusConflict, "run/conflict", err.Error())
	case errors.Is(err, domain.ErrRunAborted):
		RespondError(w, r, http.StatusConflict, "run/aborted", err.Error())
	case errors.Is(err, domain.ErrSameSource), errors.Is(err, domain.ErrNoRecords):
		RespondError(w, r, http.StatusBadRequest, "run/bad-request", err.Error())
	case errors.Is(err, domain.ErrDataIntegrity):
		RespondError(w, r, http.StatusUnprocessableEntity, "run/data-integrity", err.Error())
	case errors.As(err, &precondition):
		RespondError(w, r, http.StatusUnprocessableEntity, "rollback/precondition", err.Error())
	default:
		RespondError(w, r, http.StatusInternalServerError, "internal", err.Error())
	}
}
