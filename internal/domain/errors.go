package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRunNotFound   = errors.New("run not found")
	ErrRunConflict   = errors.New("run is locked by another mutating operation")
	ErrRunAborted    = errors.New("run is aborted; mid-recon rollback required")
	ErrDataIntegrity = errors.New("data integrity violation")
	ErrRecordExists  = errors.New("record already ingested")
	ErrNoRecords     = errors.New("no canonical records for run")
	ErrSameSource    = errors.New("force-match sources must differ")
)

// DataQualityError flags one offending reference; the run continues without it.
type DataQualityError struct {
	RRN    string `json:"rrn"`
	Source string `json:"source,omitempty"`
	Reason string `json:"reason"`
}

func (e *DataQualityError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("data quality: rrn %s source %s: %s", e.RRN, e.Source, e.Reason)
	}
	return fmt.Sprintf("data quality: rrn %s: %s", e.RRN, e.Reason)
}

// MappingError reports a missing GL account mapping. Fatal to the affected
// TTUM batch only.
type MappingError struct {
	BatchType string
	Mapping   string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("missing GL account mapping %q for batch %s", e.Mapping, e.BatchType)
}

// RunStateError reports an operation attempted while the run's lifecycle
// status does not permit it.
type RunStateError struct {
	RunID  string
	Status string
	Op     string
}

func (e *RunStateError) Error() string {
	return fmt.Sprintf("run %s is %s; %s", e.RunID, e.Status, e.Op)
}

// PreconditionError reports the specific rollback precondition that was
// violated. State is left unchanged when it is returned.
type PreconditionError struct {
	Level  string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s rollback precondition violated: %s", e.Level, e.Reason)
}
