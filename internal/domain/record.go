package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionRecord is one observation of a transaction from exactly one
// source system. Immutable once ingested.
type TransactionRecord struct {
	RRN          string    `json:"rrn"`
	Source       string    `json:"source"`
	AmountPaise  int64     `json:"amount_paise"`
	TxnDate      time.Time `json:"txn_date"`
	DRC          string    `json:"drc"`
	ResponseCode string    `json:"response_code"`
	TxnType      string    `json:"txn_type"`
	Direction    string    `json:"direction"`
	Cycle        string    `json:"cycle"`
	Account      string    `json:"account"`
	SourceFile   string    `json:"source_file"`
}

// SameDay reports whether the record's transaction date falls on the same
// calendar day as other.
func (r TransactionRecord) SameDay(other TransactionRecord) bool {
	y1, m1, d1 := r.TxnDate.Date()
	y2, m2, d2 := other.TxnDate.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// ReconRecord aggregates all observations sharing an RRN within one
// run/cycle/direction. Absence of a per-source record is meaningful.
type ReconRecord struct {
	RRN       string `json:"rrn"`
	Cycle     string `json:"cycle"`
	Direction string `json:"direction"`

	Ledger  *TransactionRecord `json:"ledger,omitempty"`
	Switch  *TransactionRecord `json:"switch,omitempty"`
	Network *TransactionRecord `json:"network,omitempty"`

	// LedgerReversal holds a second ledger observation with equal amount and
	// opposite debit/credit sign. Any other same-source duplicate is a
	// data-quality error, never stored here.
	LedgerReversal *TransactionRecord `json:"ledger_reversal,omitempty"`

	MatchState string `json:"match_state"`
	Exception  string `json:"exception,omitempty"`

	// WithinTolerance marks a relaxed match whose amounts differed inside
	// the configured tolerance.
	WithinTolerance bool `json:"within_tolerance,omitempty"`

	ForcedBy     string `json:"forced_by,omitempty"`
	ForcedSource string `json:"forced_source,omitempty"`
}

// Record returns the observation for source, or nil.
func (r *ReconRecord) Record(source string) *TransactionRecord {
	switch source {
	case SourceLedger:
		return r.Ledger
	case SourceSwitch:
		return r.Switch
	case SourceNetwork:
		return r.Network
	}
	return nil
}

// Present counts how many sources contributed an observation.
func (r *ReconRecord) Present() int {
	n := 0
	for _, rec := range []*TransactionRecord{r.Ledger, r.Switch, r.Network} {
		if rec != nil {
			n++
		}
	}
	return n
}

// Amount returns the record's reference amount. A force-matched record takes
// it from the source the operator designated; otherwise rollups use the
// ledger amount when present, falling back through canonical source order.
func (r *ReconRecord) Amount() int64 {
	if forced := r.Record(r.ForcedSource); forced != nil {
		return forced.AmountPaise
	}
	for _, rec := range []*TransactionRecord{r.Ledger, r.Switch, r.Network} {
		if rec != nil {
			return rec.AmountPaise
		}
	}
	return 0
}

// Run is one execution of the pipeline.
type Run struct {
	ID        string    `json:"run_id"`
	Direction string    `json:"direction"`
	Cycles    []string  `json:"cycles"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// TTUMLine is one settlement instruction referencing exactly one ReconRecord.
type TTUMLine struct {
	RRN           string `json:"rrn"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	AmountPaise   int64  `json:"amount_paise"`
	Narration     string `json:"narration"`
}

// TTUMBatch is a named instruction batch generated from classified exceptions.
type TTUMBatch struct {
	ID          uuid.UUID  `json:"batch_id"`
	RunID       string     `json:"run_id"`
	Cycle       string     `json:"cycle"`
	Type        string     `json:"type"`
	Direction   string     `json:"direction"`
	Status      string     `json:"status"`
	Lines       []TTUMLine `json:"lines"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// Checkpoint is one append-only run-ledger entry. Never mutated after
// creation except the status transition; never deleted.
type Checkpoint struct {
	ID          uuid.UUID `json:"rollback_id"`
	RunID       string    `json:"run_id"`
	Level       string    `json:"level"`
	Cycle       string    `json:"cycle,omitempty"`
	File        string    `json:"file,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	SnapshotRef string    `json:"snapshot_ref,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Bucket is a count/amount rollup used by the summary query.
type Bucket struct {
	Count  int    `json:"count"`
	Amount string `json:"amount"`
}

// Summary is the external summary-query shape.
type Summary struct {
	RunID      string `json:"run_id"`
	Totals     Bucket `json:"totals"`
	Matched    Bucket `json:"matched"`
	Unmatched  Bucket `json:"unmatched"`
	Hanging    Bucket `json:"hanging"`
	Exceptions Bucket `json:"exceptions"`
	Integrity  Bucket `json:"integrity"`
	Status     string `json:"status"`
}
