package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/settleops/recon-engine/internal/domain"
	"github.com/settleops/recon-engine/internal/store"
)

// rrnLength is the fixed length of the business reference number.
const rrnLength = 15

// RecordInput is the normalized record shape the ingestion adapter submits.
// Amounts arrive as decimal strings; dates as RFC 3339 or plain dates.
type RecordInput struct {
	RRN          string `json:"rrn"`
	Source       string `json:"source"`
	Amount       string `json:"amount"`
	TxnDate      string `json:"txn_date"`
	DRC          string `json:"drc"`
	ResponseCode string `json:"response_code"`
	TxnType      string `json:"txn_type"`
	Cycle        string `json:"cycle"`
	Account      string `json:"account"`
	SourceFile   string `json:"source_file"`
}

// IngestService is the canonical-record intake boundary. Unknown shapes are
// rejected here rather than propagated into the matching engine.
type IngestService struct {
	store store.RunStore
}

// NewIngestService creates the ingestion boundary service.
func NewIngestService(st store.RunStore) *IngestService {
	return &IngestService{store: st}
}

// AddRecords validates and appends a batch of records to a run's canonical
// store. Malformed records are accumulated as data-quality findings and the
// valid remainder is ingested (partial success).
func (s *IngestService) AddRecords(ctx context.Context, runID, direction string, inputs []RecordInput) (int, []domain.DataQualityError, error) {
	if !domain.ValidDirection(direction) {
		return 0, nil, fmt.Errorf("invalid direction %q", direction)
	}
	if _, err := s.store.EnsureRun(ctx, runID, direction, nil); err != nil {
		return 0, nil, err
	}

	var accepted []domain.TransactionRecord
	var rejected []domain.DataQualityError
	for _, in := range inputs {
		rec, err := normalize(in, direction)
		if err != nil {
			rejected = append(rejected, domain.DataQualityError{RRN: in.RRN, Source: in.Source, Reason: err.Error()})
			continue
		}
		accepted = append(accepted, rec)
	}

	if len(accepted) > 0 {
		if err := s.store.AddRecords(ctx, runID, accepted); err != nil {
			return 0, rejected, err
		}
	}
	zap.L().Info("records ingested",
		zap.String("run_id", runID),
		zap.Int("accepted", len(accepted)),
		zap.Int("rejected", len(rejected)),
	)
	return len(accepted), rejected, nil
}

func normalize(in RecordInput, direction string) (domain.TransactionRecord, error) {
	var rec domain.TransactionRecord

	if len(in.RRN) != rrnLength || !allDigits(in.RRN) {
		return rec, fmt.Errorf("rrn must be a %d-digit numeric string", rrnLength)
	}
	if !domain.ValidSource(in.Source) {
		return rec, fmt.Errorf("unknown source system %q", in.Source)
	}
	if in.Cycle == "" {
		return rec, fmt.Errorf("cycle is required")
	}
	if in.DRC != domain.DRCDebit && in.DRC != domain.DRCCredit {
		return rec, fmt.Errorf("drc must be %s or %s", domain.DRCDebit, domain.DRCCredit)
	}

	paise, err := domain.ParsePaise(in.Amount)
	if err != nil {
		return rec, err
	}
	txnDate, err := parseDate(in.TxnDate)
	if err != nil {
		return rec, err
	}

	txnType := in.TxnType
	if txnType == "" {
		txnType = domain.TxnTypePayment
	}

	return domain.TransactionRecord{
		RRN:          in.RRN,
		Source:       in.Source,
		AmountPaise:  paise,
		TxnDate:      txnDate,
		DRC:          in.DRC,
		ResponseCode: in.ResponseCode,
		TxnType:      txnType,
		Direction:    direction,
		Cycle:        in.Cycle,
		Account:      in.Account,
		SourceFile:   in.SourceFile,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("malformed txn_date %q", s)
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
