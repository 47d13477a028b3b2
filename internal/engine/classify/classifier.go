// Package classify maps non-matched reconciliation records into the closed
// exception taxonomy using a fixed-priority rule list over an explicit
// decision matrix.
package classify

import (
	"fmt"
	"time"

	"github.com/settleops/recon-engine/internal/domain"
)

// Classifier assigns exception types. Deterministic given the same inputs
// and clock.
type Classifier struct {
	cutoff time.Duration
	now    func() time.Time
}

// New creates a classifier. cutoff is the hanging window measured from the
// transaction date; now is injectable for tests and defaults to time.Now.
func New(cutoff time.Duration, now func() time.Time) *Classifier {
	if now == nil {
		now = time.Now
	}
	return &Classifier{cutoff: cutoff, now: now}
}

// Classify resolves the exception type for one non-matched record. The
// checks run in fixed priority order; the first satisfied rule wins.
func (c *Classifier) Classify(rec *domain.ReconRecord) (string, error) {
	// Matched records never reach the classifier; observing one is a
	// data-integrity error, not a classification.
	if rec.MatchState == domain.MatchStateMatched || rec.MatchState == domain.MatchStateForceMatched {
		return "", fmt.Errorf("rrn %s: matched record submitted for classification: %w", rec.RRN, domain.ErrDataIntegrity)
	}

	// 1. Cut-off window: still awaiting a terminal network response.
	if c.withinCutoff(rec) && !hasTerminalNetworkResponse(rec) {
		return domain.ExceptionHanging, nil
	}

	// 2. Automatic ledger self-reversal.
	if rec.LedgerReversal != nil && rec.LedgerReversal.TxnType == domain.TxnTypeReversal {
		return domain.ExceptionSelfMatchedReversed, nil
	}

	// 3. Declared settlement-file line item, not a customer transaction.
	if isSettlementEntry(rec) {
		return domain.ExceptionSettlementEntry, nil
	}

	// 4. Double posting: a second ledger entry with opposite sign and equal
	// amount that is not a tagged reversal.
	if rec.LedgerReversal != nil {
		return domain.ExceptionDoubleDebitCredit, nil
	}

	// 5. Deemed accepted pending confirmation.
	if rec.Network != nil && rec.Network.ResponseCode == domain.ResponseDeemedAccepted {
		return domain.ExceptionDeemedAccepted, nil
	}

	// 6. Terminal network decline.
	if rec.Network != nil && domain.IsNetworkDeclined(rec.Network.ResponseCode) {
		return domain.ExceptionNetworkDeclined, nil
	}

	// 7. Auto-credit/reversal failed at the ledger after a successful leg.
	if isFailedAutocredit(rec) {
		return domain.ExceptionFailedAutocreditRev, nil
	}

	// 8. Fallback decision matrix.
	return lookup(rec)
}

func (c *Classifier) withinCutoff(rec *domain.ReconRecord) bool {
	if c.cutoff <= 0 {
		return false
	}
	var txnDate time.Time
	for _, r := range []*domain.TransactionRecord{rec.Ledger, rec.Switch, rec.Network} {
		if r != nil {
			txnDate = r.TxnDate
			break
		}
	}
	if txnDate.IsZero() {
		return false
	}
	return c.now().Sub(txnDate) < c.cutoff
}

func hasTerminalNetworkResponse(rec *domain.ReconRecord) bool {
	return rec.Network != nil && domain.IsTerminalResponse(rec.Network.ResponseCode)
}

func isSettlementEntry(rec *domain.ReconRecord) bool {
	for _, r := range []*domain.TransactionRecord{rec.Ledger, rec.Switch, rec.Network} {
		if r != nil && r.TxnType == domain.TxnTypeSettlement {
			return true
		}
	}
	return false
}

// isFailedAutocredit detects a ledger credit that failed after the switch or
// network leg already succeeded for the same reference.
func isFailedAutocredit(rec *domain.ReconRecord) bool {
	if rec.Ledger == nil || rec.Ledger.DRC != domain.DRCCredit {
		return false
	}
	if domain.SourceOutcome(rec.Ledger) != domain.OutcomeFailed {
		return false
	}
	return domain.SourceOutcome(rec.Switch) == domain.OutcomeSuccess ||
		domain.SourceOutcome(rec.Network) == domain.OutcomeSuccess
}
