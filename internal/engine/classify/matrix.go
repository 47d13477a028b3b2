package classify

import (
	"fmt"

	"github.com/settleops/recon-engine/internal/domain"
)

// triple keys the decision matrix by the (ledger, switch, network) outcomes.
type triple struct {
	Ledger  domain.Outcome
	Switch  domain.Outcome
	Network domain.Outcome
}

// outcomeMatrix is the exhaustive fallback table for every outcome
// combination. The priority checks in Classify run first; the matrix only
// decides between single-source presence (ORPHAN) and multi-source
// disagreement (MISMATCH). The all-absent triple is deliberately missing:
// observing it means the grouping stage produced an empty record.
var outcomeMatrix = map[triple]string{
	// Single source present.
	{domain.OutcomeSuccess, domain.OutcomeAbsent, domain.OutcomeAbsent}: domain.ExceptionOrphan,
	{domain.OutcomeFailed, domain.OutcomeAbsent, domain.OutcomeAbsent}:  domain.ExceptionOrphan,
	{domain.OutcomeAbsent, domain.OutcomeSuccess, domain.OutcomeAbsent}: domain.ExceptionOrphan,
	{domain.OutcomeAbsent, domain.OutcomeFailed, domain.OutcomeAbsent}:  domain.ExceptionOrphan,
	{domain.OutcomeAbsent, domain.OutcomeAbsent, domain.OutcomeSuccess}: domain.ExceptionOrphan,
	{domain.OutcomeAbsent, domain.OutcomeAbsent, domain.OutcomeFailed}:  domain.ExceptionOrphan,

	// Two sources present.
	{domain.OutcomeSuccess, domain.OutcomeSuccess, domain.OutcomeAbsent}: domain.ExceptionMismatch,
	{domain.OutcomeSuccess, domain.OutcomeFailed, domain.OutcomeAbsent}:  domain.ExceptionMismatch,
	{domain.OutcomeFailed, domain.OutcomeSuccess, domain.OutcomeAbsent}:  domain.ExceptionMismatch,
	{domain.OutcomeFailed, domain.OutcomeFailed, domain.OutcomeAbsent}:   domain.ExceptionMismatch,
	{domain.OutcomeSuccess, domain.OutcomeAbsent, domain.OutcomeSuccess}: domain.ExceptionMismatch,
	{domain.OutcomeSuccess, domain.OutcomeAbsent, domain.OutcomeFailed}:  domain.ExceptionMismatch,
	{domain.OutcomeFailed, domain.OutcomeAbsent, domain.OutcomeSuccess}:  domain.ExceptionMismatch,
	{domain.OutcomeFailed, domain.OutcomeAbsent, domain.OutcomeFailed}:   domain.ExceptionMismatch,
	{domain.OutcomeAbsent, domain.OutcomeSuccess, domain.OutcomeSuccess}: domain.ExceptionMismatch,
	{domain.OutcomeAbsent, domain.OutcomeSuccess, domain.OutcomeFailed}:  domain.ExceptionMismatch,
	{domain.OutcomeAbsent, domain.OutcomeFailed, domain.OutcomeSuccess}:  domain.ExceptionMismatch,
	{domain.OutcomeAbsent, domain.OutcomeFailed, domain.OutcomeFailed}:   domain.ExceptionMismatch,

	// All three present. A success-success-success triple reaching the
	// matrix means the sources returned 00 but disagreed on amount or date.
	{domain.OutcomeSuccess, domain.OutcomeSuccess, domain.OutcomeSuccess}: domain.ExceptionMismatch,
	{domain.OutcomeSuccess, domain.OutcomeSuccess, domain.OutcomeFailed}:  domain.ExceptionMismatch,
	{domain.OutcomeSuccess, domain.OutcomeFailed, domain.OutcomeSuccess}:  domain.ExceptionMismatch,
	{domain.OutcomeSuccess, domain.OutcomeFailed, domain.OutcomeFailed}:   domain.ExceptionMismatch,
	{domain.OutcomeFailed, domain.OutcomeSuccess, domain.OutcomeSuccess}:  domain.ExceptionMismatch,
	{domain.OutcomeFailed, domain.OutcomeSuccess, domain.OutcomeFailed}:   domain.ExceptionMismatch,
	{domain.OutcomeFailed, domain.OutcomeFailed, domain.OutcomeSuccess}:   domain.ExceptionMismatch,
	{domain.OutcomeFailed, domain.OutcomeFailed, domain.OutcomeFailed}:    domain.ExceptionMismatch,
}

// lookup resolves the fallback exception for the record's outcome triple.
func lookup(rec *domain.ReconRecord) (string, error) {
	key := triple{
		Ledger:  domain.SourceOutcome(rec.Ledger),
		Switch:  domain.SourceOutcome(rec.Switch),
		Network: domain.SourceOutcome(rec.Network),
	}
	exc, ok := outcomeMatrix[key]
	if !ok {
		return "", fmt.Errorf("rrn %s: outcome triple (%s,%s,%s) has no matrix entry: %w",
			rec.RRN, key.Ledger, key.Switch, key.Network, domain.ErrDataIntegrity)
	}
	return exc, nil
}
