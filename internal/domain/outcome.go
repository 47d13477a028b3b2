package domain

// Outcome is the per-source result used by the exception decision matrix.
type Outcome int

const (
	OutcomeAbsent Outcome = iota
	OutcomeSuccess
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	default:
		return "absent"
	}
}

// SourceOutcome derives the matrix outcome for one observation. A present
// record with response code 00 is a success; any other code is a failure.
func SourceOutcome(rec *TransactionRecord) Outcome {
	if rec == nil {
		return OutcomeAbsent
	}
	if rec.ResponseCode == ResponseSuccess {
		return OutcomeSuccess
	}
	return OutcomeFailed
}
