package domain

// Source systems of record contributing transaction observations.
const (
	SourceLedger  = "ledger"
	SourceSwitch  = "switch"
	SourceNetwork = "network"
)

// Sources lists the three systems in canonical order.
var Sources = []string{SourceLedger, SourceSwitch, SourceNetwork}

// Transaction flow direction.
const (
	DirectionInward  = "inward"
	DirectionOutward = "outward"
)

// Debit/credit indicator on a source observation.
const (
	DRCDebit  = "D"
	DRCCredit = "C"
)

// Match states assigned by the matching cascade.
const (
	MatchStateUnmatched       = "UNMATCHED"
	MatchStateMatched         = "MATCHED"
	MatchStatePartialMatch    = "PARTIAL_MATCH"
	MatchStateMismatch        = "MISMATCH"
	MatchStatePartialMismatch = "PARTIAL_MISMATCH"
	MatchStateOrphan          = "ORPHAN"
	MatchStateForceMatched    = "FORCE_MATCHED"
)

// Exception taxonomy assigned by the classifier.
const (
	ExceptionHanging             = "HANGING"
	ExceptionSelfMatchedReversed = "SELF_MATCHED_REVERSED"
	ExceptionSettlementEntry     = "SETTLEMENT_ENTRY"
	ExceptionDoubleDebitCredit   = "DOUBLE_DEBIT_CREDIT"
	ExceptionDeemedAccepted      = "DEEMED_ACCEPTED"
	ExceptionNetworkDeclined     = "NETWORK_DECLINED"
	ExceptionFailedAutocreditRev = "FAILED_AUTOCREDIT_REVERSAL"
	ExceptionOrphan              = "ORPHAN"
	ExceptionMismatch            = "MISMATCH"
)

// Run lifecycle statuses.
const (
	RunStatusRunning    = "RUNNING"
	RunStatusClassified = "CLASSIFIED"
	RunStatusInstructed = "INSTRUCTED"
	RunStatusAborted    = "ABORTED"
)

// TTUM batch types.
const (
	BatchRemitterRefund       = "REMITTER_REFUND"
	BatchBeneficiaryRecovery  = "BENEFICIARY_RECOVERY"
	BatchBeneficiaryCredit    = "BENEFICIARY_CREDIT"
	BatchFailedAutocreditRev  = "FAILED_AUTOCREDIT_REVERSAL"
	BatchDoubleDebitCreditRev = "DOUBLE_DEBIT_CREDIT_REVERSAL"
	BatchTCC                  = "TCC_102_103"
	BatchNTSLSettlement       = "NTSL_SETTLEMENT"
	BatchDRC                  = "DRC"
	BatchRRC                  = "RRC"
)

// TTUM batch lifecycle statuses.
const (
	BatchStatusPending = "PENDING"
	BatchStatusSettled = "SETTLED"
)

// Rollback checkpoint levels.
const (
	RollbackIngestion  = "ingestion"
	RollbackMidRecon   = "mid_recon"
	RollbackCycleWise  = "cycle_wise"
	RollbackAccounting = "accounting"
)

// Rollback checkpoint statuses.
const (
	CheckpointPending   = "PENDING"
	CheckpointCompleted = "COMPLETED"
	CheckpointFailed    = "FAILED"
)

// Transaction type codes carried on source records.
const (
	TxnTypePayment    = "PAY"
	TxnTypeReversal   = "RVSL"
	TxnTypeSettlement = "NTSL"
)

// Response codes with fixed meaning across feeds.
const (
	ResponseSuccess        = "00"
	ResponseDeemedAccepted = "RB"
)

// networkDeclinedCodes are the NPCI terminal decline responses.
var networkDeclinedCodes = map[string]struct{}{
	"08":  {},
	"12":  {},
	"91":  {},
	"U30": {},
	"U67": {},
	"U68": {},
	"Z9":  {},
}

// IsNetworkDeclined reports whether code is a terminal network decline.
func IsNetworkDeclined(code string) bool {
	_, ok := networkDeclinedCodes[code]
	return ok
}

// IsTerminalResponse reports whether code is a terminal network response
// (success, deemed accepted, or a decline). Anything else means the network
// leg is still awaiting an outcome.
func IsTerminalResponse(code string) bool {
	if code == ResponseSuccess || code == ResponseDeemedAccepted {
		return true
	}
	return IsNetworkDeclined(code)
}

// ValidSource reports whether s names one of the three source systems.
func ValidSource(s string) bool {
	switch s {
	case SourceLedger, SourceSwitch, SourceNetwork:
		return true
	}
	return false
}

// ValidDirection reports whether d is a known flow direction.
func ValidDirection(d string) bool {
	return d == DirectionInward || d == DirectionOutward
}
