// Package ttum converts classified exceptions into typed settlement and
// adjustment instruction batches with GL account routing.
package ttum

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/settleops/recon-engine/internal/domain"
)

// Accounts is the configured GL account mapping. An empty entry referenced
// by a batch route is a generation error for that batch, never a silent skip.
type Accounts struct {
	NPCISettlement string
	Payable        string
	Receivable     string
}

// account roles referenced by batch routes.
const (
	roleNPCI       = "npci_settlement"
	rolePayable    = "payable"
	roleReceivable = "receivable"
	roleCustomer   = "customer_account"
)

type mappingKey struct {
	Exception string
	Direction string
}

// batchTable is the fixed exception-to-batch mapping, partitioned by
// direction. Exceptions absent from the table produce no instruction.
var batchTable = map[mappingKey]string{
	{domain.ExceptionNetworkDeclined, domain.DirectionOutward}:     domain.BatchRemitterRefund,
	{domain.ExceptionNetworkDeclined, domain.DirectionInward}:      domain.BatchBeneficiaryRecovery,
	{domain.ExceptionFailedAutocreditRev, domain.DirectionOutward}: domain.BatchFailedAutocreditRev,
	{domain.ExceptionFailedAutocreditRev, domain.DirectionInward}:  domain.BatchBeneficiaryCredit,
	{domain.ExceptionDoubleDebitCredit, domain.DirectionOutward}:   domain.BatchDoubleDebitCreditRev,
	{domain.ExceptionDoubleDebitCredit, domain.DirectionInward}:    domain.BatchDoubleDebitCreditRev,
	{domain.ExceptionDeemedAccepted, domain.DirectionOutward}:      domain.BatchTCC,
	{domain.ExceptionDeemedAccepted, domain.DirectionInward}:       domain.BatchTCC,
	{domain.ExceptionSettlementEntry, domain.DirectionOutward}:     domain.BatchNTSLSettlement,
	{domain.ExceptionSettlementEntry, domain.DirectionInward}:      domain.BatchNTSLSettlement,
	{domain.ExceptionSelfMatchedReversed, domain.DirectionOutward}: domain.BatchDRC,
	{domain.ExceptionSelfMatchedReversed, domain.DirectionInward}:  domain.BatchRRC,
}

type route struct {
	Debit  string
	Credit string
}

// routeTable fixes the GL debit/credit roles per batch type.
var routeTable = map[string]route{
	domain.BatchRemitterRefund:       {Debit: roleNPCI, Credit: roleCustomer},
	domain.BatchBeneficiaryRecovery:  {Debit: roleCustomer, Credit: roleNPCI},
	domain.BatchBeneficiaryCredit:    {Debit: roleNPCI, Credit: roleCustomer},
	domain.BatchFailedAutocreditRev:  {Debit: rolePayable, Credit: roleCustomer},
	domain.BatchDoubleDebitCreditRev: {Debit: roleReceivable, Credit: roleCustomer},
	domain.BatchTCC:                  {Debit: roleNPCI, Credit: rolePayable},
	domain.BatchNTSLSettlement:       {Debit: roleNPCI, Credit: roleReceivable},
	domain.BatchDRC:                  {Debit: rolePayable, Credit: roleNPCI},
	domain.BatchRRC:                  {Debit: roleNPCI, Credit: roleReceivable},
}

// Generator builds instruction batches from classified records.
type Generator struct {
	accounts Accounts
	now      func() time.Time
}

// New creates a generator. now is injectable for tests.
func New(accounts Accounts, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{accounts: accounts, now: now}
}

// Generate produces instruction batches for the run's classified records.
// One missing mapping fails only its batch; all other batches proceed.
// Output is deterministic: records order by RRN within a batch, batch ids
// derive from (run, cycle, type), and batches order by type.
func (g *Generator) Generate(runID, cycle string, recs []domain.ReconRecord) ([]domain.TTUMBatch, []error) {
	grouped := make(map[string][]domain.ReconRecord)
	for _, rec := range recs {
		if rec.Exception == "" {
			continue
		}
		btype, ok := batchTable[mappingKey{rec.Exception, rec.Direction}]
		if !ok {
			continue
		}
		grouped[btype] = append(grouped[btype], rec)
	}

	types := make([]string, 0, len(grouped))
	for btype := range grouped {
		types = append(types, btype)
	}
	sort.Strings(types)

	var batches []domain.TTUMBatch
	var failures []error
	for _, btype := range types {
		batch, err := g.buildBatch(runID, cycle, btype, grouped[btype])
		if err != nil {
			failures = append(failures, err)
			continue
		}
		batches = append(batches, batch)
	}
	return batches, failures
}

func (g *Generator) buildBatch(runID, cycle, btype string, recs []domain.ReconRecord) (domain.TTUMBatch, error) {
	rt, ok := routeTable[btype]
	if !ok {
		return domain.TTUMBatch{}, fmt.Errorf("batch %s has no GL route", btype)
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].RRN < recs[j].RRN })

	batch := domain.TTUMBatch{
		ID:          batchID(runID, cycle, btype),
		RunID:       runID,
		Cycle:       cycle,
		Type:        btype,
		Direction:   recs[0].Direction,
		Status:      domain.BatchStatusPending,
		GeneratedAt: g.now(),
	}
	for _, rec := range recs {
		debit, err := g.resolve(btype, rt.Debit, &rec)
		if err != nil {
			return domain.TTUMBatch{}, err
		}
		credit, err := g.resolve(btype, rt.Credit, &rec)
		if err != nil {
			return domain.TTUMBatch{}, err
		}
		batch.Lines = append(batch.Lines, domain.TTUMLine{
			RRN:           rec.RRN,
			DebitAccount:  debit,
			CreditAccount: credit,
			AmountPaise:   rec.Amount(),
			Narration:     fmt.Sprintf("%s/%s/%s", btype, rec.Exception, rec.RRN),
		})
	}
	return batch, nil
}

func (g *Generator) resolve(btype, role string, rec *domain.ReconRecord) (string, error) {
	var account string
	switch role {
	case roleNPCI:
		account = g.accounts.NPCISettlement
	case rolePayable:
		account = g.accounts.Payable
	case roleReceivable:
		account = g.accounts.Receivable
	case roleCustomer:
		account = customerAccount(rec)
	}
	if account == "" {
		return "", &domain.MappingError{BatchType: btype, Mapping: role}
	}
	return account, nil
}

// customerAccount extracts the remitter/beneficiary account from the first
// source record carrying one.
func customerAccount(rec *domain.ReconRecord) string {
	for _, r := range []*domain.TransactionRecord{rec.Ledger, rec.Switch, rec.Network} {
		if r != nil && r.Account != "" {
			return r.Account
		}
	}
	return ""
}

// batchID derives a stable identifier so regeneration is idempotent.
func batchID(runID, cycle, btype string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(runID+"/"+cycle+"/"+btype))
}
