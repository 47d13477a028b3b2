package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleops/recon-engine/internal/domain"
)

func input(rrn, source string) RecordInput {
	return RecordInput{
		RRN:          rrn,
		Source:       source,
		Amount:       "12300.00",
		TxnDate:      "2026-01-13",
		DRC:          "D",
		ResponseCode: "00",
		Cycle:        "C1",
		Account:      "CUST-001",
		SourceFile:   "cbs_inward_20260105.csv",
	}
}

func TestAddRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	accepted, rejected, err := f.ingest.AddRecords(ctx, testRun, domain.DirectionOutward, []RecordInput{
		input("636397811101710", domain.SourceLedger),
		input("636397811101710", domain.SourceSwitch),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, accepted)
	assert.Empty(t, rejected)

	recs, err := f.store.Records(ctx, testRun, "C1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(1_230_000), recs[0].AmountPaise)
	assert.Equal(t, domain.TxnTypePayment, recs[0].TxnType)
	assert.Equal(t, domain.DirectionOutward, recs[0].Direction)
}

func TestAddRecords_PartialSuccess(t *testing.T) {
	f := newFixture(t)

	bad := input("123", domain.SourceLedger) // short RRN
	accepted, rejected, err := f.ingest.AddRecords(context.Background(), testRun, domain.DirectionOutward, []RecordInput{
		input("636397811101710", domain.SourceLedger),
		bad,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, accepted)
	require.Len(t, rejected, 1)
	assert.Equal(t, "123", rejected[0].RRN)
	assert.Contains(t, rejected[0].Reason, "15-digit")
}

func TestAddRecords_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*RecordInput)
	}{
		{"non-numeric rrn", func(in *RecordInput) { in.RRN = "63639781110171X" }},
		{"unknown source", func(in *RecordInput) { in.Source = "cbs" }},
		{"missing cycle", func(in *RecordInput) { in.Cycle = "" }},
		{"bad drc", func(in *RecordInput) { in.DRC = "X" }},
		{"malformed amount", func(in *RecordInput) { in.Amount = "12.345" }},
		{"malformed date", func(in *RecordInput) { in.TxnDate = "13/01/2026" }},
	}
	for _, tc := range tests {
		in := input("636397811101710", domain.SourceLedger)
		tc.mutate(&in)
		accepted, rejected, err := f.ingest.AddRecords(ctx, testRun, domain.DirectionOutward, []RecordInput{in})
		require.NoError(t, err, tc.name)
		assert.Zero(t, accepted, tc.name)
		assert.Len(t, rejected, 1, tc.name)
	}
}

func TestAddRecords_RFC3339Date(t *testing.T) {
	f := newFixture(t)
	in := input("636397811101710", domain.SourceLedger)
	in.TxnDate = "2026-01-13T14:02:00+05:30"

	accepted, rejected, err := f.ingest.AddRecords(context.Background(), testRun, domain.DirectionOutward, []RecordInput{in})
	require.NoError(t, err)
	assert.Equal(t, 1, accepted)
	assert.Empty(t, rejected)
}

func TestAddRecords_InvalidDirection(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.ingest.AddRecords(context.Background(), testRun, "sideways", []RecordInput{
		input("636397811101710", domain.SourceLedger),
	})
	require.Error(t, err)
}
