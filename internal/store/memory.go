package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/settleops/recon-engine/internal/domain"
)

// MemoryStore is the in-process RunStore used in single-node deployments and
// throughout the engine tests.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*runState
}

type runState struct {
	run       domain.Run
	records   []domain.TransactionRecord
	staged    map[string][]domain.ReconRecord
	committed map[string][]domain.ReconRecord
	integrity []domain.DataQualityError
	batches   []domain.TTUMBatch
	ledger    []domain.Checkpoint
}

// NewMemoryStore creates an empty in-memory run store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*runState)}
}

func (s *MemoryStore) state(runID string) (*runState, error) {
	rs, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrRunNotFound)
	}
	return rs, nil
}

func (s *MemoryStore) EnsureRun(ctx context.Context, id, direction string, cycles []string) (domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rs, ok := s.runs[id]; ok {
		if rs.run.Status == domain.RunStatusAborted {
			return domain.Run{}, fmt.Errorf("run %s: %w", id, domain.ErrRunAborted)
		}
		seen := make(map[string]struct{}, len(rs.run.Cycles))
		for _, c := range rs.run.Cycles {
			seen[c] = struct{}{}
		}
		for _, c := range cycles {
			if _, ok := seen[c]; !ok {
				rs.run.Cycles = append(rs.run.Cycles, c)
			}
		}
		sort.Strings(rs.run.Cycles)
		return rs.run, nil
	}

	run := domain.Run{ID: id, Direction: direction, Cycles: append([]string(nil), cycles...), Status: domain.RunStatusRunning}
	sort.Strings(run.Cycles)
	s.runs[id] = &runState{
		run:       run,
		staged:    make(map[string][]domain.ReconRecord),
		committed: make(map[string][]domain.ReconRecord),
	}
	return run, nil
}

func (s *MemoryStore) GetRun(ctx context.Context, id string) (domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, err := s.state(id)
	if err != nil {
		return domain.Run{}, err
	}
	return rs.run, nil
}

func (s *MemoryStore) SetRunStatus(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, err := s.state(id)
	if err != nil {
		return err
	}
	rs.run.Status = status
	return nil
}

func (s *MemoryStore) RunIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) AddRecords(ctx context.Context, runID string, recs []domain.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, err := s.state(runID)
	if err != nil {
		return err
	}
	rs.records = append(rs.records, recs...)
	return nil
}

func (s *MemoryStore) Records(ctx context.Context, runID, cycle string) ([]domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, err := s.state(runID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TransactionRecord, 0, len(rs.records))
	for _, rec := range rs.records {
		if cycle == "" || rec.Cycle == cycle {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) RemoveFileRecords(ctx context.Context, runID, filename string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, err := s.state(runID)
	if err != nil {
		return 0, err
	}
	kept := rs.records[:0]
	removed := 0
	for _, rec := range rs.records {
		if rec.SourceFile == filename {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	rs.records = kept
	return removed, nil
}

func (s *MemoryStore) StageCycle(ctx context.Context, runID, cycle string, recs []domain.ReconRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, err := s.state(runID)
	if err != nil {
		return err
	}
	staged := append([]domain.ReconRecord(nil), recs...)
	sort.Slice(staged, func(i, j int) bool { return staged[i].RRN < staged[j].RRN })
	rs.staged[cycle] = staged
	return nil
}

func (s *MemoryStore) CommitCycle(ctx context.Context, runID, cycle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, err := s.state(runID)
	if err != nil {
		return err
	}
	staged, ok := rs.staged[cycle]
	if !ok {
		return fmt.Errorf("cycle %s has no staged records to commit", cycle)
	}
	rs.committed[cycle] = staged
	delete(rs.staged, cycle)
	return nil
}

func (s *MemoryStore) DiscardStaged(ctx context.Context, runID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, err := s.state(runID)
	if err != nil {
		return 0, err
	}
	n := 0
	for cycle, recs := range rs.staged {
		n += len(recs)
		delete(rs.staged, cycle)
	}
	return n, nil
}

func (s *MemoryStore) ResetCycle(ctx context.Context, runID, cycle string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, err := s.state(runID)
	if err != nil {
		return 0, err
	}
	n := len(rs.committed[cycle]) + len(rs.staged[cycle])
	delete(rs.committed, cycle)
	delete(rs.staged, cycle)
	return n, nil
}

func (s *MemoryStore) ReconRecords(ctx context.Context, runID, cycle string) ([]domain.ReconRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, err := s.state(runID)
	if err != nil {
		return nil, err
	}
	var out []domain.ReconRecord
	for c, recs := range rs.committed {
		if cycle == "" || c == cycle {
			out = append(out, recs...)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RRN < out[j].RRN })
	return out, nil
}

func (s *MemoryStore) GetReconRecord(ctx context.Context, runID, rrn string) (domain.ReconRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, err := s.state(runID)
	if err != nil {
		return domain.ReconRecord{}, err
	}
	for _, recs := range rs.committed {
		for _, rec := range recs {
			if rec.RRN == rrn {
				return rec, nil
			}
		}
	}
	return domain.ReconRecord{}, fmt.Errorf("rrn %s not found in run %s", rrn, runID)
}

func (s *MemoryStore) PutReconRecord(ctx context.Context, runID string, rec domain.ReconRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, err := s.state(runID)
	if err != nil {
		return err
	}
	recs, ok := rs.committed[rec.Cycle]
	if !ok {
		return fmt.Errorf("cycle %s has no committed records", rec.Cycle)
	}
	for i := range recs {
		if recs[i].RRN == rec.RRN {
			recs[i] = rec
			return nil
		}
	}
	return fmt.Errorf("rrn %s not found in cycle %s", rec.RRN, rec.Cycle)
}

func (s *MemoryStore) Cycles(ctx context.Context, runID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, err := s.state(runID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, rec := range rs.records {
		seen[rec.Cycle] = struct{}{}
	}
	for c := range rs.committed {
		seen[c] = struct{}{}
	}
	cycles := make([]string, 0, len(seen))
	for c := range seen {
		cycles = append(cycles, c)
	}
	sort.Strings(cycles)
	return cycles, nil
}

func (s *MemoryStore) SetIntegrityErrors(ctx context.Context, runID string, errs []domain.DataQualityError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, err := s.state(runID)
	if err != nil {
		return err
	}
	rs.integrity = append([]domain.DataQualityError(nil), errs...)
	return nil
}

func (s *MemoryStore) IntegrityErrors(ctx context.Context, runID string) ([]domain.DataQualityError, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, err := s.state(runID)
	if err != nil {
		return nil, err
	}
	return append([]domain.DataQualityError(nil), rs.integrity...), nil
}

func (s *MemoryStore) SaveBatches(ctx context.Context, runID, cycle string, batches []domain.TTUMBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, err := s.state(runID)
	if err != nil {
		return err
	}
	var kept []domain.TTUMBatch
	if cycle != "" {
		for _, b := range rs.batches {
			if b.Cycle != cycle {
				kept = append(kept, b)
			}
		}
	}
	rs.batches = append(kept, batches...)
	return nil
}

func (s *MemoryStore) Batches(ctx context.Context, runID string) ([]domain.TTUMBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, err := s.state(runID)
	if err != nil {
		return nil, err
	}
	return append([]domain.TTUMBatch(nil), rs.batches...), nil
}

func (s *MemoryStore) SetBatchStatuses(ctx context.Context, runID, from, to string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, err := s.state(runID)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range rs.batches {
		if rs.batches[i].Status == from {
			rs.batches[i].Status = to
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) AppendCheckpoint(ctx context.Context, cp domain.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, err := s.state(cp.RunID)
	if err != nil {
		return err
	}
	rs.ledger = append(rs.ledger, cp)
	return nil
}

func (s *MemoryStore) SetCheckpointStatus(ctx context.Context, id uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rs := range s.runs {
		for i := range rs.ledger {
			if rs.ledger[i].ID == id {
				rs.ledger[i].Status = status
				return nil
			}
		}
	}
	return fmt.Errorf("checkpoint %s not found", id)
}

func (s *MemoryStore) Checkpoints(ctx context.Context, runID string) ([]domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, err := s.state(runID)
	if err != nil {
		return nil, err
	}
	return append([]domain.Checkpoint(nil), rs.ledger...), nil
}

var _ RunStore = (*MemoryStore)(nil)
