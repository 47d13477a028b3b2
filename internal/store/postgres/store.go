// Package postgres is the durable RunStore used when DATABASE_URL is
// configured. Documents are stored as JSONB; the staged flag keeps
// in-flight reconciliation records invisible to readers until the cycle
// commit flips them in one transaction.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/settleops/recon-engine/internal/domain"
	"github.com/settleops/recon-engine/internal/store"
)

// Store implements store.RunStore on pgx.
type Store struct {
	db *pgxpool.Pool
}

// New creates a Postgres-backed run store.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	direction  TEXT NOT NULL,
	status     TEXT NOT NULL,
	cycles     JSONB NOT NULL DEFAULT '[]',
	started_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS canonical_records (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	rrn         TEXT NOT NULL,
	source      TEXT NOT NULL,
	cycle       TEXT NOT NULL,
	source_file TEXT NOT NULL,
	doc         JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS canonical_records_run_idx ON canonical_records(run_id, cycle);
CREATE TABLE IF NOT EXISTS recon_records (
	run_id TEXT NOT NULL REFERENCES runs(id),
	cycle  TEXT NOT NULL,
	rrn    TEXT NOT NULL,
	staged BOOLEAN NOT NULL,
	doc    JSONB NOT NULL,
	PRIMARY KEY (run_id, cycle, rrn, staged)
);
CREATE TABLE IF NOT EXISTS integrity_errors (
	run_id TEXT NOT NULL REFERENCES runs(id),
	doc    JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS ttum_batches (
	id     UUID NOT NULL,
	run_id TEXT NOT NULL REFERENCES runs(id),
	cycle  TEXT NOT NULL,
	status TEXT NOT NULL,
	doc    JSONB NOT NULL,
	PRIMARY KEY (run_id, id)
);
CREATE TABLE IF NOT EXISTS checkpoints (
	id         UUID PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	status     TEXT NOT NULL,
	doc        JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema creates the run-store tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure run store schema: %w", err)
	}
	return nil
}

func (s *Store) EnsureRun(ctx context.Context, id, direction string, cycles []string) (domain.Run, error) {
	var run domain.Run
	var cyclesDoc []byte

	row := s.db.QueryRow(ctx, `SELECT id, direction, status, cycles, started_at FROM runs WHERE id = $1`, id)
	err := row.Scan(&run.ID, &run.Direction, &run.Status, &cyclesDoc, &run.StartedAt)
	if err == nil {
		if run.Status == domain.RunStatusAborted {
			return domain.Run{}, fmt.Errorf("run %s: %w", id, domain.ErrRunAborted)
		}
		if err := json.Unmarshal(cyclesDoc, &run.Cycles); err != nil {
			return domain.Run{}, fmt.Errorf("decode run cycles: %w", err)
		}
		merged := mergeCycles(run.Cycles, cycles)
		if len(merged) != len(run.Cycles) {
			run.Cycles = merged
			doc, _ := json.Marshal(merged)
			if _, err := s.db.Exec(ctx, `UPDATE runs SET cycles = $1 WHERE id = $2`, doc, id); err != nil {
				return domain.Run{}, fmt.Errorf("update run cycles: %w", err)
			}
		}
		return run, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Run{}, fmt.Errorf("get run: %w", err)
	}

	run = domain.Run{ID: id, Direction: direction, Cycles: mergeCycles(nil, cycles), Status: domain.RunStatusRunning}
	doc, _ := json.Marshal(run.Cycles)
	row = s.db.QueryRow(ctx,
		`INSERT INTO runs (id, direction, status, cycles) VALUES ($1, $2, $3, $4) RETURNING started_at`,
		run.ID, run.Direction, run.Status, doc)
	if err := row.Scan(&run.StartedAt); err != nil {
		return domain.Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

func (s *Store) GetRun(ctx context.Context, id string) (domain.Run, error) {
	var run domain.Run
	var cyclesDoc []byte
	row := s.db.QueryRow(ctx, `SELECT id, direction, status, cycles, started_at FROM runs WHERE id = $1`, id)
	if err := row.Scan(&run.ID, &run.Direction, &run.Status, &cyclesDoc, &run.StartedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Run{}, fmt.Errorf("run %s: %w", id, domain.ErrRunNotFound)
		}
		return domain.Run{}, fmt.Errorf("get run: %w", err)
	}
	if err := json.Unmarshal(cyclesDoc, &run.Cycles); err != nil {
		return domain.Run{}, fmt.Errorf("decode run cycles: %w", err)
	}
	return run, nil
}

func (s *Store) SetRunStatus(ctx context.Context, id, status string) error {
	tag, err := s.db.Exec(ctx, `UPDATE runs SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("set run status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s: %w", id, domain.ErrRunNotFound)
	}
	return nil
}

func (s *Store) RunIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM runs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) AddRecords(ctx context.Context, runID string, recs []domain.TransactionRecord) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	for _, rec := range recs {
		doc, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", rec.RRN, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO canonical_records (run_id, rrn, source, cycle, source_file, doc) VALUES ($1, $2, $3, $4, $5, $6)`,
			runID, rec.RRN, rec.Source, rec.Cycle, rec.SourceFile, doc); err != nil {
			return fmt.Errorf("insert record %s: %w", rec.RRN, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) Records(ctx context.Context, runID, cycle string) ([]domain.TransactionRecord, error) {
	query := `SELECT doc FROM canonical_records WHERE run_id = $1`
	args := []interface{}{runID}
	if cycle != "" {
		query += ` AND cycle = $2`
		args = append(args, cycle)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()
	var recs []domain.TransactionRecord
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var rec domain.TransactionRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *Store) RemoveFileRecords(ctx context.Context, runID, filename string) (int, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM canonical_records WHERE run_id = $1 AND source_file = $2`, runID, filename)
	if err != nil {
		return 0, fmt.Errorf("remove file records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) StageCycle(ctx context.Context, runID, cycle string, recs []domain.ReconRecord) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx,
		`DELETE FROM recon_records WHERE run_id = $1 AND cycle = $2 AND staged`, runID, cycle); err != nil {
		return fmt.Errorf("clear staged cycle: %w", err)
	}
	for _, rec := range recs {
		doc, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode recon record %s: %w", rec.RRN, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO recon_records (run_id, cycle, rrn, staged, doc) VALUES ($1, $2, $3, TRUE, $4)`,
			runID, cycle, rec.RRN, doc); err != nil {
			return fmt.Errorf("stage recon record %s: %w", rec.RRN, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) CommitCycle(ctx context.Context, runID, cycle string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx,
		`DELETE FROM recon_records WHERE run_id = $1 AND cycle = $2 AND NOT staged`, runID, cycle); err != nil {
		return fmt.Errorf("clear committed cycle: %w", err)
	}
	tag, err := tx.Exec(ctx,
		`UPDATE recon_records SET staged = FALSE WHERE run_id = $1 AND cycle = $2 AND staged`, runID, cycle)
	if err != nil {
		return fmt.Errorf("commit cycle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cycle %s has no staged records to commit", cycle)
	}
	return tx.Commit(ctx)
}

func (s *Store) DiscardStaged(ctx context.Context, runID string) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM recon_records WHERE run_id = $1 AND staged`, runID)
	if err != nil {
		return 0, fmt.Errorf("discard staged: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) ResetCycle(ctx context.Context, runID, cycle string) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM recon_records WHERE run_id = $1 AND cycle = $2`, runID, cycle)
	if err != nil {
		return 0, fmt.Errorf("reset cycle: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) ReconRecords(ctx context.Context, runID, cycle string) ([]domain.ReconRecord, error) {
	query := `SELECT doc FROM recon_records WHERE run_id = $1 AND NOT staged`
	args := []interface{}{runID}
	if cycle != "" {
		query += ` AND cycle = $2`
		args = append(args, cycle)
	}
	query += ` ORDER BY rrn`
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recon records: %w", err)
	}
	defer rows.Close()
	var recs []domain.ReconRecord
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var rec domain.ReconRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			return nil, fmt.Errorf("decode recon record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *Store) GetReconRecord(ctx context.Context, runID, rrn string) (domain.ReconRecord, error) {
	var doc []byte
	row := s.db.QueryRow(ctx,
		`SELECT doc FROM recon_records WHERE run_id = $1 AND rrn = $2 AND NOT staged`, runID, rrn)
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ReconRecord{}, fmt.Errorf("rrn %s not found in run %s", rrn, runID)
		}
		return domain.ReconRecord{}, fmt.Errorf("get recon record: %w", err)
	}
	var rec domain.ReconRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return domain.ReconRecord{}, fmt.Errorf("decode recon record: %w", err)
	}
	return rec, nil
}

func (s *Store) PutReconRecord(ctx context.Context, runID string, rec domain.ReconRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode recon record %s: %w", rec.RRN, err)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE recon_records SET doc = $1 WHERE run_id = $2 AND cycle = $3 AND rrn = $4 AND NOT staged`,
		doc, runID, rec.Cycle, rec.RRN)
	if err != nil {
		return fmt.Errorf("update recon record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rrn %s not found in cycle %s", rec.RRN, rec.Cycle)
	}
	return nil
}

func (s *Store) Cycles(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT cycle FROM canonical_records WHERE run_id = $1
		UNION
		SELECT cycle FROM recon_records WHERE run_id = $1 AND NOT staged
		ORDER BY cycle`, runID)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()
	var cycles []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

func (s *Store) SetIntegrityErrors(ctx context.Context, runID string, errs []domain.DataQualityError) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `DELETE FROM integrity_errors WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("clear integrity errors: %w", err)
	}
	for _, dq := range errs {
		doc, err := json.Marshal(dq)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO integrity_errors (run_id, doc) VALUES ($1, $2)`, runID, doc); err != nil {
			return fmt.Errorf("insert integrity error: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) IntegrityErrors(ctx context.Context, runID string) ([]domain.DataQualityError, error) {
	rows, err := s.db.Query(ctx, `SELECT doc FROM integrity_errors WHERE run_id = $1`, runID)
	if err != nil {
		return nil, fmt.Errorf("query integrity errors: %w", err)
	}
	defer rows.Close()
	var out []domain.DataQualityError
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var dq domain.DataQualityError
		if err := json.Unmarshal(doc, &dq); err != nil {
			return nil, fmt.Errorf("decode integrity error: %w", err)
		}
		out = append(out, dq)
	}
	return out, rows.Err()
}

func (s *Store) SaveBatches(ctx context.Context, runID, cycle string, batches []domain.TTUMBatch) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	// Replace only the regenerated cycle; other cycles keep their batches
	// and settlement status.
	if cycle == "" {
		_, err = tx.Exec(ctx, `DELETE FROM ttum_batches WHERE run_id = $1`, runID)
	} else {
		_, err = tx.Exec(ctx, `DELETE FROM ttum_batches WHERE run_id = $1 AND cycle = $2`, runID, cycle)
	}
	if err != nil {
		return fmt.Errorf("clear batches: %w", err)
	}
	for _, batch := range batches {
		doc, err := json.Marshal(batch)
		if err != nil {
			return fmt.Errorf("encode batch %s: %w", batch.Type, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO ttum_batches (id, run_id, cycle, status, doc) VALUES ($1, $2, $3, $4, $5)`,
			batch.ID, runID, batch.Cycle, batch.Status, doc); err != nil {
			return fmt.Errorf("insert batch %s: %w", batch.Type, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) Batches(ctx context.Context, runID string) ([]domain.TTUMBatch, error) {
	rows, err := s.db.Query(ctx,
		`SELECT doc, status FROM ttum_batches WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()
	var batches []domain.TTUMBatch
	for rows.Next() {
		var doc []byte
		var status string
		if err := rows.Scan(&doc, &status); err != nil {
			return nil, err
		}
		var batch domain.TTUMBatch
		if err := json.Unmarshal(doc, &batch); err != nil {
			return nil, fmt.Errorf("decode batch: %w", err)
		}
		batch.Status = status
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

func (s *Store) SetBatchStatuses(ctx context.Context, runID, from, to string) (int, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE ttum_batches SET status = $1 WHERE run_id = $2 AND status = $3`, to, runID, from)
	if err != nil {
		return 0, fmt.Errorf("set batch statuses: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) AppendCheckpoint(ctx context.Context, cp domain.Checkpoint) error {
	doc, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if _, err := s.db.Exec(ctx,
		`INSERT INTO checkpoints (id, run_id, status, doc, created_at) VALUES ($1, $2, $3, $4, $5)`,
		cp.ID, cp.RunID, cp.Status, doc, cp.CreatedAt); err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

func (s *Store) SetCheckpointStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE checkpoints SET status = $1, doc = jsonb_set(doc, '{status}', to_jsonb($1::text)) WHERE id = $2`,
		status, id)
	if err != nil {
		return fmt.Errorf("set checkpoint status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("checkpoint %s not found", id)
	}
	return nil
}

func (s *Store) Checkpoints(ctx context.Context, runID string) ([]domain.Checkpoint, error) {
	rows, err := s.db.Query(ctx,
		`SELECT doc, status FROM checkpoints WHERE run_id = $1 ORDER BY created_at, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer rows.Close()
	var cps []domain.Checkpoint
	for rows.Next() {
		var doc []byte
		var status string
		if err := rows.Scan(&doc, &status); err != nil {
			return nil, err
		}
		var cp domain.Checkpoint
		if err := json.Unmarshal(doc, &cp); err != nil {
			return nil, fmt.Errorf("decode checkpoint: %w", err)
		}
		cp.Status = status
		cps = append(cps, cp)
	}
	return cps, rows.Err()
}

func mergeCycles(existing, requested []string) []string {
	seen := make(map[string]struct{}, len(existing))
	merged := append([]string(nil), existing...)
	for _, c := range existing {
		seen[c] = struct{}{}
	}
	for _, c := range requested {
		if _, ok := seen[c]; !ok {
			merged = append(merged, c)
			seen[c] = struct{}{}
		}
	}
	sort.Strings(merged)
	return merged
}

var _ store.RunStore = (*Store)(nil)
