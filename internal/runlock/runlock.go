// Package runlock serializes mutating operations per run identifier. At most
// one classification commit, instruction generation, or rollback may be in
// flight per run; a second caller is rejected immediately, never queued.
package runlock

import (
	"context"
	"fmt"
	"sync"

	"github.com/settleops/recon-engine/internal/domain"
)

// Locker grants exclusive ownership of a run identifier. Acquire returns a
// release function on success and ErrRunConflict when the run is already
// held.
type Locker interface {
	Acquire(ctx context.Context, runID string) (release func(), err error)
}

// Memory is the in-process Locker for single-replica deployments and tests.
type Memory struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemory creates an in-process run locker.
func NewMemory() *Memory {
	return &Memory{held: make(map[string]struct{})}
}

func (m *Memory) Acquire(ctx context.Context, runID string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[runID]; ok {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrRunConflict)
	}
	m.held[runID] = struct{}{}
	return func() {
		m.mu.Lock()
		delete(m.held, runID)
		m.mu.Unlock()
	}, nil
}
