package runlock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleops/recon-engine/internal/domain"
)

func TestMemory_Acquire(t *testing.T) {
	locker := NewMemory()
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "RUN1")
	require.NoError(t, err)

	// Second caller is rejected, never queued.
	_, err = locker.Acquire(ctx, "RUN1")
	require.ErrorIs(t, err, domain.ErrRunConflict)

	// A different run is independent.
	release2, err := locker.Acquire(ctx, "RUN2")
	require.NoError(t, err)
	release2()

	release()
	_, err = locker.Acquire(ctx, "RUN1")
	assert.NoError(t, err)
}
