package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/ledger"
	"solana-token-sale/internal/ledger/ledgertest"
)

func TestStore_Conformance(t *testing.T) {
	ledgertest.RunConformance(t, func(t *testing.T) ledger.Store {
		return NewStore()
	})
}

func TestStore_BeginWaitsForRunningTx(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = store.Begin(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, tx.Rollback(ctx))

	tx2, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx2.Rollback(ctx))
}

func TestStore_CommitWithCancelledContextDiscards(t *testing.T) {
	store := NewStore()

	ctx, cancel := context.WithCancel(context.Background())
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Put(ctx, &domain.Account{Address: ledgertest.Addr(1), Lamports: 1}))

	cancel()
	assert.ErrorIs(t, tx.Commit(ctx), context.Canceled)

	_, ok := store.Snapshot(ledgertest.Addr(1))
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())

	// Writer slot was released.
	tx, err = store.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(context.Background()))
}
