package leveldb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/ledger"
	"solana-token-sale/internal/ledger/ledgertest"
)

func TestStore_Conformance(t *testing.T) {
	ledgertest.RunConformance(t, func(t *testing.T) ledger.Store {
		store, err := OpenInMemory()
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := Open(dir)
	require.NoError(t, err)

	_, err = ledger.Run(ctx, store, func(tx ledger.Tx) error {
		return tx.Put(ctx, &domain.Account{
			Address:  ledgertest.Addr(1),
			Owner:    ledgertest.Addr(2),
			Lamports: 42,
			Data:     []byte("sale"),
		})
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(dir)
	require.NoError(t, err)
	defer store.Close()

	_, err = ledger.Run(ctx, store, func(tx ledger.Tx) error {
		acct, err := tx.Get(ctx, ledgertest.Addr(1))
		if err != nil {
			return err
		}
		assert.Equal(t, uint64(42), acct.Lamports)
		assert.Equal(t, ledgertest.Addr(2), acct.Owner)
		assert.Equal(t, []byte("sale"), acct.Data)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_BeginRespectsCancelledContext(t *testing.T) {
	store, err := OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Begin(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
