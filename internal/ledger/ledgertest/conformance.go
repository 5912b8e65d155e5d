// Package ledgertest holds behaviour tests shared by every ledger.Store backend.
package ledgertest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/ledger"
)

// Addr builds a deterministic address filled with b.
func Addr(b byte) domain.Address {
	var a domain.Address
	for i := range a {
		a[i] = b
	}
	return a
}

// RunConformance exercises a backend. newStore must return an empty store.
func RunConformance(t *testing.T, newStore func(t *testing.T) ledger.Store) {
	t.Run("PutGetCommit", func(t *testing.T) { testPutGetCommit(t, newStore(t)) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("ReadYourWrites", func(t *testing.T) { testReadYourWrites(t, newStore(t)) })
	t.Run("Allocate", func(t *testing.T) { testAllocate(t, newStore(t)) })
	t.Run("RunHelper", func(t *testing.T) { testRunHelper(t, newStore(t)) })
	t.Run("TxDone", func(t *testing.T) { testTxDone(t, newStore(t)) })
	t.Run("SerializedIncrements", func(t *testing.T) { testSerializedIncrements(t, newStore(t)) })
}

func testPutGetCommit(t *testing.T, store ledger.Store) {
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID())

	_, err = tx.Get(ctx, Addr(1))
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	acct := &domain.Account{Address: Addr(1), Owner: Addr(9), Lamports: 1_000_000_000, Data: []byte{1, 2, 3}}
	require.NoError(t, tx.Put(ctx, acct))
	require.NoError(t, tx.Commit(ctx))

	tx, err = store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	got, err := tx.Get(ctx, Addr(1))
	require.NoError(t, err)
	assert.Equal(t, acct.Address, got.Address)
	assert.Equal(t, acct.Owner, got.Owner)
	assert.Equal(t, acct.Lamports, got.Lamports)
	assert.Equal(t, acct.Data, got.Data)
}

func testRollback(t *testing.T, store ledger.Store) {
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Put(ctx, &domain.Account{Address: Addr(2), Lamports: 5}))
	require.NoError(t, tx.Rollback(ctx))

	tx, err = store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	_, err = tx.Get(ctx, Addr(2))
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func testReadYourWrites(t *testing.T, store ledger.Store) {
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	require.NoError(t, tx.Put(ctx, &domain.Account{Address: Addr(3), Lamports: 7}))
	got, err := tx.Get(ctx, Addr(3))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got.Lamports)

	// Mutating the returned copy does not leak into the transaction.
	got.Lamports = 100
	again, err := tx.Get(ctx, Addr(3))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), again.Lamports)
}

func testAllocate(t *testing.T, store ledger.Store) {
	ctx := context.Background()

	_, err := ledger.Run(ctx, store, func(tx ledger.Tx) error {
		acct, err := ledger.Allocate(ctx, tx, Addr(4), Addr(8), 48)
		if err != nil {
			return err
		}
		assert.Len(t, acct.Data, 48)
		return ledger.Write(ctx, tx, Addr(4), append(make([]byte, 47), 0xff))
	})
	require.NoError(t, err)

	_, err = ledger.Run(ctx, store, func(tx ledger.Tx) error {
		_, err := ledger.Allocate(ctx, tx, Addr(4), Addr(8), 48)
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrAccountExists)

	_, err = ledger.Run(ctx, store, func(tx ledger.Tx) error {
		data, err := ledger.Read(ctx, tx, Addr(4))
		if err != nil {
			return err
		}
		assert.Equal(t, byte(0xff), data[47])
		acct, err := tx.Get(ctx, Addr(4))
		if err != nil {
			return err
		}
		assert.Equal(t, Addr(8), acct.Owner)
		return nil
	})
	require.NoError(t, err)
}

func testRunHelper(t *testing.T, store ledger.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	id, err := ledger.Run(ctx, store, func(tx ledger.Tx) error {
		if err := tx.Put(ctx, &domain.Account{Address: Addr(5), Lamports: 1}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NotEmpty(t, id)

	_, err = ledger.Run(ctx, store, func(tx ledger.Tx) error {
		acct, err := ledger.GetOrEmpty(ctx, tx, Addr(5))
		if err != nil {
			return err
		}
		assert.Equal(t, uint64(0), acct.Lamports)
		assert.Equal(t, domain.SystemProgramID, acct.Owner)
		return nil
	})
	require.NoError(t, err)
}

func testTxDone(t *testing.T, store ledger.Store) {
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	assert.ErrorIs(t, tx.Put(ctx, &domain.Account{Address: Addr(6)}), ledger.ErrTxDone)
	_, err = tx.Get(ctx, Addr(6))
	assert.ErrorIs(t, err, ledger.ErrTxDone)
	assert.ErrorIs(t, tx.Commit(ctx), ledger.ErrTxDone)
	assert.NoError(t, tx.Rollback(ctx))
}

// testSerializedIncrements runs concurrent read-modify-write transactions
// against one account. Conflicting transactions may be rejected with
// ErrConflict and are resubmitted here, as an external caller would.
func testSerializedIncrements(t *testing.T, store ledger.Store) {
	ctx := context.Background()
	const workers = 8

	_, err := ledger.Run(ctx, store, func(tx ledger.Tx) error {
		return tx.Put(ctx, &domain.Account{Address: Addr(7)})
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, err := ledger.Run(ctx, store, func(tx ledger.Tx) error {
					acct, err := tx.Get(ctx, Addr(7))
					if err != nil {
						return err
					}
					acct.Lamports++
					return tx.Put(ctx, acct)
				})
				if errors.Is(err, ledger.ErrConflict) {
					continue
				}
				errCh <- err
				return
			}
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}

	_, err = ledger.Run(ctx, store, func(tx ledger.Tx) error {
		acct, err := tx.Get(ctx, Addr(7))
		if err != nil {
			return err
		}
		assert.Equal(t, uint64(workers), acct.Lamports)
		return nil
	})
	require.NoError(t, err)
}
