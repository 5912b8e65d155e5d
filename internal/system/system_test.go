package system

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/ledger"
	"solana-token-sale/internal/ledger/ledgertest"
	"solana-token-sale/internal/ledger/memory"
)

func fund(t *testing.T, store ledger.Store, addr domain.Address, lamports uint64) {
	t.Helper()
	_, err := ledger.Run(context.Background(), store, func(tx ledger.Tx) error {
		return New().Airdrop(context.Background(), tx, addr, lamports)
	})
	require.NoError(t, err)
}

func balance(t *testing.T, store ledger.Store, addr domain.Address) uint64 {
	t.Helper()
	var got uint64
	_, err := ledger.Run(context.Background(), store, func(tx ledger.Tx) error {
		var err error
		got, err = New().Balance(context.Background(), tx, addr)
		return err
	})
	require.NoError(t, err)
	return got
}

func TestTransfer(t *testing.T) {
	alice, bob := ledgertest.Addr(1), ledgertest.Addr(2)

	tests := []struct {
		name      string
		funded    uint64
		amount    uint64
		wantErr   error
		wantAlice uint64
		wantBob   uint64
	}{
		{name: "exact balance", funded: 100, amount: 100, wantAlice: 0, wantBob: 100},
		{name: "partial", funded: 100, amount: 40, wantAlice: 60, wantBob: 40},
		{name: "zero amount", funded: 100, amount: 0, wantAlice: 100, wantBob: 0},
		{name: "insufficient", funded: 10, amount: 11, wantErr: ErrInsufficientFunds, wantAlice: 10, wantBob: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			ctx := context.Background()
			fund(t, store, alice, tt.funded)

			_, err := ledger.Run(ctx, store, func(tx ledger.Tx) error {
				return New().Transfer(ctx, tx, alice, bob, tt.amount)
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantAlice, balance(t, store, alice))
			assert.Equal(t, tt.wantBob, balance(t, store, bob))
		})
	}
}

func TestTransfer_SelfTransferKeepsBalance(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	fund(t, store, ledgertest.Addr(1), 50)

	_, err := ledger.Run(ctx, store, func(tx ledger.Tx) error {
		return New().Transfer(ctx, tx, ledgertest.Addr(1), ledgertest.Addr(1), 50)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(50), balance(t, store, ledgertest.Addr(1)))
}

func TestTransfer_RejectsProgramOwnedSource(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	_, err := ledger.Run(ctx, store, func(tx ledger.Tx) error {
		return tx.Put(ctx, &domain.Account{Address: ledgertest.Addr(1), Owner: domain.TokenProgramID, Lamports: 10})
	})
	require.NoError(t, err)

	_, err = ledger.Run(ctx, store, func(tx ledger.Tx) error {
		return New().Transfer(ctx, tx, ledgertest.Addr(1), ledgertest.Addr(2), 1)
	})
	assert.ErrorIs(t, err, ErrNotSystemOwned)
}

func TestTransfer_Overflow(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	fund(t, store, ledgertest.Addr(1), 1)
	fund(t, store, ledgertest.Addr(2), math.MaxUint64)

	_, err := ledger.Run(ctx, store, func(tx ledger.Tx) error {
		return New().Transfer(ctx, tx, ledgertest.Addr(1), ledgertest.Addr(2), 1)
	})
	assert.ErrorIs(t, err, ErrLamportOverflow)
	assert.Equal(t, uint64(1), balance(t, store, ledgertest.Addr(1)))
}

func TestAirdrop_Overflow(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	fund(t, store, ledgertest.Addr(1), math.MaxUint64)

	_, err := ledger.Run(ctx, store, func(tx ledger.Tx) error {
		return New().Airdrop(ctx, tx, ledgertest.Addr(1), 1)
	})
	assert.ErrorIs(t, err, ErrLamportOverflow)
}
