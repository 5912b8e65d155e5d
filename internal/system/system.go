// Package system moves native lamports between ledger accounts.
package system

import (
	"context"
	"errors"
	"fmt"
	"math/bits"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/ledger"
)

var (
	// ErrInsufficientFunds is returned when the payer holds fewer lamports than requested.
	ErrInsufficientFunds = errors.New("system: insufficient lamports")

	// ErrNotSystemOwned is returned when debiting an account another program owns.
	ErrNotSystemOwned = errors.New("system: source account is not system owned")

	// ErrLamportOverflow is returned when a credit would exceed u64.
	ErrLamportOverflow = errors.New("system: lamport balance overflow")
)

// Program is the native value transfer service.
type Program struct{}

// New creates the system program.
func New() *Program {
	return &Program{}
}

// Transfer debits from and credits to by exactly lamports inside tx.
// Missing destination accounts are created system-owned.
func (p *Program) Transfer(ctx context.Context, tx ledger.Tx, from, to domain.Address, lamports uint64) error {
	src, err := ledger.GetOrEmpty(ctx, tx, from)
	if err != nil {
		return fmt.Errorf("load %s: %w", from, err)
	}
	if src.Owner != domain.SystemProgramID {
		return fmt.Errorf("transfer from %s: %w", from, ErrNotSystemOwned)
	}
	if src.Lamports < lamports {
		return fmt.Errorf("transfer %d from %s (balance %d): %w", lamports, from, src.Lamports, ErrInsufficientFunds)
	}
	if from == to || lamports == 0 {
		return nil
	}

	dst, err := ledger.GetOrEmpty(ctx, tx, to)
	if err != nil {
		return fmt.Errorf("load %s: %w", to, err)
	}
	sum, carry := bits.Add64(dst.Lamports, lamports, 0)
	if carry != 0 {
		return fmt.Errorf("credit %s: %w", to, ErrLamportOverflow)
	}

	src.Lamports -= lamports
	dst.Lamports = sum
	if err := tx.Put(ctx, src); err != nil {
		return fmt.Errorf("debit %s: %w", from, err)
	}
	if err := tx.Put(ctx, dst); err != nil {
		return fmt.Errorf("credit %s: %w", to, err)
	}
	return nil
}

// Airdrop mints lamports into addr. Only development tooling and tests use it.
func (p *Program) Airdrop(ctx context.Context, tx ledger.Tx, addr domain.Address, lamports uint64) error {
	acct, err := ledger.GetOrEmpty(ctx, tx, addr)
	if err != nil {
		return fmt.Errorf("load %s: %w", addr, err)
	}
	sum, carry := bits.Add64(acct.Lamports, lamports, 0)
	if carry != 0 {
		return fmt.Errorf("airdrop %s: %w", addr, ErrLamportOverflow)
	}
	acct.Lamports = sum
	return tx.Put(ctx, acct)
}

// Balance returns the lamports held by addr; zero for unknown addresses.
func (p *Program) Balance(ctx context.Context, tx ledger.Tx, addr domain.Address) (uint64, error) {
	acct, err := ledger.GetOrEmpty(ctx, tx, addr)
	if err != nil {
		return 0, err
	}
	return acct.Lamports, nil
}
