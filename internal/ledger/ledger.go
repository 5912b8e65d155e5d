// Package ledger defines the account store the sale program runs against.
//
// Every public sale operation executes inside exactly one Tx. Backends
// serialize writers, so a committed transaction is all-or-nothing and a
// rolled back one leaves no trace.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"solana-token-sale/internal/domain"
)

var (
	// ErrAccountNotFound is returned when an address holds no account.
	ErrAccountNotFound = errors.New("ledger: account not found")

	// ErrAccountExists is returned when allocating over an existing account.
	ErrAccountExists = errors.New("ledger: account already exists")

	// ErrConflict is returned when the backend aborted the transaction because a
	// concurrent transaction touched the same accounts. The caller may resubmit.
	ErrConflict = errors.New("ledger: transaction conflict")

	// ErrTxDone is returned when using a transaction after Commit or Rollback.
	ErrTxDone = errors.New("ledger: transaction already finished")

	// ErrInvalidInput is returned for nil accounts and similar misuse.
	ErrInvalidInput = errors.New("ledger: invalid input")
)

// Store opens transactions over the account set.
type Store interface {
	// Begin starts a transaction. It may block until a conflicting writer finishes.
	Begin(ctx context.Context) (Tx, error)

	// Close releases backend resources.
	Close() error
}

// Tx is a unit of atomic work against the store.
type Tx interface {
	// ID identifies the transaction; stable across Commit.
	ID() string

	// Get returns a copy of the account. Returns ErrAccountNotFound if absent.
	Get(ctx context.Context, addr domain.Address) (*domain.Account, error)

	// Put creates or replaces an account. The account is copied.
	Put(ctx context.Context, acct *domain.Account) error

	// Commit makes all writes durable.
	Commit(ctx context.Context) error

	// Rollback discards all writes. Safe to call after Commit (no-op).
	Rollback(ctx context.Context) error
}

// Allocate creates a zeroed record of space bytes owned by owner.
// Fails with ErrAccountExists if the address is taken.
func Allocate(ctx context.Context, tx Tx, addr, owner domain.Address, space int) (*domain.Account, error) {
	if space < 0 {
		return nil, fmt.Errorf("allocate %s: %w: negative space", addr, ErrInvalidInput)
	}
	_, err := tx.Get(ctx, addr)
	switch {
	case err == nil:
		return nil, fmt.Errorf("allocate %s: %w", addr, ErrAccountExists)
	case !errors.Is(err, ErrAccountNotFound):
		return nil, fmt.Errorf("allocate %s: %w", addr, err)
	}

	acct := &domain.Account{
		Address: addr,
		Owner:   owner,
		Data:    make([]byte, space),
	}
	if err := tx.Put(ctx, acct); err != nil {
		return nil, fmt.Errorf("allocate %s: %w", addr, err)
	}
	return acct, nil
}

// Read returns the data of an existing record.
func Read(ctx context.Context, tx Tx, addr domain.Address) ([]byte, error) {
	acct, err := tx.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	return acct.Data, nil
}

// Write replaces the data of an existing record, keeping owner and balance.
func Write(ctx context.Context, tx Tx, addr domain.Address, data []byte) error {
	acct, err := tx.Get(ctx, addr)
	if err != nil {
		return err
	}
	acct.Data = data
	return tx.Put(ctx, acct)
}

// GetOrEmpty returns the account at addr, or an empty system-owned account
// if none exists yet. Lamport transfers to fresh addresses rely on this.
func GetOrEmpty(ctx context.Context, tx Tx, addr domain.Address) (*domain.Account, error) {
	acct, err := tx.Get(ctx, addr)
	if errors.Is(err, ErrAccountNotFound) {
		return &domain.Account{Address: addr, Owner: domain.SystemProgramID}, nil
	}
	return acct, err
}

// Run executes fn inside a transaction, committing on success and rolling back
// on error. Returns the transaction id.
func Run(ctx context.Context, store Store, fn func(tx Tx) error) (string, error) {
	tx, err := store.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return tx.ID(), err
	}

	if err := tx.Commit(ctx); err != nil {
		return tx.ID(), fmt.Errorf("commit transaction: %w", err)
	}
	return tx.ID(), nil
}
