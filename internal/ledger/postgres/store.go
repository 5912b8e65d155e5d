// Package postgres is a ledger.Store on PostgreSQL.
//
// Transactions run at SERIALIZABLE isolation and lock the rows they read.
// A serialization failure surfaces as ledger.ErrConflict; nothing is retried here.
package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/ledger"
	pgstore "solana-token-sale/internal/storage/postgres"
)

// Store implements ledger.Store using the ledger_accounts table.
type Store struct {
	pool *pgstore.Pool
}

// NewStore creates a new Store. The pool is owned by the caller.
func NewStore(pool *pgstore.Pool) *Store {
	return &Store{pool: pool}
}

// Begin starts a serializable transaction.
func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("begin ledger transaction: %w", err)
	}
	return &Tx{id: uuid.NewString(), tx: tx}, nil
}

// Close is a no-op; the pool outlives the store.
func (s *Store) Close() error {
	return nil
}

// Tx wraps a pgx transaction.
type Tx struct {
	id   string
	tx   pgx.Tx
	done bool
}

// ID returns the transaction id.
func (t *Tx) ID() string {
	return t.id
}

// Get reads and locks an account row.
func (t *Tx) Get(ctx context.Context, addr domain.Address) (*domain.Account, error) {
	if t.done {
		return nil, ledger.ErrTxDone
	}

	query := `
		SELECT owner, lamports::text, data
		FROM ledger_accounts
		WHERE address = $1
		FOR UPDATE
	`

	var owner, data []byte
	var lamports string
	err := t.tx.QueryRow(ctx, query, addr[:]).Scan(&owner, &lamports, &data)
	if err != nil {
		if pgstore.IsNotFoundError(err) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, wrap(fmt.Sprintf("get account %s", addr), err)
	}

	acct := &domain.Account{Address: addr, Data: data}
	if acct.Owner, err = domain.AddressFromBytes(owner); err != nil {
		return nil, fmt.Errorf("get account %s: %w", addr, err)
	}
	if acct.Lamports, err = strconv.ParseUint(lamports, 10, 64); err != nil {
		return nil, fmt.Errorf("get account %s: parse lamports: %w", addr, err)
	}
	if acct.Data == nil {
		acct.Data = []byte{}
	}
	return acct, nil
}

// Put upserts an account row.
func (t *Tx) Put(ctx context.Context, acct *domain.Account) error {
	if t.done {
		return ledger.ErrTxDone
	}
	if acct == nil {
		return ledger.ErrInvalidInput
	}

	query := `
		INSERT INTO ledger_accounts (address, owner, lamports, data)
		VALUES ($1, $2, $3::numeric, $4)
		ON CONFLICT (address) DO UPDATE SET
			owner = EXCLUDED.owner,
			lamports = EXCLUDED.lamports,
			data = EXCLUDED.data,
			updated_at = now()
	`

	data := acct.Data
	if data == nil {
		data = []byte{}
	}

	_, err := t.tx.Exec(ctx, query,
		acct.Address[:],
		acct.Owner[:],
		strconv.FormatUint(acct.Lamports, 10),
		data,
	)
	if err != nil {
		return wrap(fmt.Sprintf("put account %s", acct.Address), err)
	}
	return nil
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ledger.ErrTxDone
	}
	t.done = true
	if err := t.tx.Commit(ctx); err != nil {
		return wrap("commit", err)
	}
	return nil
}

// Rollback rolls the transaction back.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// wrap maps serialization failures and racing inserts onto ledger.ErrConflict.
func wrap(op string, err error) error {
	if pgstore.IsSerializationError(err) || pgstore.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w: %v", op, ledger.ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Compile-time interface check.
var (
	_ ledger.Store = (*Store)(nil)
	_ ledger.Tx    = (*Tx)(nil)
)
