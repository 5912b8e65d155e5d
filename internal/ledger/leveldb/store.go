// Package leveldb is a persistent ledger.Store on goleveldb.
//
// Each ledger transaction maps onto a goleveldb Transaction, which holds
// the database write lock until it is committed or discarded.
package leveldb

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/ledger"
)

var accountPrefix = []byte("acct/")

// Store implements ledger.Store using LevelDB.
type Store struct {
	db *leveldb.DB
}

// Open creates or opens a LevelDB ledger at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a LevelDB ledger backed by memory storage.
func OpenInMemory() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open in-memory leveldb: %w", err)
	}
	return &Store{db: db}, nil
}

// Begin opens an exclusive LevelDB transaction.
func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tr, err := s.db.OpenTransaction()
	if err != nil {
		return nil, fmt.Errorf("open leveldb transaction: %w", err)
	}
	return &Tx{id: uuid.NewString(), tr: tr}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Tx wraps a goleveldb transaction.
type Tx struct {
	id   string
	tr   *leveldb.Transaction
	done bool
}

// ID returns the transaction id.
func (t *Tx) ID() string {
	return t.id
}

// Get reads an account, seeing this transaction's own writes.
func (t *Tx) Get(_ context.Context, addr domain.Address) (*domain.Account, error) {
	if t.done {
		return nil, ledger.ErrTxDone
	}
	buf, err := t.tr.Get(accountKey(addr), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account %s: %w", addr, err)
	}
	return ledger.DecodeAccount(addr, buf)
}

// Put writes an account into the transaction.
func (t *Tx) Put(_ context.Context, acct *domain.Account) error {
	if t.done {
		return ledger.ErrTxDone
	}
	if acct == nil {
		return ledger.ErrInvalidInput
	}
	if err := t.tr.Put(accountKey(acct.Address), ledger.EncodeAccount(acct), nil); err != nil {
		return fmt.Errorf("put account %s: %w", acct.Address, err)
	}
	return nil
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ledger.ErrTxDone
	}
	t.done = true
	if err := ctx.Err(); err != nil {
		t.tr.Discard()
		return err
	}
	if err := t.tr.Commit(); err != nil {
		t.tr.Discard()
		return fmt.Errorf("commit leveldb transaction: %w", err)
	}
	return nil
}

// Rollback discards the transaction.
func (t *Tx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.tr.Discard()
	return nil
}

func accountKey(addr domain.Address) []byte {
	key := make([]byte, 0, len(accountPrefix)+domain.AddressLength)
	key = append(key, accountPrefix...)
	return append(key, addr[:]...)
}

// Verify interface compliance at compile time.
var (
	_ ledger.Store = (*Store)(nil)
	_ ledger.Tx    = (*Tx)(nil)
)
