// Package memory is an in-process ledger.Store.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/ledger"
)

// Store is an in-memory implementation of ledger.Store.
// One transaction runs at a time; Begin waits for the previous one to finish.
type Store struct {
	writer chan struct{} // single-slot semaphore held for a transaction's lifetime

	mu       sync.RWMutex
	accounts map[domain.Address]*domain.Account
}

// NewStore creates an empty in-memory ledger.
func NewStore() *Store {
	return &Store{
		writer:   make(chan struct{}, 1),
		accounts: make(map[domain.Address]*domain.Account),
	}
}

// Begin starts a transaction, waiting for any running one to finish.
func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	select {
	case s.writer <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return &Tx{
		id:     uuid.NewString(),
		store:  s,
		writes: make(map[domain.Address]*domain.Account),
	}, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// Snapshot returns a copy of the committed account, for inspection in tests and tools.
func (s *Store) Snapshot(addr domain.Address) (*domain.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[addr]
	if !ok {
		return nil, false
	}
	return acct.Clone(), true
}

// Len returns the number of committed accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// Tx is a buffered transaction over Store. Writes stay private until Commit.
type Tx struct {
	id     string
	store  *Store
	writes map[domain.Address]*domain.Account
	done   bool
}

// ID returns the transaction id.
func (t *Tx) ID() string {
	return t.id
}

// Get returns a copy of the account, reading this transaction's writes first.
func (t *Tx) Get(_ context.Context, addr domain.Address) (*domain.Account, error) {
	if t.done {
		return nil, ledger.ErrTxDone
	}

	if acct, ok := t.writes[addr]; ok {
		return acct.Clone(), nil
	}

	t.store.mu.RLock()
	acct, ok := t.store.accounts[addr]
	t.store.mu.RUnlock()
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	return acct.Clone(), nil
}

// Put buffers a write.
func (t *Tx) Put(_ context.Context, acct *domain.Account) error {
	if t.done {
		return ledger.ErrTxDone
	}
	if acct == nil {
		return ledger.ErrInvalidInput
	}
	t.writes[acct.Address] = acct.Clone()
	return nil
}

// Commit applies buffered writes and releases the writer slot.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ledger.ErrTxDone
	}
	if err := ctx.Err(); err != nil {
		t.finish()
		return err
	}

	t.store.mu.Lock()
	for addr, acct := range t.writes {
		t.store.accounts[addr] = acct
	}
	t.store.mu.Unlock()

	t.finish()
	return nil
}

// Rollback drops buffered writes and releases the writer slot.
func (t *Tx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *Tx) finish() {
	t.done = true
	t.writes = nil
	<-t.store.writer
}

// Verify interface compliance at compile time.
var (
	_ ledger.Store = (*Store)(nil)
	_ ledger.Tx    = (*Tx)(nil)
)
