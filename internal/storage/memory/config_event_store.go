package memory

import (
	"context"
	"sync"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/storage"
)

// ConfigEventStore is an in-memory implementation of storage.ConfigEventStore.
// Events are kept in insertion order.
type ConfigEventStore struct {
	mu     sync.RWMutex
	events []*domain.ConfigEvent
	seen   map[string]struct{} // tx ids
}

// NewConfigEventStore creates a new in-memory config event store.
func NewConfigEventStore() *ConfigEventStore {
	return &ConfigEventStore{
		seen: make(map[string]struct{}),
	}
}

// Compile-time interface check.
var _ storage.ConfigEventStore = (*ConfigEventStore)(nil)

// Insert adds a new event. Returns ErrDuplicateKey if tx_id exists.
func (s *ConfigEventStore) Insert(_ context.Context, e *domain.ConfigEvent) error {
	if e == nil || e.TxID == "" || e.Kind == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[e.TxID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *e
	s.events = append(s.events, &copy)
	s.seen[e.TxID] = struct{}{}
	return nil
}

// List retrieves all events, ordered by timestamp ASC.
func (s *ConfigEventStore) List(_ context.Context) ([]*domain.ConfigEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ConfigEvent, 0, len(s.events))
	for _, e := range s.events {
		copy := *e
		result = append(result, &copy)
	}
	return result, nil
}
