package memory

import (
	"context"
	"sort"
	"sync"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/storage"
)

// PurchaseStore is an in-memory implementation of storage.PurchaseStore.
type PurchaseStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Purchase // keyed by purchase_id
}

// NewPurchaseStore creates a new in-memory purchase store.
func NewPurchaseStore() *PurchaseStore {
	return &PurchaseStore{
		data: make(map[string]*domain.Purchase),
	}
}

// Compile-time interface check.
var _ storage.PurchaseStore = (*PurchaseStore)(nil)

// Insert adds a new purchase. Returns ErrDuplicateKey if purchase_id exists.
func (s *PurchaseStore) Insert(_ context.Context, p *domain.Purchase) error {
	if p == nil || p.PurchaseID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PurchaseID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *p
	s.data[p.PurchaseID] = &copy
	return nil
}

// GetByID retrieves a purchase by its ID. Returns ErrNotFound if not exists.
func (s *PurchaseStore) GetByID(_ context.Context, purchaseID string) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[purchaseID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *p
	return &copy, nil
}

// GetByBuyer retrieves all purchases of a buyer, ordered by timestamp ASC.
func (s *PurchaseStore) GetByBuyer(_ context.Context, buyer domain.Address) ([]*domain.Purchase, error) {
	return s.filter(func(p *domain.Purchase) bool { return p.Buyer == buyer }), nil
}

// GetByTimeRange retrieves purchases committed within [start, end] (inclusive).
func (s *PurchaseStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.Purchase, error) {
	return s.filter(func(p *domain.Purchase) bool {
		return p.TimestampMs >= start && p.TimestampMs <= end
	}), nil
}

func (s *PurchaseStore) filter(match func(*domain.Purchase) bool) []*domain.Purchase {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Purchase
	for _, p := range s.data {
		if match(p) {
			copy := *p
			result = append(result, &copy)
		}
	}

	// Sort by timestamp ASC, then purchase_id for stable order
	sort.Slice(result, func(i, j int) bool {
		if result[i].TimestampMs != result[j].TimestampMs {
			return result[i].TimestampMs < result[j].TimestampMs
		}
		return result[i].PurchaseID < result[j].PurchaseID
	})

	return result
}
