package memory

import (
	"context"
	"sort"
	"sync"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/storage"
)

type volumeKey struct {
	intervalSeconds int
	timestampMs     int64
}

// VolumeStore is an in-memory implementation of storage.VolumeStore.
type VolumeStore struct {
	mu   sync.RWMutex
	data map[volumeKey]*domain.VolumePoint
}

// NewVolumeStore creates a new in-memory volume store.
func NewVolumeStore() *VolumeStore {
	return &VolumeStore{
		data: make(map[volumeKey]*domain.VolumePoint),
	}
}

// Compile-time interface check.
var _ storage.VolumeStore = (*VolumeStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate.
func (s *VolumeStore) InsertBulk(_ context.Context, points []*domain.VolumePoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[volumeKey]struct{}, len(points))

	// First pass: check for duplicates (existing + intra-batch)
	for _, p := range points {
		if p == nil || p.IntervalSeconds <= 0 {
			return storage.ErrInvalidInput
		}
		key := volumeKey{p.IntervalSeconds, p.TimestampMs}

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, p := range points {
		copy := *p
		s.data[volumeKey{p.IntervalSeconds, p.TimestampMs}] = &copy
	}

	return nil
}

// GetByTimeRange retrieves points of one interval within [start, end] (inclusive).
func (s *VolumeStore) GetByTimeRange(_ context.Context, intervalSeconds int, start, end int64) ([]*domain.VolumePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.VolumePoint
	for key, p := range s.data {
		if key.intervalSeconds == intervalSeconds && p.TimestampMs >= start && p.TimestampMs <= end {
			copy := *p
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}
