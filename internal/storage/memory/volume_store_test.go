package memory

import (
	"context"
	"errors"
	"testing"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/storage"
)

func TestVolumeStore_InsertBulkAndQuery(t *testing.T) {
	store := NewVolumeStore()
	ctx := context.Background()

	points := []*domain.VolumePoint{
		{TimestampMs: 120000, IntervalSeconds: 60, Lamports: 30, Tokens: 3, PurchaseCount: 1, UniqueBuyers: 1},
		{TimestampMs: 60000, IntervalSeconds: 60, Lamports: 20, Tokens: 2, PurchaseCount: 2, UniqueBuyers: 1},
		{TimestampMs: 0, IntervalSeconds: 300, Lamports: 50, Tokens: 5, PurchaseCount: 3, UniqueBuyers: 1},
	}
	if err := store.InsertBulk(ctx, points); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByTimeRange(ctx, 60, 0, 200000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 one-minute points, got %d", len(got))
	}
	if got[0].TimestampMs != 60000 || got[1].TimestampMs != 120000 {
		t.Errorf("Expected ascending timestamps, got %d, %d", got[0].TimestampMs, got[1].TimestampMs)
	}
}

func TestVolumeStore_DuplicateFailsBatch(t *testing.T) {
	store := NewVolumeStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.VolumePoint{{TimestampMs: 0, IntervalSeconds: 60}}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.VolumePoint{
		{TimestampMs: 60000, IntervalSeconds: 60},
		{TimestampMs: 0, IntervalSeconds: 60},
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	// Nothing from the failed batch was stored
	got, _ := store.GetByTimeRange(ctx, 60, 0, 1<<40)
	if len(got) != 1 {
		t.Errorf("Expected 1 point after failed batch, got %d", len(got))
	}
}

func TestVolumeStore_IntraBatchDuplicate(t *testing.T) {
	store := NewVolumeStore()

	err := store.InsertBulk(context.Background(), []*domain.VolumePoint{
		{TimestampMs: 0, IntervalSeconds: 60},
		{TimestampMs: 0, IntervalSeconds: 60},
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestVolumeStore_InvalidInterval(t *testing.T) {
	store := NewVolumeStore()

	err := store.InsertBulk(context.Background(), []*domain.VolumePoint{{TimestampMs: 0}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
