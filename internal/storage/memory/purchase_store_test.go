package memory

import (
	"context"
	"errors"
	"testing"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/storage"
)

func addr(b byte) domain.Address {
	var a domain.Address
	a[0] = b
	return a
}

func TestPurchaseStore_InsertAndGet(t *testing.T) {
	store := NewPurchaseStore()
	ctx := context.Background()

	p := &domain.Purchase{
		PurchaseID:  "p1",
		TxID:        "tx1",
		Buyer:       addr(1),
		Lamports:    1_000_000_000,
		Tokens:      1_000_000,
		Price:       1_000_000_000,
		BuyerTotal:  1_000_000,
		TimestampMs: 1000,
	}

	if err := store.Insert(ctx, p); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Tokens != 1_000_000 {
		t.Errorf("Tokens mismatch: got %d, want %d", got.Tokens, 1_000_000)
	}

	// Returned value is a copy
	got.Tokens = 0
	again, _ := store.GetByID(ctx, "p1")
	if again.Tokens != 1_000_000 {
		t.Errorf("store mutated through returned pointer")
	}
}

func TestPurchaseStore_DuplicateKey(t *testing.T) {
	store := NewPurchaseStore()
	ctx := context.Background()

	p := &domain.Purchase{PurchaseID: "p1", Buyer: addr(1)}
	if err := store.Insert(ctx, p); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, p)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestPurchaseStore_InvalidInput(t *testing.T) {
	store := NewPurchaseStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}
	if err := store.Insert(ctx, &domain.Purchase{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty id, got %v", err)
	}
}

func TestPurchaseStore_NotFound(t *testing.T) {
	store := NewPurchaseStore()

	_, err := store.GetByID(context.Background(), "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPurchaseStore_GetByBuyer(t *testing.T) {
	store := NewPurchaseStore()
	ctx := context.Background()

	purchases := []*domain.Purchase{
		{PurchaseID: "p3", Buyer: addr(1), TimestampMs: 3000},
		{PurchaseID: "p1", Buyer: addr(1), TimestampMs: 1000},
		{PurchaseID: "p2", Buyer: addr(2), TimestampMs: 2000},
	}
	for _, p := range purchases {
		if err := store.Insert(ctx, p); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetByBuyer(ctx, addr(1))
	if err != nil {
		t.Fatalf("GetByBuyer failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 purchases, got %d", len(got))
	}
	if got[0].PurchaseID != "p1" || got[1].PurchaseID != "p3" {
		t.Errorf("Expected timestamp order [p1 p3], got [%s %s]", got[0].PurchaseID, got[1].PurchaseID)
	}
}

func TestPurchaseStore_GetByTimeRange(t *testing.T) {
	store := NewPurchaseStore()
	ctx := context.Background()

	for i, ts := range []int64{1000, 2000, 3000, 4000} {
		p := &domain.Purchase{PurchaseID: string(rune('a' + i)), Buyer: addr(1), TimestampMs: ts}
		if err := store.Insert(ctx, p); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetByTimeRange(ctx, 2000, 3000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 purchases in range, got %d", len(got))
	}
	if got[0].TimestampMs != 2000 || got[1].TimestampMs != 3000 {
		t.Errorf("Unexpected range result: %d, %d", got[0].TimestampMs, got[1].TimestampMs)
	}
}
