package storage

import (
	"context"

	"solana-token-sale/internal/domain"
)

// PurchaseStore provides access to purchases storage.
type PurchaseStore interface {
	// Insert adds a new purchase. Returns ErrDuplicateKey if purchase_id exists.
	Insert(ctx context.Context, p *domain.Purchase) error

	// GetByID retrieves a purchase by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, purchaseID string) (*domain.Purchase, error)

	// GetByBuyer retrieves all purchases of a buyer, ordered by timestamp ASC.
	GetByBuyer(ctx context.Context, buyer domain.Address) ([]*domain.Purchase, error)

	// GetByTimeRange retrieves purchases committed within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Purchase, error)
}

// ConfigEventStore provides access to config_events storage.
type ConfigEventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if tx_id exists.
	Insert(ctx context.Context, e *domain.ConfigEvent) error

	// List retrieves all events, ordered by timestamp ASC.
	List(ctx context.Context) ([]*domain.ConfigEvent, error)
}

// VolumeStore provides access to sale_volume storage.
type VolumeStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate (interval_seconds, timestamp_ms).
	InsertBulk(ctx context.Context, points []*domain.VolumePoint) error

	// GetByTimeRange retrieves points of one interval within [start, end] (inclusive),
	// ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, intervalSeconds int, start, end int64) ([]*domain.VolumePoint, error)
}
