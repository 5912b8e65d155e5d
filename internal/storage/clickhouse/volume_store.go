package clickhouse

import (
	"context"
	"fmt"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/storage"
)

// VolumeStore implements storage.VolumeStore using ClickHouse.
type VolumeStore struct {
	conn *Conn
}

// NewVolumeStore creates a new VolumeStore.
func NewVolumeStore(conn *Conn) *VolumeStore {
	return &VolumeStore{conn: conn}
}

// Compile-time interface check.
var _ storage.VolumeStore = (*VolumeStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate.
// MergeTree does not enforce keys, so duplicates are checked before the insert.
func (s *VolumeStore) InsertBulk(ctx context.Context, points []*domain.VolumePoint) error {
	if len(points) == 0 {
		return nil
	}

	type key struct {
		intervalSeconds int
		timestampMs     int64
	}
	seen := make(map[key]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.IntervalSeconds <= 0 || p.TimestampMs < 0 {
			return storage.ErrInvalidInput
		}
		k := key{p.IntervalSeconds, p.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, p := range points {
		exists, err := s.exists(ctx, p.IntervalSeconds, p.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO sale_volume (
			interval_seconds, timestamp_ms, lamports, tokens, purchase_count, unique_buyers
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			uint32(p.IntervalSeconds), uint64(p.TimestampMs),
			p.Lamports, p.Tokens, uint32(p.PurchaseCount), uint32(p.UniqueBuyers),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves points of one interval within [start, end] (inclusive).
func (s *VolumeStore) GetByTimeRange(ctx context.Context, intervalSeconds int, start, end int64) ([]*domain.VolumePoint, error) {
	if start < 0 {
		start = 0
	}
	if end < start {
		return nil, nil
	}

	query := `
		SELECT interval_seconds, timestamp_ms, lamports, tokens, purchase_count, unique_buyers
		FROM sale_volume
		WHERE interval_seconds = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, uint32(intervalSeconds), uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanVolume(rows)
}

func (s *VolumeStore) exists(ctx context.Context, intervalSeconds int, timestampMs int64) (bool, error) {
	query := `
		SELECT count(*) FROM sale_volume
		WHERE interval_seconds = ? AND timestamp_ms = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, uint32(intervalSeconds), uint64(timestampMs)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanVolume(rows chRows) ([]*domain.VolumePoint, error) {
	var points []*domain.VolumePoint

	for rows.Next() {
		var p domain.VolumePoint
		var intervalSeconds, purchaseCount, uniqueBuyers uint32
		var timestampMs uint64

		err := rows.Scan(
			&intervalSeconds, &timestampMs,
			&p.Lamports, &p.Tokens, &purchaseCount, &uniqueBuyers,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sale volume row: %w", err)
		}

		p.IntervalSeconds = int(intervalSeconds)
		p.TimestampMs = int64(timestampMs)
		p.PurchaseCount = int(purchaseCount)
		p.UniqueBuyers = int(uniqueBuyers)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale volume rows: %w", err)
	}

	return points, nil
}
