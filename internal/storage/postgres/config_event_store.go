package postgres

import (
	"context"
	"fmt"
	"strconv"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/storage"
)

// ConfigEventStore implements storage.ConfigEventStore using PostgreSQL.
type ConfigEventStore struct {
	pool *Pool
}

// NewConfigEventStore creates a new ConfigEventStore.
func NewConfigEventStore(pool *Pool) *ConfigEventStore {
	return &ConfigEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ConfigEventStore = (*ConfigEventStore)(nil)

// Insert adds a new event. Returns ErrDuplicateKey if tx_id exists.
func (s *ConfigEventStore) Insert(ctx context.Context, e *domain.ConfigEvent) error {
	if e == nil || e.TxID == "" || e.Kind == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO config_events (tx_id, kind, signer, price, treasury, owner, timestamp_ms)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		e.TxID, string(e.Kind), e.Signer.String(),
		u64(e.Config.Price), e.Config.Treasury.String(), e.Config.Owner.String(),
		e.TimestampMs,
	)
	if err != nil {
		if IsDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert config event: %w", err)
	}
	return nil
}

// List retrieves all events, ordered by timestamp ASC.
func (s *ConfigEventStore) List(ctx context.Context) ([]*domain.ConfigEvent, error) {
	query := `
		SELECT tx_id, kind, signer, price::text, treasury, owner, timestamp_ms
		FROM config_events
		ORDER BY timestamp_ms ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query config events: %w", err)
	}
	defer rows.Close()

	var result []*domain.ConfigEvent
	for rows.Next() {
		var e domain.ConfigEvent
		var kind, signer, price, treasury, owner string

		if err := rows.Scan(&e.TxID, &kind, &signer, &price, &treasury, &owner, &e.TimestampMs); err != nil {
			return nil, fmt.Errorf("scan config event: %w", err)
		}

		e.Kind = domain.ConfigEventKind(kind)
		if e.Signer, err = domain.ParseAddress(signer); err != nil {
			return nil, fmt.Errorf("signer: %w", err)
		}
		if e.Config.Treasury, err = domain.ParseAddress(treasury); err != nil {
			return nil, fmt.Errorf("treasury: %w", err)
		}
		if e.Config.Owner, err = domain.ParseAddress(owner); err != nil {
			return nil, fmt.Errorf("owner: %w", err)
		}
		if e.Config.Price, err = strconv.ParseUint(price, 10, 64); err != nil {
			return nil, fmt.Errorf("parse price %q: %w", price, err)
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate config events: %w", err)
	}
	return result, nil
}
