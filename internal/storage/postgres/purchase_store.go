package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/storage"
)

// PurchaseStore implements storage.PurchaseStore using PostgreSQL.
type PurchaseStore struct {
	pool *Pool
}

// NewPurchaseStore creates a new PurchaseStore.
func NewPurchaseStore(pool *Pool) *PurchaseStore {
	return &PurchaseStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PurchaseStore = (*PurchaseStore)(nil)

const purchaseColumns = `
	purchase_id, tx_id, buyer, treasury,
	lamports::text, tokens::text, price::text, buyer_total::text,
	timestamp_ms, created_at
`

// Insert adds a new purchase. Returns ErrDuplicateKey if purchase_id exists.
func (s *PurchaseStore) Insert(ctx context.Context, p *domain.Purchase) error {
	if p == nil || p.PurchaseID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO purchases (
			purchase_id, tx_id, buyer, treasury,
			lamports, tokens, price, buyer_total,
			timestamp_ms, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5::numeric, $6::numeric, $7::numeric, $8::numeric,
			$9, $10
		)
	`

	_, err := s.pool.Exec(ctx, query,
		p.PurchaseID, p.TxID, p.Buyer.String(), p.Treasury.String(),
		u64(p.Lamports), u64(p.Tokens), u64(p.Price), u64(p.BuyerTotal),
		p.TimestampMs, p.CreatedAt,
	)
	if err != nil {
		if IsDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

// GetByID retrieves a purchase by its ID. Returns ErrNotFound if not exists.
func (s *PurchaseStore) GetByID(ctx context.Context, purchaseID string) (*domain.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE purchase_id = $1`

	p, err := scanPurchase(s.pool.QueryRow(ctx, query, purchaseID))
	if err != nil {
		if IsNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get purchase: %w", err)
	}
	return p, nil
}

// GetByBuyer retrieves all purchases of a buyer, ordered by timestamp ASC.
func (s *PurchaseStore) GetByBuyer(ctx context.Context, buyer domain.Address) ([]*domain.Purchase, error) {
	query := `SELECT ` + purchaseColumns + `
		FROM purchases
		WHERE buyer = $1
		ORDER BY timestamp_ms ASC, purchase_id ASC
	`

	rows, err := s.pool.Query(ctx, query, buyer.String())
	if err != nil {
		return nil, fmt.Errorf("query purchases by buyer: %w", err)
	}
	defer rows.Close()

	return scanPurchases(rows)
}

// GetByTimeRange retrieves purchases committed within [start, end] (inclusive).
func (s *PurchaseStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Purchase, error) {
	query := `SELECT ` + purchaseColumns + `
		FROM purchases
		WHERE timestamp_ms >= $1 AND timestamp_ms <= $2
		ORDER BY timestamp_ms ASC, purchase_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query purchases by time range: %w", err)
	}
	defer rows.Close()

	return scanPurchases(rows)
}

func scanPurchase(row pgx.Row) (*domain.Purchase, error) {
	var p domain.Purchase
	var buyer, treasury string
	var lamports, tokens, price, buyerTotal string

	err := row.Scan(
		&p.PurchaseID, &p.TxID, &buyer, &treasury,
		&lamports, &tokens, &price, &buyerTotal,
		&p.TimestampMs, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if p.Buyer, err = domain.ParseAddress(buyer); err != nil {
		return nil, fmt.Errorf("buyer: %w", err)
	}
	if p.Treasury, err = domain.ParseAddress(treasury); err != nil {
		return nil, fmt.Errorf("treasury: %w", err)
	}
	for _, f := range []struct {
		dst *uint64
		src string
	}{
		{&p.Lamports, lamports},
		{&p.Tokens, tokens},
		{&p.Price, price},
		{&p.BuyerTotal, buyerTotal},
	} {
		if *f.dst, err = strconv.ParseUint(f.src, 10, 64); err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", f.src, err)
		}
	}

	return &p, nil
}

func scanPurchases(rows pgx.Rows) ([]*domain.Purchase, error) {
	var result []*domain.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchases: %w", err)
	}
	return result, nil
}

// u64 renders an amount for a NUMERIC(20,0) parameter.
func u64(v uint64) string {
	return strconv.FormatUint(v, 10)
}
