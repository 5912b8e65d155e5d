// Package journal keeps an off-ledger record of committed sale activity:
// purchases, configuration changes, and volume rollups.
package journal

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/idhash"
	"solana-token-sale/internal/observability"
	"solana-token-sale/internal/sale"
	"solana-token-sale/internal/storage"
)

// Recorder writes committed sale operations to the journal stores.
// Write failures are logged and counted; the ledger is the source of truth.
type Recorder struct {
	purchases storage.PurchaseStore
	events    storage.ConfigEventStore
	metrics   *observability.Metrics
	log       *logrus.Entry
	now       func() time.Time
}

// NewRecorder creates a Recorder. metrics may be nil.
func NewRecorder(purchases storage.PurchaseStore, events storage.ConfigEventStore, metrics *observability.Metrics, log logrus.FieldLogger) *Recorder {
	return &Recorder{
		purchases: purchases,
		events:    events,
		metrics:   metrics,
		log:       log.WithField("component", "journal"),
		now:       time.Now,
	}
}

var _ sale.Recorder = (*Recorder)(nil)

// RecordPurchase stores a committed purchase.
func (r *Recorder) RecordPurchase(ctx context.Context, rc *sale.Receipt) {
	p := &domain.Purchase{
		PurchaseID:  idhash.ComputePurchaseID(rc.TxID, rc.Buyer),
		TxID:        rc.TxID,
		Buyer:       rc.Buyer,
		Treasury:    rc.Treasury,
		Lamports:    rc.Lamports,
		Tokens:      rc.Tokens,
		Price:       rc.Price,
		BuyerTotal:  rc.BuyerTotal,
		TimestampMs: rc.Timestamp.UnixMilli(),
		CreatedAt:   r.now().UnixMilli(),
	}

	err := r.purchases.Insert(ctx, p)
	r.observe("purchases", rc.TxID, err)
}

// RecordConfigChange stores a committed configuration change.
func (r *Recorder) RecordConfigChange(ctx context.Context, e *domain.ConfigEvent) {
	err := r.events.Insert(ctx, e)
	r.observe("config_events", e.TxID, err)
}

func (r *Recorder) observe(store, txID string, err error) {
	if r.metrics != nil {
		r.metrics.RecordJournalWrite(store, err)
	}
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"store": store,
			"tx_id": txID,
		}).WithError(err).Error("journal write failed")
	}
}
