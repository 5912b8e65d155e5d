package journal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/observability"
	"solana-token-sale/internal/storage"
)

// Rollup aggregates journaled purchases into closed volume intervals.
type Rollup struct {
	purchases storage.PurchaseStore
	volume    storage.VolumeStore
	grace     time.Duration
	metrics   *observability.Metrics
	log       *logrus.Entry

	mu sync.Mutex
	// done holds, per interval, the end (ms, exclusive) of the last rolled up bucket.
	done map[int]int64
}

// NewRollup creates a Rollup. A bucket is rolled up only once grace has
// passed after its end, so purchases journaled after commit still count.
// metrics may be nil.
func NewRollup(purchases storage.PurchaseStore, volume storage.VolumeStore, grace time.Duration, metrics *observability.Metrics, log logrus.FieldLogger) *Rollup {
	return &Rollup{
		purchases: purchases,
		volume:    volume,
		grace:     grace,
		metrics:   metrics,
		log:       log.WithField("component", "rollup"),
		done:      make(map[int]int64),
	}
}

// RollupClosed stores every interval bucket that ended at or before
// upTo minus the grace period and has not been stored yet. Returns the
// number of points stored.
func (r *Rollup) RollupClosed(ctx context.Context, upTo time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := upTo.Add(-r.grace).UnixMilli()
	total := 0
	for _, interval := range Intervals {
		intervalMs := int64(interval) * 1000
		end := (cutoff / intervalMs) * intervalMs
		start := r.done[interval]
		if end <= start {
			continue
		}

		purchases, err := r.purchases.GetByTimeRange(ctx, start, end-1)
		if err != nil {
			return total, fmt.Errorf("load purchases [%d, %d): %w", start, end, err)
		}

		points := GenerateVolume(purchases, interval)
		stored, err := r.store(ctx, points)
		if err != nil {
			return total, fmt.Errorf("store %ds volume: %w", interval, err)
		}

		r.done[interval] = end
		total += stored
		if r.metrics != nil {
			r.metrics.RecordRollup(strconv.Itoa(interval), stored, upTo.Unix())
		}
		if stored > 0 {
			r.log.WithFields(logrus.Fields{
				"interval": interval,
				"points":   stored,
				"until_ms": end,
			}).Debug("volume rolled up")
		}
	}
	return total, nil
}

// store inserts points as one batch. When some already exist, from an earlier
// run against the same store, the rest are inserted one by one.
func (r *Rollup) store(ctx context.Context, points []*domain.VolumePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	err := r.volume.InsertBulk(ctx, points)
	if err == nil {
		return len(points), nil
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		return 0, err
	}

	stored := 0
	for _, p := range points {
		err := r.volume.InsertBulk(ctx, []*domain.VolumePoint{p})
		switch {
		case err == nil:
			stored++
		case errors.Is(err, storage.ErrDuplicateKey):
		default:
			return stored, err
		}
	}
	return stored, nil
}
