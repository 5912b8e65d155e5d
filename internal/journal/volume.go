package journal

import (
	"sort"

	"solana-token-sale/internal/domain"
)

// Intervals are the supported volume aggregation intervals in seconds.
var Intervals = []int{
	domain.VolumeInterval1Min,
	domain.VolumeInterval5Min,
	domain.VolumeInterval1Hour,
}

// GenerateVolume aggregates purchases into volume buckets by interval.
//
// Interval alignment: floor(timestamp_ms / interval_ms) * interval_ms
// Aggregation per interval_start:
//   - lamports = SUM(lamports)
//   - tokens = SUM(tokens)
//   - purchase_count = COUNT(*)
//   - unique_buyers = COUNT(DISTINCT buyer)
func GenerateVolume(purchases []*domain.Purchase, intervalSeconds int) []*domain.VolumePoint {
	if len(purchases) == 0 || intervalSeconds <= 0 {
		return nil
	}

	intervalMs := int64(intervalSeconds) * 1000

	buckets := make(map[int64]*domain.VolumePoint)
	buyers := make(map[int64]map[domain.Address]struct{})

	for _, p := range purchases {
		intervalStart := (p.TimestampMs / intervalMs) * intervalMs

		point, ok := buckets[intervalStart]
		if !ok {
			point = &domain.VolumePoint{
				TimestampMs:     intervalStart,
				IntervalSeconds: intervalSeconds,
			}
			buckets[intervalStart] = point
			buyers[intervalStart] = make(map[domain.Address]struct{})
		}

		point.Lamports += p.Lamports
		point.Tokens += p.Tokens
		point.PurchaseCount++
		buyers[intervalStart][p.Buyer] = struct{}{}
	}

	result := make([]*domain.VolumePoint, 0, len(buckets))
	for start, point := range buckets {
		point.UniqueBuyers = len(buyers[start])
		result = append(result, point)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result
}

// GenerateAllVolume generates volume points for all supported intervals.
func GenerateAllVolume(purchases []*domain.Purchase) []*domain.VolumePoint {
	var result []*domain.VolumePoint
	for _, interval := range Intervals {
		result = append(result, GenerateVolume(purchases, interval)...)
	}
	return result
}
