package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_RecordOperation(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordOperation("buy", "OK", 0.01)
	m.RecordOperation("buy", "OK", 0.02)
	m.RecordOperation("buy", "NOT_ENOUGH_SOL", 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("buy", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("buy", "NOT_ENOUGH_SOL")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.OperationLatency))
}

func TestMetrics_RecordPurchase(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordPurchase(1_000_000_000, 1_000_000, true, 1700000000)
	m.RecordPurchase(500_000_000, 500_000, false, 1700000060)

	assert.Equal(t, 1_500_000_000.0, testutil.ToFloat64(m.LamportsRaised))
	assert.Equal(t, 1_500_000.0, testutil.ToFloat64(m.TokensSold))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BuyersCreated))
	assert.Equal(t, 1700000060.0, testutil.ToFloat64(m.LastSuccessfulBuy))
}

func TestMetrics_Journal(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordJournalWrite("purchases", nil)
	m.RecordJournalWrite("purchases", errors.New("down"))
	m.RecordRollup("60", 3, 1700000000)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JournalWrites.WithLabelValues("purchases")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JournalErrors.WithLabelValues("purchases")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.VolumePointsStored.WithLabelValues("60")))
}

func TestMetrics_Cluster(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordRPCLatency("getSlot", 0.1, nil)
	m.RecordRPCLatency("getSlot", 0.1, errors.New("timeout"))
	m.RecordInstruction("Buy")
	m.RecordWSReconnect()
	m.RecordPrice(1_000_000_000)
	m.RecordLedgerConflict()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCErrors.WithLabelValues("getSlot")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WatchedInstructions.WithLabelValues("Buy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WSReconnects))
	assert.Equal(t, 1e9, testutil.ToFloat64(m.CurrentPrice))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerConflicts))
}
