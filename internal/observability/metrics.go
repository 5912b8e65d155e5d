// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Sale metrics
	OperationsTotal  *prometheus.CounterVec
	OperationLatency *prometheus.HistogramVec
	TokensSold       prometheus.Counter
	LamportsRaised   prometheus.Counter
	BuyersCreated    prometheus.Counter
	CurrentPrice     prometheus.Gauge
	LedgerConflicts  prometheus.Counter

	// Journal metrics
	JournalWrites      *prometheus.CounterVec
	JournalErrors      *prometheus.CounterVec
	VolumePointsStored *prometheus.CounterVec

	// Cluster metrics
	RPCCallLatency      *prometheus.HistogramVec
	RPCErrors           *prometheus.CounterVec
	WatchedInstructions *prometheus.CounterVec
	WSReconnects        prometheus.Counter

	// Health metrics
	LastSuccessfulBuy    prometheus.Gauge
	LastSuccessfulRollup prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "token_sale"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Sale metrics
		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "operations_total",
			Help:      "Total number of sale operations by operation and result code",
		}, []string{"operation", "code"}),
		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "operation_latency_seconds",
			Help:      "Sale operation latency in seconds, including ledger commit",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		TokensSold: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "tokens_sold_total",
			Help:      "Total token base units transferred to buyers",
		}),
		LamportsRaised: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "lamports_raised_total",
			Help:      "Total lamports paid into the treasury",
		}),
		BuyersCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "buyers_created_total",
			Help:      "Total number of buyer records created",
		}),
		CurrentPrice: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "price_lamports",
			Help:      "Lamports per whole token at the last committed configuration",
		}),
		LedgerConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "conflicts_total",
			Help:      "Total number of transactions aborted by the ledger for conflicts",
		}),

		// Journal metrics
		JournalWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "writes_total",
			Help:      "Total number of journal records written by store",
		}, []string{"store"}),
		JournalErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "errors_total",
			Help:      "Total number of journal write failures by store",
		}, []string{"store"}),
		VolumePointsStored: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "volume_points_total",
			Help:      "Total number of volume points stored by interval",
		}, []string{"interval"}),

		// Cluster metrics
		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_errors_total",
			Help:      "Total number of failed Solana RPC calls",
		}, []string{"method"}),
		WatchedInstructions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "watched_instructions_total",
			Help:      "Sale program instructions seen in live logs",
		}, []string{"instruction"}),
		WSReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnects",
		}),

		// Health metrics
		LastSuccessfulBuy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_buy_timestamp",
			Help:      "Unix timestamp of last committed buy",
		}),
		LastSuccessfulRollup: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_rollup_timestamp",
			Help:      "Unix timestamp of last volume rollup",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordOperation records the outcome and latency of a sale operation.
func (m *Metrics) RecordOperation(operation, code string, seconds float64) {
	m.OperationsTotal.WithLabelValues(operation, code).Inc()
	m.OperationLatency.WithLabelValues(operation).Observe(seconds)
}

// RecordPurchase records a committed buy.
func (m *Metrics) RecordPurchase(lamports, tokens uint64, newBuyer bool, unixSeconds int64) {
	m.LamportsRaised.Add(float64(lamports))
	m.TokensSold.Add(float64(tokens))
	if newBuyer {
		m.BuyersCreated.Inc()
	}
	m.LastSuccessfulBuy.Set(float64(unixSeconds))
}

// RecordPrice updates the current price gauge.
func (m *Metrics) RecordPrice(price uint64) {
	m.CurrentPrice.Set(float64(price))
}

// RecordLedgerConflict increments the ledger conflict counter.
func (m *Metrics) RecordLedgerConflict() {
	m.LedgerConflicts.Inc()
}

// RecordJournalWrite records a journal write for store.
func (m *Metrics) RecordJournalWrite(store string, err error) {
	if err != nil {
		m.JournalErrors.WithLabelValues(store).Inc()
		return
	}
	m.JournalWrites.WithLabelValues(store).Inc()
}

// RecordRollup records stored volume points per interval label.
func (m *Metrics) RecordRollup(interval string, points int, unixSeconds int64) {
	m.VolumePointsStored.WithLabelValues(interval).Add(float64(points))
	m.LastSuccessfulRollup.Set(float64(unixSeconds))
}

// RecordRPCLatency records RPC call latency.
func (m *Metrics) RecordRPCLatency(method string, seconds float64, err error) {
	m.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		m.RPCErrors.WithLabelValues(method).Inc()
	}
}

// RecordInstruction counts a sale instruction seen in live logs.
func (m *Metrics) RecordInstruction(name string) {
	m.WatchedInstructions.WithLabelValues(name).Inc()
}

// RecordWSReconnect counts a WebSocket reconnect.
func (m *Metrics) RecordWSReconnect() {
	m.WSReconnects.Inc()
}
