package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for ParaLedger.
type Metrics struct {
	// --- Engine ---
	OpsApplied     *prometheus.CounterVec
	OpsRejected    *prometheus.CounterVec
	OpDuration     *prometheus.HistogramVec
	EngineSequence prometheus.Gauge

	// --- Treasury ---
	PoolBalance       prometheus.Gauge
	MinBalance        prometheus.Gauge
	PremiumsCollected prometheus.Gauge
	ClaimsPaid        prometheus.Gauge
	RewardsPaid       prometheus.Gauge
	ActivePolicies    prometheus.Gauge

	// --- Payouts ---
	PayoutsPublished prometheus.Counter
	PayoutFailures   prometheus.Counter

	// --- Channel & Backpressure ---
	ChannelSize        *prometheus.GaugeVec
	ChannelCapacity    *prometheus.GaugeVec
	ChannelUtilization *prometheus.GaugeVec
	PublishDrops       prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistBatchSize     prometheus.Histogram
	PersistBatchDur      prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
	PersistLastSequence  prometheus.Gauge

	// --- Snapshot ---
	SnapshotTaken    prometheus.Counter
	SnapshotDuration prometheus.Histogram
	SnapshotLastSeq  prometheus.Gauge

	// --- Publishing ---
	EventsPublished *prometheus.CounterVec

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.00001, 0.000025, 0.00005, 0.0001, 0.00025,
		0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		// Engine
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "para_ops_applied_total",
			Help: "Operations successfully applied",
		}, []string{"op"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "para_ops_rejected_total",
			Help: "Operations rejected (authorization, lifecycle, solvency)",
		}, []string{"op", "reason"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "para_op_duration_seconds",
			Help:    "Time to apply a single operation",
			Buckets: opBuckets,
		}, []string{"op"}),

		EngineSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "para_engine_sequence",
			Help: "Current global event sequence number",
		}),

		// Treasury
		PoolBalance: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "para_pool_balance",
			Help: "Current pooled funds balance",
		}),

		MinBalance: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "para_min_contract_balance",
			Help: "Current solvency floor for owner withdrawals",
		}),

		PremiumsCollected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "para_premiums_collected",
			Help: "Cumulative premiums collected",
		}),

		ClaimsPaid: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "para_claims_paid",
			Help: "Cumulative claim payouts",
		}),

		RewardsPaid: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "para_rewards_paid",
			Help: "Cumulative reward payouts",
		}),

		ActivePolicies: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "para_active_policies",
			Help: "Policies currently flagged active",
		}),

		// Payouts
		PayoutsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "para_payouts_published_total",
			Help: "Payout instructions handed to the transfer sink",
		}),

		PayoutFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "para_payout_failures_total",
			Help: "Transfer sink failures (operation rolled back)",
		}),

		// Channel & Backpressure
		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "para_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "para_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "para_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "para_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		// Persistence
		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "para_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "para_persist_batch_size",
			Help:    "Events per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "para_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "para_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "para_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		// Snapshot
		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "para_snapshot_taken_total",
			Help: "Snapshots created",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "para_snapshot_duration_seconds",
			Help:    "Snapshot creation time",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
		}),

		SnapshotLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "para_snapshot_last_sequence",
			Help: "Sequence of last snapshot",
		}),

		// Publishing
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "para_events_published_total",
			Help: "Events published to NATS",
		}, []string{"event_type"}),

		// Query API
		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "para_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "para_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "para_query_errors_total",
			Help: "Query errors",
		}, []string{"endpoint", "code"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
