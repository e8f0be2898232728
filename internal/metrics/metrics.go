// Package metrics declares the Prometheus collectors exported by the
// persistence layer: per-operation query counters and latencies, index wait
// latencies and the connection state.
package metrics

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platzigram_db_queries_total",
			Help: "Total number of repository operations",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "platzigram_db_query_duration_seconds",
			Help:    "Repository operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBIndexWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "platzigram_db_index_wait_duration_seconds",
			Help:    "Time spent waiting for secondary indexes to become ready",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"index"},
	)

	DBConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "platzigram_db_connected",
			Help: "1 while the connection manager is connected, 0 otherwise",
		},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "platzigram_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// ObserveQuery records one repository operation that started at start and
// finished with err.
func ObserveQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DBQueryTotal.WithLabelValues(operation, status).Inc()
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveIndexWait records how long a wait on index took.
func ObserveIndexWait(index string, start time.Time) {
	DBIndexWaitDuration.WithLabelValues(index).Observe(time.Since(start).Seconds())
}

// SetConnected updates the connection state gauge.
func SetConnected(connected bool) {
	if connected {
		DBConnected.Set(1)
		return
	}
	DBConnected.Set(0)
}

// UpdateDBStats copies pool statistics from db.
func UpdateDBStats(db *sql.DB) {
	DBConnectionsOpen.Set(float64(db.Stats().OpenConnections))
}
