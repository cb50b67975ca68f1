package telemetry

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	vendorFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vendor_fetch_duration_seconds",
			Help:    "Duration of upstream vendor cost fetches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"vendor", "outcome"},
	)

	reconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_total",
			Help: "Reconciliations by vendor and outcome (cached, fetched, error)",
		},
		[]string{"vendor", "outcome"},
	)

	batchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_items_total",
			Help: "Batch reconciliation items by result",
		},
		[]string{"result"},
	)
)

func ObserveVendorFetch(vendor string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	vendorFetchDuration.WithLabelValues(vendor, outcome).Observe(d.Seconds())
}

func RecordReconcile(vendor, outcome string) {
	reconcileTotal.WithLabelValues(vendor, outcome).Inc()
}

func RecordBatch(success, failed int) {
	batchItemsTotal.WithLabelValues("success").Add(float64(success))
	batchItemsTotal.WithLabelValues("failed").Add(float64(failed))
}

// RegisterPgxPoolMetrics exposes pgx connection pool statistics as Prometheus gauges.
func RegisterPgxPoolMetrics(pool *pgxpool.Pool) {
	prometheus.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pgxpool_acquired_conns",
			Help: "Number of currently acquired connections in the pool",
		}, func() float64 {
			return float64(pool.Stat().AcquiredConns())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pgxpool_total_conns",
			Help: "Total number of connections in the pool",
		}, func() float64 {
			return float64(pool.Stat().TotalConns())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pgxpool_idle_conns",
			Help: "Number of idle connections in the pool",
		}, func() float64 {
			return float64(pool.Stat().IdleConns())
		}),
	)
}

// NewMetricsServer serves /metrics on its own listener so scrapes bypass
// auth and rate limiting.
func NewMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
