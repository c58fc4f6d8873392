// Package metrics exposes unit-of-work and stock metrics to Prometheus.
package metrics

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/warp/inventory-engine/inventory"
)

const namespace = "inventory"

// Recorder implements inventory.Observer.
type Recorder struct {
	registry *prometheus.Registry

	units    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	lowStock prometheus.Gauge
}

var _ inventory.Observer = (*Recorder)(nil)

// New creates a Recorder with its own registry, including the Go runtime
// and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_total",
			Help:      "Finished units of work by operation and outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "unit_duration_seconds",
			Help:      "Unit of work latency including slot wait.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		lowStock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "low_stock_products",
			Help:      "Products below the low-stock threshold at the last audit.",
		}),
	}
	r.registry.MustRegister(
		r.units,
		r.duration,
		r.lowStock,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveUnit records one finished unit of work.
func (r *Recorder) ObserveUnit(op string, err error, elapsed time.Duration) {
	r.units.WithLabelValues(op, inventory.Classify(err)).Inc()
	r.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// SetLowStock records the size of the latest low-stock audit.
func (r *Recorder) SetLowStock(n int) {
	r.lowStock.Set(float64(n))
}

// WatchDB exports connection pool statistics for db.
func (r *Recorder) WatchDB(db *sql.DB, name string) error {
	return r.registry.Register(collectors.NewDBStatsCollector(db, name))
}

// Registry returns the registry backing Handler.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler(logger logrus.FieldLogger) http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		ErrorLog:      logger,
		ErrorHandling: promhttp.ContinueOnError,
	})
}
