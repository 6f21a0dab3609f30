// Package metrics holds the prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var BuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "healpipe_build_duration_seconds",
	Help:    "Duration of table builds in seconds",
	Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
}, []string{"kind"})

var RowsBuilt = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "healpipe_rows_built_total",
	Help: "Rows turned into polygons",
}, []string{"kind"})

var BuildFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "healpipe_build_failures_total",
	Help: "Builds that ended with an error",
}, []string{"kind"})

var BytesTransferred = promauto.NewCounter(prometheus.CounterOpts{
	Name: "healpipe_transferred_bytes_total",
	Help: "Buffer bytes handed over from workers",
})

var WorkersBusy = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "healpipe_workers_busy",
	Help: "Workers currently building a table",
})
