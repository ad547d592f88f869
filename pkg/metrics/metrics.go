// Package metrics holds the Prometheus collectors of the scanner. They are
// served by the monitor on /metrics.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BusTransactionsTotal counts register transactions by kind (read, write).
	BusTransactionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vcxoscan_bus_transactions_total",
		Help: "Total number of register bus transactions",
	}, []string{"kind"})
	// BusErrorsTotal counts failed bus exchanges.
	BusErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vcxoscan_bus_errors_total",
		Help: "Total number of failed register bus exchanges",
	})
	// BusExchangeSeconds observes the round-trip time of one exchange.
	BusExchangeSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vcxoscan_bus_exchange_seconds",
		Help:    "Round-trip time of register bus exchanges in seconds",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	})
	// StepDurationSeconds observes the duration of one ladder step.
	StepDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vcxoscan_step_duration_seconds",
		Help:    "Duration of one sweep step (write, settle and reads) in seconds",
		Buckets: prometheus.LinearBuckets(1, 1, 10),
	})
	// LastOffsetPPM is the most recent frequency offset reading.
	LastOffsetPPM = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vcxoscan_last_offset_ppm",
		Help: "Most recent frequency offset reading in ppm",
	})
	// LastControlValue is the DAC code of the current step.
	LastControlValue = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vcxoscan_last_control_value",
		Help: "DAC control value of the current sweep step",
	})

	registerOnce sync.Once
)

// InitMetrics registers all collectors with the default registry.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			BusTransactionsTotal,
			BusErrorsTotal,
			BusExchangeSeconds,
			StepDurationSeconds,
			LastOffsetPPM,
			LastControlValue,
		)
	})
}

// Handler returns an HTTP handler that exposes the registered metrics.
func Handler() http.Handler {
	InitMetrics()
	return promhttp.Handler()
}

// RecordExchange tracks one bus exchange of n transactions.
func RecordExchange(read bool, n int, d time.Duration, err error) {
	InitMetrics()
	if err != nil {
		BusErrorsTotal.Inc()
		return
	}
	kind := "write"
	if read {
		kind = "read"
	}
	BusTransactionsTotal.WithLabelValues(kind).Add(float64(n))
	BusExchangeSeconds.Observe(d.Seconds())
}

// RecordSample tracks one converted counter reading.
func RecordSample(value uint32, ppm float64) {
	InitMetrics()
	LastControlValue.Set(float64(value))
	LastOffsetPPM.Set(ppm)
}

// RecordStep tracks a completed ladder step.
func RecordStep(d time.Duration) {
	InitMetrics()
	if d < 0 {
		d = 0
	}
	StepDurationSeconds.Observe(d.Seconds())
}
