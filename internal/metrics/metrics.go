package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "squaresync_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec

	reportTotal   *prometheus.CounterVec
	reportLatency *prometheus.HistogramVec

	importedOrders prometheus.Counter
	importedItems  prometheus.Counter
	skippedOrders  prometheus.Counter
)

// Init registers the service metrics once per process.
func Init() {
	registerOnce.Do(func() {
		upstreamRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "upstream_requests_total",
				Help: "Total Square API requests by endpoint and status code",
			},
			[]string{"endpoint", "code"},
		)
		upstreamLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "upstream_latency_seconds",
				Help:    "Square API latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		)

		reportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_runs_total",
				Help: "Total report runs by kind and result",
			},
			[]string{"kind", "result"},
		)
		reportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_latency_seconds",
				Help:    "Report run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind", "result"},
		)

		importedOrders = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "imported_orders_total",
				Help: "Total orders saved by the sales import",
			},
		)
		importedItems = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "imported_items_total",
				Help: "Total order line items saved by the sales import",
			},
		)
		skippedOrders = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "skipped_orders_total",
				Help: "Total orders the sales import failed to save",
			},
		)

		prometheus.MustRegister(
			upstreamRequests,
			upstreamLatency,
			reportTotal,
			reportLatency,
			importedOrders,
			importedItems,
			skippedOrders,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveUpstream(endpoint string, code string, duration time.Duration) {
	if upstreamRequests == nil {
		return
	}
	upstreamRequests.WithLabelValues(endpoint, code).Inc()
	upstreamLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func ObserveReport(kind, result string, duration time.Duration) {
	if reportTotal == nil {
		return
	}
	reportTotal.WithLabelValues(kind, result).Inc()
	reportLatency.WithLabelValues(kind, result).Observe(duration.Seconds())
}

func AddImported(orders, items int) {
	if importedOrders == nil {
		return
	}
	importedOrders.Add(float64(orders))
	importedItems.Add(float64(items))
}

func IncSkippedOrder() {
	if skippedOrders == nil {
		return
	}
	skippedOrders.Inc()
}

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
