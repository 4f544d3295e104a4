package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"overlaycore/internal/analysis/overlay"
)

// Metrics holds the Prometheus metrics for overlayd.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	RequestsTotal *prometheus.CounterVec   // labels: route, code
	RequestDur    *prometheus.HistogramVec // labels: route

	// Analysis
	AnalyzeDur      prometheus.Histogram
	CandlesAnalyzed prometheus.Counter
	CandlesTrimmed  prometheus.Counter
	DetectorRuns    *prometheus.CounterVec // labels: detector

	// Store
	StoredWindows prometheus.Gauge
}

// NewMetrics registers all metrics on a private registry, plus the Go and
// process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "overlayd_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		RequestDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "overlayd_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),

		AnalyzeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "overlayd_analyze_duration_seconds",
			Help:    "Engine latency per analysis call",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		CandlesAnalyzed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "overlayd_candles_analyzed_total",
			Help: "Candles fed through the engine after trimming",
		}),
		CandlesTrimmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "overlayd_candles_trimmed_total",
			Help: "Candles dropped by the window cap",
		}),
		DetectorRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "overlayd_detector_runs_total",
			Help: "Detector results returned, by detector",
		}, []string{"detector"}),

		StoredWindows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "overlayd_stored_windows",
			Help: "Symbol/interval windows held in memory",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestsTotal,
		m.RequestDur,
		m.AnalyzeDur,
		m.CandlesAnalyzed,
		m.CandlesTrimmed,
		m.DetectorRuns,
		m.StoredWindows,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records count and latency per matched route. Unmatched paths
// share the "unmatched" label.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDur.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// ObserveAnalyze records one successful engine call. Safe on a nil receiver.
func (m *Metrics) ObserveAnalyze(res *overlay.Result, elapsed time.Duration) {
	if m == nil || res == nil {
		return
	}
	m.AnalyzeDur.Observe(elapsed.Seconds())
	m.CandlesAnalyzed.Add(float64(res.Candles))
	m.CandlesTrimmed.Add(float64(res.Trimmed))
	for _, d := range res.Detectors {
		m.DetectorRuns.WithLabelValues(string(d)).Inc()
	}
}

// SetStoredWindows updates the window gauge. Safe on a nil receiver.
func (m *Metrics) SetStoredWindows(n int) {
	if m == nil {
		return
	}
	m.StoredWindows.Set(float64(n))
}
