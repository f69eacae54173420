package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ioclens/internal/indicator"
)

const namespace = "ioclens"

// Analysis outcomes recorded on url_analyses_total.
const (
	ResultOK      = "ok"
	ResultEmpty   = "empty"
	ResultInvalid = "invalid"
)

type Metrics struct {
	registry *prometheus.Registry

	extractions prometheus.Counter
	indicators  *prometheus.CounterVec
	analyses    *prometheus.CounterVec
	flags       prometheus.Counter
	rateLimited prometheus.Counter
	duration    *prometheus.HistogramVec
}

// New registers the service collectors plus Go runtime and process
// collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		extractions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Number of completed indicator extractions.",
		}),
		indicators: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indicators_total",
			Help:      "Number of indicators extracted, by kind.",
		}, []string{"kind"}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "url_analyses_total",
			Help:      "Number of URL decompositions, by result.",
		}, []string{"result"}),
		flags: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "url_flags_total",
			Help:      "Number of structural red flags raised by URL analysis.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Number of HTTP requests rejected by the rate limiter.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Analyzer call latency, by method.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		m.extractions,
		m.indicators,
		m.analyses,
		m.flags,
		m.rateLimited,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	for _, k := range indicator.Kinds {
		m.indicators.WithLabelValues(string(k))
	}
	for _, r := range []string{ResultOK, ResultEmpty, ResultInvalid} {
		m.analyses.WithLabelValues(r)
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveExtraction(s indicator.IndicatorSet) {
	m.extractions.Inc()
	for _, k := range indicator.Kinds {
		m.indicators.WithLabelValues(string(k)).Add(float64(len(s.Values(k))))
	}
}

func (m *Metrics) ObserveAnalysis(result string, flagCount int) {
	m.analyses.WithLabelValues(result).Inc()
	if flagCount > 0 {
		m.flags.Add(float64(flagCount))
	}
}

func (m *Metrics) ObserveRateLimited() {
	m.rateLimited.Inc()
}

func (m *Metrics) ObserveDuration(method string, since time.Time) {
	m.duration.WithLabelValues(method).Observe(time.Since(since).Seconds())
}
