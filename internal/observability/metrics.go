package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements the vista.Metrics observer on top of prometheus. A nil
// *Metrics is safe to call everywhere, so wiring stays optional.
type Metrics struct {
	upstreamRequests *prometheus.CounterVec
	upstreamRetries  *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	blockedFields    prometheus.Counter
	mappingFailures  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_upstream_requests_total",
			Help: "Upstream CRM requests by endpoint and status class",
		}, []string{"endpoint", "status"}),
		upstreamRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_upstream_retries_total",
			Help: "Upstream CRM retries by endpoint",
		}, []string{"endpoint"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crm_upstream_latency_seconds",
			Help:    "Upstream CRM request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_cache_hits_total",
			Help: "Cache hits by cache name",
		}, []string{"cache"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_cache_misses_total",
			Help: "Cache misses by cache name",
		}, []string{"cache"}),
		blockedFields: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crm_blocked_fields_total",
			Help: "Schema fields blocked after upstream rejection",
		}),
		mappingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crm_record_mapping_failures_total",
			Help: "Raw records that failed domain mapping and were skipped",
		}),
	}
	reg.MustRegister(m.upstreamRequests, m.upstreamRetries, m.upstreamLatency,
		m.cacheHits, m.cacheMisses, m.blockedFields, m.mappingFailures)
	return m
}

func (m *Metrics) UpstreamRequest(endpoint, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(endpoint, status).Inc()
	m.upstreamLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) UpstreamRetry(endpoint string) {
	if m == nil {
		return
	}
	m.upstreamRetries.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) CacheHit(cache string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(cache).Inc()
}

func (m *Metrics) CacheMiss(cache string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(cache).Inc()
}

func (m *Metrics) FieldBlocked(string) {
	if m == nil {
		return
	}
	m.blockedFields.Inc()
}

func (m *Metrics) MappingFailure(string) {
	if m == nil {
		return
	}
	m.mappingFailures.Inc()
}

// Start exposes /metrics on a dedicated port, off the rate-limited app
// router.
func Start(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() { _ = http.ListenAndServe(":"+port, mux) }()
}
