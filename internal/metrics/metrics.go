package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lifely"

// Collector exposes Prometheus metrics for a pipeline run. A nil *Collector
// is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	inferenceTotal    *prometheus.CounterVec
	inferenceDuration *prometheus.HistogramVec
	inferenceTokens   *prometheus.CounterVec
	throttleWait      prometheus.Histogram
	cacheLookups      *prometheus.CounterVec
	phaseDuration     *prometheus.HistogramVec
	batchesTotal      *prometheus.CounterVec
	warningsTotal     *prometheus.CounterVec
}

// NewCollector constructs a collector on a private registry.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		inferenceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "requests_total",
			Help:      "Inference attempts by model and outcome.",
		}, []string{"model", "outcome"}),
		inferenceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for inference attempts.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 90, 120},
		}, []string{"model"}),
		inferenceTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "tokens_total",
			Help:      "Tokens consumed by direction (prompt or completion).",
		}, []string{"model", "direction"}),
		throttleWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "throttle_wait_seconds",
			Help:      "Time callers spent waiting for a rate limiter slot.",
			Buckets:   []float64{0, 1, 5, 10, 20, 30, 60, 120, 300},
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Enrichment cache lookups by map and result.",
		}, []string{"map", "result"}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "phase_duration_seconds",
			Help:      "Wall-clock duration of each pipeline phase.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"phase"}),
		batchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "batches_total",
			Help:      "Enrichment batches by phase and outcome.",
		}, []string{"phase", "outcome"}),
		warningsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "warnings_total",
			Help:      "Degradation warnings recorded by phase.",
		}, []string{"phase"}),
	}

	collectors := []prometheus.Collector{
		c.inferenceTotal,
		c.inferenceDuration,
		c.inferenceTokens,
		c.throttleWait,
		c.cacheLookups,
		c.phaseDuration,
		c.batchesTotal,
		c.warningsTotal,
	}
	for _, col := range collectors {
		if err := registry.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveInference records one inference attempt.
func (c *Collector) ObserveInference(model, outcome string, duration time.Duration, promptTokens, completionTokens int) {
	if c == nil {
		return
	}
	c.inferenceTotal.WithLabelValues(model, outcome).Inc()
	c.inferenceDuration.WithLabelValues(model).Observe(duration.Seconds())
	if promptTokens > 0 {
		c.inferenceTokens.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		c.inferenceTokens.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}

// ObserveThrottleWait records how long a caller waited for a slot.
func (c *Collector) ObserveThrottleWait(wait time.Duration) {
	if c == nil {
		return
	}
	c.throttleWait.Observe(wait.Seconds())
}

// CacheLookup records a cache hit or miss for the named map.
func (c *Collector) CacheLookup(mapName string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(mapName, result).Inc()
}

// ObservePhase records the duration of a pipeline phase.
func (c *Collector) ObservePhase(phase string, duration time.Duration) {
	if c == nil {
		return
	}
	c.phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// BatchDone records a finished enrichment batch.
func (c *Collector) BatchDone(phase string, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.batchesTotal.WithLabelValues(phase, outcome).Inc()
}

// Warning records a degradation warning for phase.
func (c *Collector) Warning(phase string) {
	if c == nil {
		return
	}
	c.warningsTotal.WithLabelValues(phase).Inc()
}
