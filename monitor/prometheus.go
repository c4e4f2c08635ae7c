package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus exports the collector events as Prometheus metrics.
type Prometheus struct {
	cacheLookups    *prometheus.CounterVec
	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	coordinator     *prometheus.CounterVec
	taskRuns        *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
}

// NewPrometheus creates the metric vectors and registers them on reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelf",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by backend and result.",
		}, []string{"backend", "result"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelf",
			Name:      "provider_calls_total",
			Help:      "Remote provider calls by provider, operation and outcome.",
		}, []string{"provider", "op", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shelf",
			Name:      "provider_call_duration_seconds",
			Help:      "Remote provider call latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"provider", "op"}),
		coordinator: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelf",
			Name:      "coordinator_requests_total",
			Help:      "Async compute requests by kind and returned status.",
		}, []string{"kind", "status"}),
		taskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelf",
			Name:      "task_runs_total",
			Help:      "Background task executions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shelf",
			Name:      "task_duration_seconds",
			Help:      "Background task execution time.",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"kind"}),
	}

	for _, c := range []prometheus.Collector{
		p.cacheLookups, p.providerCalls, p.providerLatency,
		p.coordinator, p.taskRuns, p.taskDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) CacheLookup(backend string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cacheLookups.WithLabelValues(backend, result).Inc()
}

func (p *Prometheus) ProviderCall(provider, op string, err error, elapsed time.Duration) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	p.providerCalls.WithLabelValues(provider, op, outcome).Inc()
	p.providerLatency.WithLabelValues(provider, op).Observe(elapsed.Seconds())
}

func (p *Prometheus) CoordinatorRequest(kind, status string) {
	p.coordinator.WithLabelValues(kind, status).Inc()
}

func (p *Prometheus) TaskRun(kind, outcome string, elapsed time.Duration) {
	p.taskRuns.WithLabelValues(kind, outcome).Inc()
	p.taskDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}
