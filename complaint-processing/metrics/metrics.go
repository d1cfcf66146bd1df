// Package metrics exposes Prometheus counters for task execution, backend
// attempts and caller fallbacks. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "complaint_tasks"

type Metrics struct {
	registry  *prometheus.Registry
	tasks     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	attempts  *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
}

// New registers the collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Tasks executed by workers, by task name and final status.",
		}, []string{"task", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Wall time of task execution on a worker.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_attempts_total",
			Help:      "Backend call attempts made by the retrying executor, by operation and result.",
		}, []string{"op", "result"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "caller_fallbacks_total",
			Help:      "Calls served by the direct backend path because the task queue was unavailable.",
		}, []string{"task"}),
	}
	m.registry.MustRegister(m.tasks, m.duration, m.attempts, m.fallbacks)
	return m
}

func (m *Metrics) TaskFinished(task, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(task, status).Inc()
	m.duration.WithLabelValues(task).Observe(elapsed.Seconds())
}

func (m *Metrics) Attempt(op, result string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(op, result).Inc()
}

func (m *Metrics) Fallback(task string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(task).Inc()
}

// Registry is exposed for tests and for embedding into other handlers
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
