// Package metrics provides Prometheus metrics export for the chat pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exports pipeline metrics in Prometheus format.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Chat metrics
	chatRequests *prometheus.CounterVec
	chatLatency  *prometheus.HistogramVec
	chatActive   prometheus.Gauge

	// Compound-query pipeline metrics
	planTasks   prometheus.Histogram
	taskLatency *prometheus.HistogramVec
	taskErrors  *prometheus.CounterVec

	// Agent call metrics
	agentCalls   *prometheus.CounterVec
	agentLatency prometheus.Histogram
	agentErrors  *prometheus.CounterVec

	// LLM token metrics
	llmTokensUsed *prometheus.CounterVec
	llmLatency    *prometheus.HistogramVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.chatRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "libra",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total number of chat requests by final route",
		},
		[]string{"route", "status"},
	)

	e.chatLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "libra",
			Subsystem: "chat",
			Name:      "latency_seconds",
			Help:      "Chat request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"route"},
	)

	e.chatActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "libra",
			Subsystem: "chat",
			Name:      "active",
			Help:      "Number of chat requests currently in flight",
		},
	)

	e.planTasks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "libra",
			Subsystem: "pipeline",
			Name:      "plan_tasks",
			Help:      "Number of tasks per compound-query plan",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 7, 8},
		},
	)

	e.taskLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "libra",
			Subsystem: "pipeline",
			Name:      "task_latency_seconds",
			Help:      "Per-task execution latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"executor"},
	)

	e.taskErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "libra",
			Subsystem: "pipeline",
			Name:      "task_errors_total",
			Help:      "Total number of failed tasks",
		},
		[]string{"executor"},
	)

	e.agentCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "libra",
			Subsystem: "agent",
			Name:      "calls_total",
			Help:      "Total number of agent plan_and_run calls",
		},
		[]string{"status"},
	)

	e.agentLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "libra",
			Subsystem: "agent",
			Name:      "latency_seconds",
			Help:      "Agent call latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
	)

	e.agentErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "libra",
			Subsystem: "agent",
			Name:      "errors_total",
			Help:      "Total number of agent call errors",
		},
		[]string{"error_type"},
	)

	e.llmTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "libra",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"model", "token_type"},
	)

	e.llmLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "libra",
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "LLM request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"model", "provider"},
	)

	registry.MustRegister(
		e.chatRequests,
		e.chatLatency,
		e.chatActive,
		e.planTasks,
		e.taskLatency,
		e.taskErrors,
		e.agentCalls,
		e.agentLatency,
		e.agentErrors,
		e.llmTokensUsed,
		e.llmLatency,
	)

	return e
}

// RecordChatRequest records a completed chat request.
func (e *PrometheusExporter) RecordChatRequest(route string, latency time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	e.chatRequests.WithLabelValues(route, status).Inc()
	e.chatLatency.WithLabelValues(route).Observe(latency.Seconds())
}

// ChatStarted marks a chat request in flight. The returned func marks it done.
func (e *PrometheusExporter) ChatStarted() func() {
	e.chatActive.Inc()
	return e.chatActive.Dec
}

// RecordPlan records the task count of a built plan.
func (e *PrometheusExporter) RecordPlan(taskCount int) {
	e.planTasks.Observe(float64(taskCount))
}

// RecordTask records one task execution.
func (e *PrometheusExporter) RecordTask(executor string, latency time.Duration, success bool) {
	e.taskLatency.WithLabelValues(executor).Observe(latency.Seconds())
	if !success {
		e.taskErrors.WithLabelValues(executor).Inc()
	}
}

// RecordAgentCall records one agent call.
func (e *PrometheusExporter) RecordAgentCall(latency time.Duration, success bool, errorType string) {
	status := "success"
	if !success {
		status = "error"
		if errorType != "" {
			e.agentErrors.WithLabelValues(errorType).Inc()
		}
	}
	e.agentCalls.WithLabelValues(status).Inc()
	e.agentLatency.Observe(latency.Seconds())
}

// RecordLLMTokens records LLM token usage.
func (e *PrometheusExporter) RecordLLMTokens(model, tokenType string, count int) {
	e.llmTokensUsed.WithLabelValues(model, tokenType).Add(float64(count))
}

// RecordLLMLatency records LLM request latency.
func (e *PrometheusExporter) RecordLLMLatency(model, provider string, latency time.Duration) {
	e.llmLatency.WithLabelValues(model, provider).Observe(latency.Seconds())
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// GetRegistry returns the Prometheus registry.
func (e *PrometheusExporter) GetRegistry() *prometheus.Registry {
	return e.registry
}
