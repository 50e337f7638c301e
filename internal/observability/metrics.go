package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec
	toolErrorsTotal       *prometheus.CounterVec

	modelCallTotal    *prometheus.CounterVec
	modelCallDuration *prometheus.HistogramVec
	modelRetriesTotal *prometheus.CounterVec

	agentRunTotal      *prometheus.CounterVec
	agentRunIterations prometheus.Histogram

	pluginRunTotal    *prometheus.CounterVec
	pluginRunDuration *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			toolErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_errors_total",
					Help: "Total tool execution errors by tool and error kind.",
				},
				[]string{"tool", "kind"},
			),
			modelCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "model_call_total",
					Help: "Total decision service calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			modelCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "model_call_duration_seconds",
					Help:    "Decision service call duration in seconds by provider.",
					Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
				},
				[]string{"provider"},
			),
			modelRetriesTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "model_retries_total",
					Help: "Total retried decision service calls by provider.",
				},
				[]string{"provider"},
			),
			agentRunTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_run_total",
					Help: "Total turn loop runs by outcome.",
				},
				[]string{"outcome"},
			),
			agentRunIterations: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "agent_run_iterations",
					Help:    "Model turns consumed per turn loop run.",
					Buckets: []float64{1, 2, 5, 10, 15, 20, 25, 50},
				},
			),
			pluginRunTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "plugin_run_total",
					Help: "Total plugin invocations by agent and status.",
				},
				[]string{"agent", "status"},
			),
			pluginRunDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "plugin_run_duration_seconds",
					Help:    "Plugin invocation duration in seconds by agent.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"agent"},
			),
		}

		prometheus.MustRegister(
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.toolErrorsTotal,
			m.modelCallTotal,
			m.modelCallDuration,
			m.modelRetriesTotal,
			m.agentRunTotal,
			m.agentRunIterations,
			m.pluginRunTotal,
			m.pluginRunDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler serves the default prometheus registry.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

// RecordToolExecution counts one tool execution; status is "success" or an error kind.
func RecordToolExecution(tool string, duration time.Duration, status string) {
	m := getMetrics()
	label := status
	if status != "success" {
		label = "error"
		m.toolErrorsTotal.WithLabelValues(tool, status).Inc()
	}
	m.toolExecutionTotal.WithLabelValues(tool, label).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordModelCall(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.modelCallTotal.WithLabelValues(provider, status).Inc()
	m.modelCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordModelRetry(provider string) {
	getMetrics().modelRetriesTotal.WithLabelValues(provider).Inc()
}

func RecordAgentRun(outcome string, iterations int) {
	m := getMetrics()
	m.agentRunTotal.WithLabelValues(outcome).Inc()
	m.agentRunIterations.Observe(float64(iterations))
}

func RecordPluginRun(agentID string, duration time.Duration, status string) {
	m := getMetrics()
	m.pluginRunTotal.WithLabelValues(agentID, status).Inc()
	m.pluginRunDuration.WithLabelValues(agentID).Observe(duration.Seconds())
}

