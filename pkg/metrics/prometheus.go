// Package metrics provides Prometheus-based recording for provider calls and
// correction cycles, plus a query service for aggregating recorded data.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"autoqa/pkg/llm"
)

// PrometheusRecorder implements llm.Recorder and records cycle-level
// counters alongside the per-request provider metrics.
type PrometheusRecorder struct {
	requestsTotal   *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	fallbackTotal   *prometheus.CounterVec

	iterationsTotal   *prometheus.CounterVec
	fixesTotal        *prometheus.CounterVec
	cycleDuration     *prometheus.HistogramVec
	failuresRemaining *prometheus.GaugeVec
}

// NewPrometheusRecorder creates a recorder registered on the default
// registry. Construct at most once per process.
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total number of LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status", "error_type"},
		),
		tokensTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_tokens_total",
				Help: "Total number of tokens used in LLM requests",
			},
			[]string{"provider", "model", "type"},
		),
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_request_duration_seconds",
				Help:    "Duration of LLM requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "model"},
		),
		fallbackTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_fallback_total",
				Help: "Total number of fallbacks away from a provider",
			},
			[]string{"from_provider"},
		),
		iterationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cycle_iterations_total",
				Help: "Total correction iterations by outcome",
			},
			[]string{"outcome"},
		),
		fixesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cycle_fixes_total",
				Help: "Total proposed fixes by strategy and disposition",
			},
			[]string{"strategy", "disposition"},
		),
		cycleDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cycle_duration_seconds",
				Help:    "End-to-end correction cycle duration in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"termination"},
		),
		failuresRemaining: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cycle_failures_remaining",
				Help: "Failing tests remaining after the most recent iteration",
			},
			[]string{"cycle_id"},
		),
	}
}

// ObserveGenerate records one provider attempt. Satisfies llm.Recorder.
func (p *PrometheusRecorder) ObserveGenerate(provider, model string, usage llm.Usage, success bool, errorType string, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	p.requestsTotal.WithLabelValues(provider, model, status, errorType).Inc()

	if success {
		p.tokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(usage.PromptTokens))
		p.tokensTotal.WithLabelValues(provider, model, "completion").Add(float64(usage.CompletionTokens))
	}
	p.requestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// IncFallback records one fallback away from a failed provider. Satisfies
// llm.Recorder.
func (p *PrometheusRecorder) IncFallback(fromProvider string) {
	p.fallbackTotal.WithLabelValues(fromProvider).Inc()
}

// ObserveIteration records one completed correction iteration.
func (p *PrometheusRecorder) ObserveIteration(improved bool) {
	outcome := "no_improvement"
	if improved {
		outcome = "improved"
	}
	p.iterationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveFix records one proposed fix and whether it was applied or rejected.
func (p *PrometheusRecorder) ObserveFix(strategy string, applied bool) {
	disposition := "rejected"
	if applied {
		disposition = "applied"
	}
	p.fixesTotal.WithLabelValues(strategy, disposition).Inc()
}

// ObserveCycle records a finished cycle's duration by termination reason.
func (p *PrometheusRecorder) ObserveCycle(termination string, duration time.Duration) {
	p.cycleDuration.WithLabelValues(termination).Observe(duration.Seconds())
}

// SetFailuresRemaining updates the remaining-failure gauge for a cycle.
func (p *PrometheusRecorder) SetFailuresRemaining(cycleID string, count int) {
	p.failuresRemaining.WithLabelValues(cycleID).Set(float64(count))
}
