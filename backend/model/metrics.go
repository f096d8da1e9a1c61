package model

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsHook records retry outcomes on a prometheus registry. It satisfies
// resilience.RetryHook and can be attached via WithRetryHooks.
type MetricsHook struct {
	provider string
	attempts *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration prometheus.Histogram
}

func NewMetricsHook(provider string, registry *prometheus.Registry) *MetricsHook {
	if registry == nil {
		return nil
	}

	hook := &MetricsHook{
		provider: provider,
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_retry_attempts_total",
				Help: "Total number of retried provider attempts by error kind",
			},
			[]string{"provider", "kind"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_call_failures_total",
				Help: "Total number of provider calls that exhausted retries",
			},
			[]string{"provider", "kind"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "provider_call_duration_seconds",
				Help:    "Duration of successful provider calls including retries",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
		),
	}

	registry.MustRegister(hook.attempts, hook.failures, hook.duration)
	return hook
}

func (h *MetricsHook) OnRetryAttempt(ctx context.Context, attempt uint, err error, nextDelay time.Duration) {
	if h == nil {
		return
	}
	h.attempts.WithLabelValues(h.provider, errorKindLabel(err)).Inc()
}

func (h *MetricsHook) OnRetrySuccess(ctx context.Context, attempts uint, totalDuration time.Duration) {
	if h == nil {
		return
	}
	h.duration.Observe(totalDuration.Seconds())
}

func (h *MetricsHook) OnRetryFailure(ctx context.Context, err error, attempts uint, totalDuration time.Duration) {
	if h == nil {
		return
	}
	h.failures.WithLabelValues(h.provider, errorKindLabel(err)).Inc()
}

func errorKindLabel(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return string(pe.Kind)
	}
	return "unknown"
}
