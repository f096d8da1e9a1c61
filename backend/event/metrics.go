package event

import "github.com/prometheus/client_golang/prometheus"

type routerMetrics struct {
	published *prometheus.CounterVec
	delivered *prometheus.CounterVec
	dropped   *prometheus.CounterVec
}

func NewRouterMetrics(registry *prometheus.Registry) *routerMetrics {
	if registry == nil {
		return nil
	}

	metrics := &routerMetrics{
		published: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_events_published_total",
				Help: "Total number of events published by event type",
			},
			[]string{"event_type"},
		),
		delivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_events_delivered_total",
				Help: "Total number of events delivered by event type",
			},
			[]string{"event_type"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_events_dropped_total",
				Help: "Total number of events dropped due to full channel buffers",
			},
			[]string{"event_type"},
		),
	}

	registry.MustRegister(metrics.published, metrics.delivered, metrics.dropped)
	return metrics
}

func (m *routerMetrics) IncrementPublished(eventType string) {
	if m != nil && m.published != nil {
		m.published.WithLabelValues(eventType).Inc()
	}
}

func (m *routerMetrics) IncrementDelivered(eventType string) {
	if m != nil && m.delivered != nil {
		m.delivered.WithLabelValues(eventType).Inc()
	}
}

func (m *routerMetrics) IncrementDropped(eventType string) {
	if m != nil && m.dropped != nil {
		m.dropped.WithLabelValues(eventType).Inc()
	}
}
