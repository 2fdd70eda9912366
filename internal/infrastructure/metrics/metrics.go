// Package metrics exposes approval activity as Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "approvals"

// Metrics holds the collectors for one registry
type Metrics struct {
	registry *prometheus.Registry

	transitions        *prometheus.CounterVec
	transitionFailures *prometheus.CounterVec
	events             *prometheus.CounterVec
	webhookDeliveries  *prometheus.CounterVec
	webhookDuration    *prometheus.HistogramVec
	customActionErrors *prometheus.CounterVec
}

// New registers every collector on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Completed status transitions by subject type and target status",
		}, []string{"subject_type", "status"}),
		transitionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transition_failures_total",
			Help:      "Transitions refused or failed, by subject type, action and reason",
		}, []string{"subject_type", "action", "reason"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dispatched_total",
			Help:      "Lifecycle events delivered to listeners",
		}, []string{"event", "subject_type"}),
		webhookDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Webhook POST attempts by event and outcome",
		}, []string{"event", "outcome"}),
		webhookDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_delivery_seconds",
			Help:      "Time spent posting to a webhook endpoint",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event"}),
		customActionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "custom_action_failures_total",
			Help:      "Custom actions that returned an error or panicked",
		}, []string{"action"}),
	}
}

// TransitionCompleted counts a persisted transition
func (m *Metrics) TransitionCompleted(subjectType, status string) {
	m.transitions.WithLabelValues(subjectType, status).Inc()
}

// TransitionFailed counts a refused or failed transition
func (m *Metrics) TransitionFailed(subjectType, action, reason string) {
	m.transitionFailures.WithLabelValues(subjectType, action, reason).Inc()
}

func (m *Metrics) EventDispatched(kind, subjectType string) {
	m.events.WithLabelValues(kind, subjectType).Inc()
}

func (m *Metrics) WebhookDelivered(eventName string, success bool, elapsed time.Duration) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.webhookDeliveries.WithLabelValues(eventName, outcome).Inc()
	m.webhookDuration.WithLabelValues(eventName).Observe(elapsed.Seconds())
}

func (m *Metrics) CustomActionFailed(action string) {
	m.customActionErrors.WithLabelValues(action).Inc()
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
