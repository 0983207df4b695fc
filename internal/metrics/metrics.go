// Package metrics holds the Prometheus instruments for the subscription
// workflow and newsletter delivery. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics provides observability for subscribe, confirm and publish.
type Metrics struct {
	registry *prometheus.Registry

	Subscriptions      *prometheus.CounterVec
	Confirmations      *prometheus.CounterVec
	EmailsSent         *prometheus.CounterVec
	NewslettersSkipped prometheus.Counter
	PublishDuration    prometheus.Histogram
}

// New creates a Metrics instance on its own registry, including the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Subscriptions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "newsletter_subscriptions_total",
			Help: "Subscribe requests by outcome",
		}, []string{"outcome"}),
		Confirmations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "newsletter_confirmations_total",
			Help: "Confirm requests by outcome",
		}, []string{"outcome"}),
		EmailsSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "newsletter_emails_sent_total",
			Help: "Emails handed to the provider by kind and outcome",
		}, []string{"kind", "outcome"}),
		NewslettersSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "newsletter_recipients_skipped_total",
			Help: "Confirmed subscribers skipped because their stored address no longer validates",
		}),
		PublishDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsletter_publish_duration_seconds",
			Help:    "Duration of newsletter publishes, including every send",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Subscription records the outcome of one subscribe request.
func (m *Metrics) Subscription(outcome string) {
	if m == nil {
		return
	}
	m.Subscriptions.WithLabelValues(outcome).Inc()
}

// Confirmation records the outcome of one confirm request.
func (m *Metrics) Confirmation(outcome string) {
	if m == nil {
		return
	}
	m.Confirmations.WithLabelValues(outcome).Inc()
}

// EmailSent records one send attempt. kind is "confirmation" or "newsletter".
func (m *Metrics) EmailSent(kind string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailed
	}
	m.EmailsSent.WithLabelValues(kind, outcome).Inc()
}

// RecipientSkipped counts a newsletter recipient with an invalid stored address.
func (m *Metrics) RecipientSkipped() {
	if m == nil {
		return
	}
	m.NewslettersSkipped.Inc()
}

// ObservePublish records a publish duration. Call with time.Now() at the
// start of the operation.
func (m *Metrics) ObservePublish(start time.Time) {
	if m == nil {
		return
	}
	m.PublishDuration.Observe(time.Since(start).Seconds())
}
