// Package metrics holds the Prometheus collectors shared by the agent and
// the channel adapters.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "langcoach"

// Outcomes recorded for replies.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeRateLimited = "rate_limited"
	OutcomeRejected    = "rejected"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	messagesReceived *prometheus.CounterVec
	repliesSent      *prometheus.CounterVec
	completionTime   *prometheus.HistogramVec
	adaptersActive   prometheus.Gauge
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound messages received per channel.",
		}, []string{"channel"}),
		repliesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_total",
			Help:      "Replies handled per channel and outcome.",
		}, []string{"channel", "outcome"}),
		completionTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_completion_seconds",
			Help:      "Latency of model completions.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"provider", "outcome"}),
		adaptersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "adapters_registered",
			Help:      "Channel adapters registered with the assembly.",
		}),
	}
	reg.MustRegister(
		m.messagesReceived,
		m.repliesSent,
		m.completionTime,
		m.adaptersActive,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) MessageReceived(channel string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(channel).Inc()
}

func (m *Metrics) Reply(channel, outcome string) {
	if m == nil {
		return
	}
	m.repliesSent.WithLabelValues(channel, outcome).Inc()
}

func (m *Metrics) Completion(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.completionTime.WithLabelValues(provider, outcome).Observe(d.Seconds())
}

func (m *Metrics) SetAdapters(n int) {
	if m == nil {
		return
	}
	m.adaptersActive.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
