package app

import (
	"garminai/clients/updates"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts client-side request outcomes. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	stale    *prometheus.CounterVec
	pushed   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "garminai",
			Name:      "requests_total",
			Help:      "Assistant service calls by call name and outcome.",
		}, []string{"call", "outcome"}),
		stale: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "garminai",
			Name:      "stale_responses_total",
			Help:      "Responses discarded because a newer request superseded them.",
		}, []string{"action"}),
		pushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "garminai",
			Name:      "push_messages_total",
			Help:      "Push channel messages by type.",
		}, []string{"type"}),
	}

	reg.MustRegister(m.requests, m.stale, m.pushed)
	return m
}

func (m *Metrics) observeRequest(call string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.requests.WithLabelValues(call, outcome).Inc()
}

func (m *Metrics) observeStale(action string) {
	if m == nil {
		return
	}
	m.stale.WithLabelValues(action).Inc()
}

// observePush counts a push message. The type comes from the server, so
// anything but the known types is counted as "other".
func (m *Metrics) observePush(msgType string) {
	if m == nil {
		return
	}
	switch msgType {
	case updates.TypeActivityUpdate, updates.TypeAnalysisUpdate:
	default:
		msgType = "other"
	}
	m.pushed.WithLabelValues(msgType).Inc()
}

// Handler serves the metrics in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
