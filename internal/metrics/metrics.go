package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"couplechat/internal/domain"
)

// Metrics holds the realtime collectors. Each instance owns its registry so
// tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	Connections   prometheus.Gauge
	OnlineUsers   prometheus.Gauge
	Events        *prometheus.CounterVec
	Messages      *prometheus.CounterVec
	Errors        *prometheus.CounterVec
	DroppedFrames prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Active websocket connections",
		}),
		OnlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_online_users",
			Help: "Users with a registered connection",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_inbound_events_total",
			Help: "Client events received, by event name",
		}, []string{"event"}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Persisted messages, by delivery path",
		}, []string{"delivery"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_error_events_total",
			Help: "Error events sent to clients, by reason",
		}, []string{"reason"}),
		DroppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ws_dropped_frames_total",
			Help: "Outbound frames dropped because a send buffer was full",
		}),
	}
	m.registry.MustRegister(
		m.Connections,
		m.OnlineUsers,
		m.Events,
		m.Messages,
		m.Errors,
		m.DroppedFrames,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler returns an http.Handler for Prometheus scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// PresenceChanged keeps the online gauge in step with the registry.
func (m *Metrics) PresenceChanged(_ context.Context, ev domain.PresenceEvent) {
	m.OnlineUsers.Set(float64(ev.Total))
}
