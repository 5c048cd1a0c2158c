// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MessagesSaved counts persisted messages by mode (draft | completed).
	MessagesSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parley",
		Name:      "messages_saved_total",
		Help:      "Messages persisted through the send endpoint, by mode.",
	}, []string{"mode"})

	// SendRejected counts sends refused before any write, by reason.
	SendRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parley",
		Name:      "send_rejected_total",
		Help:      "Send requests rejected by validation or the upload filter.",
	}, []string{"reason"})

	// FramesDelivered counts frames queued to live connections.
	FramesDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "parley",
		Name:      "ws_frames_delivered_total",
		Help:      "Frames queued to live WebSocket connections.",
	})

	// FramesDropped counts frames dropped because a client was too slow.
	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "parley",
		Name:      "ws_frames_dropped_total",
		Help:      "Frames dropped because the client send buffer was full.",
	})

	// Connections is the number of registered WebSocket connections.
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "parley",
		Name:      "ws_connections",
		Help:      "Currently registered WebSocket connections.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
