// Package metrics provides Prometheus instrumentation for the coordinator:
// gauges for connection, session and room counts, counters for message
// throughput, and a histogram for fan-out latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Connections tracks the current number of attached WebSocket connections.
	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "palaver_connections",
		Help: "Current number of attached WebSocket connections",
	})

	// Sessions tracks the current number of logged-in sessions.
	Sessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "palaver_sessions",
		Help: "Current number of sessions holding an identity",
	})

	// Rooms tracks the number of listed public rooms.
	Rooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "palaver_rooms",
		Help: "Current number of public rooms",
	})

	// MessagesTotal counts messages by outcome: "public", "private", "dropped".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "palaver_messages_total",
		Help: "Total number of messages processed",
	}, []string{"kind"})

	// FanoutLatency records the time spent delivering one event to all
	// affected connections.
	FanoutLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "palaver_fanout_seconds",
		Help:    "Notification fan-out latency in seconds",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
	})
)

func init() {
	prometheus.MustRegister(
		Connections,
		Sessions,
		Rooms,
		MessagesTotal,
		FanoutLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
