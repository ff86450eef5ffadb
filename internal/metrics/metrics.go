package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks websocket sessions currently registered
	// with the hub
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collabdeck_active_connections",
		Help: "Number of websocket connections currently registered.",
	})

	// CommandsProcessed counts protocol commands by name
	CommandsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collabdeck_commands_total",
		Help: "Protocol commands processed, by command name.",
	}, []string{"command"})

	// CommandErrors counts commands that ended in a failure reply
	CommandErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collabdeck_command_errors_total",
		Help: "Protocol commands that failed, by error kind.",
	}, []string{"kind"})

	// EventsPublished counts server-to-client events by name
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collabdeck_events_published_total",
		Help: "Events delivered to channels or callers, by event name.",
	}, []string{"event"})
)
