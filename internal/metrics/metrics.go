package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestTransitions counts request ledger operations by action and outcome.
	RequestTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bapmate_request_transitions_total",
		Help: "Request ledger operations by action and outcome",
	}, []string{"action", "outcome"})

	// MessagesSent counts chat messages committed.
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bapmate_messages_sent_total",
		Help: "Total number of chat messages sent",
	})

	// RoomsCollected counts rooms deleted after their last participant left.
	RoomsCollected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bapmate_rooms_collected_total",
		Help: "Rooms garbage-collected after the last participant left",
	})

	// WatcherNotifications counts watcher events delivered to live sessions.
	WatcherNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bapmate_watcher_notifications_total",
		Help: "Notifications raised by request watchers",
	}, []string{"kind"})

	// PushResults counts FCM deliveries by notification type and result.
	PushResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bapmate_push_results_total",
		Help: "Push notification deliveries by type and result",
	}, []string{"type", "result"})

	// WorkerEvents counts stream events handled by workers.
	WorkerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bapmate_worker_events_total",
		Help: "Stream events handled by workers by type and result",
	}, []string{"type", "result"})

	// WorkerEventLatency records handler latency per event type.
	WorkerEventLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bapmate_worker_event_latency_seconds",
		Help:    "Worker handler latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	// WebSocketConnections is the gauge of open websocket sessions.
	WebSocketConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bapmate_websocket_connections",
		Help: "Open websocket sessions by kind",
	}, []string{"kind"})

	// LiveDrops counts live frames dropped because a subscriber was slow.
	LiveDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bapmate_live_backpressure_drops_total",
		Help: "Live frames dropped due to a full subscriber buffer",
	})
)

// ObserveEvent records the outcome and latency of one worker event.
func ObserveEvent(eventType string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	WorkerEvents.WithLabelValues(eventType, result).Inc()
	WorkerEventLatency.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
}

// Outcome maps an error to a short label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
