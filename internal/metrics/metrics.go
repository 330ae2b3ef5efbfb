package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connections
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "supportchat_connections_active",
			Help: "Currently registered realtime connections",
		},
	)

	// Messages
	MessagesPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportchat_messages_persisted_total",
			Help: "Messages persisted by the pipeline",
		},
		[]string{"message_type"},
	)

	MessagesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportchat_messages_rejected_total",
			Help: "Submits rejected before or during persistence",
		},
		[]string{"reason"}, // "denied", "invalid", "persistence"
	)

	BroadcastDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "supportchat_broadcast_drops_total",
			Help: "Events dropped because a connection send buffer was full",
		},
	)

	// Moderation
	ClassifierDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supportchat_classifier_duration_seconds",
			Help:    "Classifier call latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		},
		[]string{"call"}, // "classify" or "detect_crisis"
	)

	ClassifierFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportchat_classifier_fallbacks_total",
			Help: "Classifier calls replaced by the neutral fallback",
		},
		[]string{"call"},
	)

	CrisisEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportchat_crisis_events_total",
			Help: "Crisis events delivered to senders",
		},
		[]string{"level"},
	)

	// Rooms
	RoomsArchived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportchat_rooms_archived_total",
			Help: "Rooms archived",
		},
		[]string{"reason"}, // "stale" or "declined"
	)
)
