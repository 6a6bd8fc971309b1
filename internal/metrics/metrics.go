package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webchat_users_registered_total",
			Help: "Total accounts registered",
		},
	)

	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webchat_messages_sent_total",
			Help: "Total messages persisted",
		},
		[]string{"channel"}, // "shared" or "private"
	)

	MessagesDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webchat_messages_deleted_total",
			Help: "Total messages deleted by their author",
		},
		[]string{"channel"},
	)

	FriendRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webchat_friend_requests_total",
			Help: "Total friend requests queued",
		},
	)

	FriendshipsFormed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webchat_friendships_formed_total",
			Help: "Total friendships established",
		},
	)

	// Fan-out metrics
	EventsPushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webchat_events_pushed_total",
			Help: "Total events fanned out to connections",
		},
		[]string{"event"},
	)

	PresentConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "webchat_present_connections",
			Help: "Identities currently bound to a connection",
		},
	)
)
