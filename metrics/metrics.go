package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the tracking pipeline
var (
	TrackingUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_updates_total",
			Help: "Tracking update submissions by outcome",
		},
		[]string{"result"},
	)

	ActiveSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracking_active_subscriptions",
			Help: "Live tracking connections currently registered",
		},
	)

	FramesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_frames_sent_total",
			Help: "Frames written to live tracking connections",
		},
		[]string{"kind"},
	)

	SubscribersEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tracking_subscribers_evicted_total",
			Help: "Subscribers closed because their outbound queue was full",
		},
	)

	BroadcastDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tracking_broadcast_dropped_total",
			Help: "Pushes dropped because the fan-out queue was full",
		},
	)

	SinkFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_sink_failures_total",
			Help: "Failed deliveries to downstream integrations",
		},
		[]string{"sink"},
	)

	OrdersCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tracking_orders_created_total",
			Help: "Orders created from order placed events",
		},
	)
)

// Frame kinds
const (
	FrameSnapshot = "snapshot"
	FramePush     = "push"
)

// Update outcomes
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

var registerOnce sync.Once

// Register registers all Prometheus metrics with the default registry. Safe to call twice.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(TrackingUpdatesTotal)
		prometheus.MustRegister(ActiveSubscriptions)
		prometheus.MustRegister(FramesSentTotal)
		prometheus.MustRegister(SubscribersEvictedTotal)
		prometheus.MustRegister(BroadcastDroppedTotal)
		prometheus.MustRegister(SinkFailuresTotal)
		prometheus.MustRegister(OrdersCreatedTotal)
	})
}
