package channels

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSent    = "sent"
	statusFailed  = "failed"
	statusSkipped = "skipped"
)

var (
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexwatch_notifications_total",
			Help: "Notification attempts by channel and outcome.",
		},
		[]string{"channel", "status"},
	)
	notificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lexwatch_notification_duration_seconds",
			Help:    "Duration of notification deliveries per channel.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"channel"},
	)
)
