package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	alertsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lexwatch_alerts_created_total",
		Help: "Alerts accepted by the alert manager, by severity.",
	}, []string{"severity"})

	alertsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lexwatch_alerts_deduplicated_total",
		Help: "Alerts suppressed because an identical alert was created within the deduplication window.",
	})

	alertsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lexwatch_alerts_resolved_total",
		Help: "Alerts marked resolved.",
	})

	handlerFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lexwatch_alert_handler_failures_total",
		Help: "Alert handlers that returned an error or panicked.",
	})

	activeAlerts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lexwatch_alerts_active",
		Help: "Unresolved alerts held in memory.",
	})
)
