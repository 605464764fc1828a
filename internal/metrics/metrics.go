// Package metrics exposes Prometheus instruments for the delivery pipeline
// and the HTTP endpoint that serves them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Change feed
	ChangeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_change_events_total",
			Help: "Change-feed insert events received, by table",
		},
		[]string{"table"},
	)
	SubscriptionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifier_subscriptions_active",
			Help: "Currently open change-feed subscriptions",
		},
	)
	SubscriptionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_subscription_errors_total",
			Help: "Subscription failures by stage",
		},
		[]string{"stage"},
	)

	// Dedup
	DedupDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_dedup_decisions_total",
			Help: "Dedup outcomes: delivered, duplicate or error",
		},
		[]string{"result"},
	)
	DedupEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifier_dedup_entries",
			Help: "Live entries in the in-memory dedup cache",
		},
	)

	// Presentation and interaction
	ToastsShown = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_toasts_shown_total",
			Help: "Toasts shown, by notification type",
		},
		[]string{"type"},
	)
	ToastsDismissed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_toasts_dismissed_total",
			Help: "Toasts removed, by reason",
		},
		[]string{"reason"},
	)
	ResolverDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_resolver_decisions_total",
			Help: "Click-time resolution outcomes",
		},
		[]string{"state"},
	)

	// Backend
	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notifier_backend_request_duration_seconds",
			Help:    "Latency of backend calls",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation", "table"},
	)
	BackendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_backend_errors_total",
			Help: "Failed backend calls",
		},
		[]string{"operation", "table"},
	)

	// Store
	StoreSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifier_store_notifications",
			Help: "Notifications held in the local store",
		},
	)
	UnreadCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifier_unread_notifications",
			Help: "Unread notifications in the local store",
		},
	)
)
