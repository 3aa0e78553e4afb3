// Package metrics registers the prometheus collectors of the account service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "account"

// AuthEventsTotal counts credential lifecycle outcomes.
// Labels:
//   - event: register, verify_email, login, forgot_password, reset_password
//   - result: ok or the failure reason
var AuthEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_events_total",
		Help:      "Credential lifecycle operations by outcome.",
	},
	[]string{"event", "result"},
)

// NotificationsTotal counts outbound mail by kind and delivery result (sent, failed).
var NotificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Outbound notification mails by kind and result.",
	},
	[]string{"kind", "result"},
)

// SubscriptionEventsTotal counts subscription create and reconcile outcomes.
var SubscriptionEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subscription_events_total",
		Help:      "Subscription operations by provider and outcome.",
	},
	[]string{"operation", "provider", "result"},
)

// HTTPRequestDuration measures handler latency by route pattern.
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method, route and status.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)
