package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BrokerMetrics holds all Prometheus metrics for the broker service.
type BrokerMetrics struct {
	RegistrationsTotal        *prometheus.CounterVec
	CredentialsIssuedTotal    *prometheus.CounterVec
	WebhookVerificationsTotal *prometheus.CounterVec
	RateLimitRejectionsTotal  prometheus.Counter
	IdempotencyConflictsTotal prometheus.Counter
}

// NewBrokerMetrics initializes and registers the Prometheus metrics.
func NewBrokerMetrics() *BrokerMetrics {
	return &BrokerMetrics{
		RegistrationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iam_broker",
			Subsystem: "orgs",
			Name:      "registrations_total",
			Help:      "Total number of organization registration attempts by status.",
		}, []string{"status"}), // status: created, conflict, error
		CredentialsIssuedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iam_broker",
			Subsystem: "sts",
			Name:      "credentials_issued_total",
			Help:      "Total number of credential issuance attempts by status.",
		}, []string{"status"}), // status: issued, invalid_credentials, not_validated, invalid_role, upstream_error
		WebhookVerificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iam_broker",
			Subsystem: "webhook",
			Name:      "verifications_total",
			Help:      "Total number of validation webhook verifications by status.",
		}, []string{"status"}), // status: validated, rejected
		RateLimitRejectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "iam_broker",
			Subsystem: "ratelimit",
			Name:      "rejections_total",
			Help:      "Total number of requests rejected by the fixed-window rate limiter.",
		}),
		IdempotencyConflictsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "iam_broker",
			Subsystem: "orgs",
			Name:      "idempotency_conflicts_total",
			Help:      "Total number of registration requests rejected by idempotency key reuse.",
		}),
	}
}
