// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CheckIns counts check-in attempts by outcome ("present" or an error code)
	// and by the step that decided it.
	CheckIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "checkins_total",
		Help:      "Check-in attempts by outcome and deciding step.",
	}, []string{"outcome", "step"})

	// CheckInDuration observes end-to-end check-in latency.
	CheckInDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "attendance",
		Name:      "checkin_duration_seconds",
		Help:      "Check-in latency.",
		Buckets:   prometheus.DefBuckets,
	})

	// CredentialRejections counts rejected credentials by reason.
	CredentialRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "credential_rejections_total",
		Help:      "Rejected QR credentials by reason.",
	}, []string{"reason"})

	// TokensIssued counts QR credentials minted.
	TokensIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "qr_tokens_issued_total",
		Help:      "QR credentials issued.",
	})

	// ConsumeFailures counts credentials that could not be flipped to used
	// after their attendance committed.
	ConsumeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "nonce_consume_failures_total",
		Help:      "Credentials not marked used after a committed attendance.",
	})

	// AuditFailures counts audit events that could not be handed to the sink.
	AuditFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "audit_emit_failures_total",
		Help:      "Audit events dropped by the sink, by action.",
	}, []string{"action"})

	// AuditPersisted counts audit events written by the worker.
	AuditPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "audit_events_persisted_total",
		Help:      "Audit events persisted by the worker, by result.",
	}, []string{"result"})
)
