// Package metrics registers the Prometheus instruments for the
// authentication engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus instruments for the application.
type Metrics struct {
	Logins          *prometheus.CounterVec
	Lockouts        prometheus.Counter
	SessionsCreated *prometheus.CounterVec
	SessionsExpired prometheus.Counter
	AdminChallenges *prometheus.CounterVec
	AuditEntries    prometheus.Counter
	HTTPRequests    *prometheus.CounterVec
}

// New creates and registers all instruments against the given registerer.
// Tests pass prometheus.NewRegistry() to avoid double registration; main
// passes prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "undertone_logins_total",
			Help: "Login attempts by result (success, auth_error, locked).",
		}, []string{"result"}),
		Lockouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "undertone_lockouts_total",
			Help: "Accounts locked after repeated password failures.",
		}),
		SessionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "undertone_sessions_created_total",
			Help: "Sessions created by subject kind.",
		}, []string{"kind"}),
		SessionsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "undertone_sessions_expired_total",
			Help: "Sessions detected expired on access.",
		}),
		AdminChallenges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "undertone_admin_challenges_total",
			Help: "Admin challenge-response outcomes (issued, success, failure).",
		}, []string{"result"}),
		AuditEntries: factory.NewCounter(prometheus.CounterOpts{
			Name: "undertone_audit_entries_total",
			Help: "Audit log entries appended.",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "undertone_http_requests_total",
			Help: "HTTP requests by method and status class.",
		}, []string{"method", "status"}),
	}
}
