// Package metrics defines the Prometheus metrics of the account and session
// core. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tanod"

// ResultSuccess is the result label of a successful operation.
const ResultSuccess = "success"

type Metrics struct {
	// registrations by result: success, invalid, taken, error
	RegistrationsTotal *prometheus.CounterVec
	// login attempts by result: success, invalid_credentials, deactivated, error
	LoginsTotal        *prometheus.CounterVec

	SessionsCreatedTotal    prometheus.Counter
	// validations by result: valid, not_found, expired, revoked, deactivated, error
	SessionValidationsTotal *prometheus.CounterVec
	SessionsRevokedTotal    prometheus.Counter
	SessionsSweptTotal      prometheus.Counter

	// hash and verify latency
	CredentialHashSeconds *prometheus.HistogramVec
}

// New registers all metrics with reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		RegistrationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Account registration attempts, by result.",
		}, []string{"result"}),
		LoginsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts, by result.",
		}, []string{"result"}),
		SessionsCreatedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions issued.",
		}),
		SessionValidationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_validations_total",
			Help:      "Session token validations, by result.",
		}, []string{"result"}),
		SessionsRevokedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_revoked_total",
			Help:      "Sessions moved from active to revoked.",
		}),
		SessionsSweptTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_swept_total",
			Help:      "Expired or revoked session rows removed by sweeps.",
		}),
		CredentialHashSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "credential_hash_seconds",
			Help:      "Time spent hashing or verifying secrets.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

func (m *Metrics) Registration(result string) {
	if m == nil {
		return
	}
	m.RegistrationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreatedTotal.Inc()
}

func (m *Metrics) Validation(result string) {
	if m == nil {
		return
	}
	m.SessionValidationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Revoked(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsRevokedTotal.Add(float64(n))
}

func (m *Metrics) Swept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsSweptTotal.Add(float64(n))
}

// ObserveHash records the time since start under op ("hash" or "verify").
func (m *Metrics) ObserveHash(op string, start time.Time) {
	if m == nil {
		return
	}
	m.CredentialHashSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
