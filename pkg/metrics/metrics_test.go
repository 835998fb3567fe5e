package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCountByResult(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Registration(ResultSuccess)
	m.Registration("taken")
	m.Registration("taken")
	m.Login("invalid_credentials")
	m.SessionCreated()
	m.Validation("expired")
	m.Revoked(3)
	m.Revoked(0)
	m.Swept(2)

	if got := testutil.ToFloat64(m.RegistrationsTotal.WithLabelValues("taken")); got != 2 {
		t.Errorf("registrations{taken} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RegistrationsTotal.WithLabelValues(ResultSuccess)); got != 1 {
		t.Errorf("registrations{success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.LoginsTotal.WithLabelValues("invalid_credentials")); got != 1 {
		t.Errorf("logins{invalid_credentials} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SessionsCreatedTotal); got != 1 {
		t.Errorf("sessions_created = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SessionValidationsTotal.WithLabelValues("expired")); got != 1 {
		t.Errorf("validations{expired} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SessionsRevokedTotal); got != 3 {
		t.Errorf("sessions_revoked = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.SessionsSweptTotal); got != 2 {
		t.Errorf("sessions_swept = %v, want 2", got)
	}
}

func TestObserveHashRecordsSample(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveHash("verify", time.Now())

	if n := testutil.CollectAndCount(m.CredentialHashSeconds); n != 1 {
		t.Errorf("expected one histogram series, got %d", n)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	m.Registration(ResultSuccess)
	m.Login("invalid_credentials")
	m.SessionCreated()
	m.Validation("valid")
	m.Revoked(1)
	m.Swept(1)
	m.ObserveHash("hash", time.Now())
}

func TestNewRegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Registration(ResultSuccess)
	m.Login(ResultSuccess)
	m.Validation("valid")
	m.ObserveHash("hash", time.Now())

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	// the three plain counters are exported at zero, vectors once used
	if len(families) != 7 {
		t.Errorf("expected 7 metric families, got %d", len(families))
	}
}
