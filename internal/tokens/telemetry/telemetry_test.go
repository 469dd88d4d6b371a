package telemetry_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/tabtoken/internal/tokens/telemetry"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := telemetry.New()

	m.ObserveIssuance("tenantA", "issue", telemetry.OutcomeOK, 2*time.Millisecond)
	m.ObserveIssuance("tenantA", "issue", telemetry.OutcomeOK, time.Millisecond)
	m.ObserveIssuance("tenantB", "refresh", telemetry.OutcomeRejected, time.Millisecond)
	m.ObserveValidation("tenantA", "expired")
	m.ObserveGate("admitted")
	m.ObserveGate("secret_mismatch")
	m.ObserveGate("secret_mismatch")

	require.Equal(t, 2.0, m.IssuedCount("tenantA", "issue", telemetry.OutcomeOK))
	require.Equal(t, 1.0, m.IssuedCount("tenantB", "refresh", telemetry.OutcomeRejected))
	require.Equal(t, 1.0, m.GateCount("admitted"))
	require.Equal(t, 2.0, m.GateCount("secret_mismatch"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `tabtoken_issuances_total{client_id="tenantA",operation="issue",outcome="ok"} 2`)
	require.Contains(t, string(body), `tabtoken_validations_total{client_id="tenantA",result="expired"} 1`)
	require.Contains(t, string(body), "tabtoken_issuance_duration_seconds_bucket")
	require.Contains(t, string(body), "go_goroutines")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *telemetry.Metrics
	m.ObserveIssuance("x", "issue", telemetry.OutcomeOK, time.Second)
	m.ObserveValidation("x", "valid")
	m.ObserveGate("admitted")
}
