package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/swishview/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RecordTransition("pending", "active")
	c.RecordTransition("active", "paused")
	c.RecordPolicyViolation("edit_not_pending")
	c.RecordSignIn("user")
	c.RecordStaleResponse()
	c.RecordStaleResponse()
	c.RecordPaymentConfirmed()

	require.Equal(t, 2.0, counterValue(t, reg, "swishview_campaign_transitions_total"))
	require.Equal(t, 1.0, counterValue(t, reg, "swishview_policy_violations_total"))
	require.Equal(t, 1.0, counterValue(t, reg, "swishview_sign_ins_total"))
	require.Equal(t, 2.0, counterValue(t, reg, "swishview_stale_responses_total"))
	require.Equal(t, 1.0, counterValue(t, reg, "swishview_payments_confirmed_total"))
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg).RecordSignIn("admin")

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `swishview_sign_ins_total{role="admin"} 1`)
}
