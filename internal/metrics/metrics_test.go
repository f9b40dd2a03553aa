package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metricLoop:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					continue metricLoop
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestStockClampCountedSeparately(t *testing.T) {
	m := New()

	m.RecordStockAdjustment("sale", false)
	m.RecordStockAdjustment("sale", true)
	m.RecordStockAdjustment("manual", true)

	assert.Equal(t, 2.0, counterValue(t, m, "backoffice_stock_adjustments_total", map[string]string{"origin": "sale"}))
	assert.Equal(t, 1.0, counterValue(t, m, "backoffice_stock_clamps_total", map[string]string{"origin": "sale"}))
	assert.Equal(t, 1.0, counterValue(t, m, "backoffice_stock_clamps_total", map[string]string{"origin": "manual"}))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordSaleOperation("record")
		m.RecordSave(false, time.Millisecond)
		m.RecordHTTPRequest(http.MethodGet, "/healthz", http.StatusOK, time.Millisecond)
	})
	assert.Nil(t, m.Registry())
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.RecordSaleOperation("record")
	m.RecordReportCache("dashboard", true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `backoffice_sale_operations_total{operation="record"} 1`))
	assert.True(t, strings.Contains(body, `backoffice_report_cache_lookups_total{report="dashboard",result="hit"} 1`))
}
