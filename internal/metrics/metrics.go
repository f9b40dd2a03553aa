package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "backoffice"

// Metrics owns a private registry. A nil *Metrics records nothing, which
// keeps tests free of global state.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	SaleOperations      *prometheus.CounterVec
	LedgerEntries       *prometheus.CounterVec
	StockAdjustments    *prometheus.CounterVec
	StockClamps         *prometheus.CounterVec
	ValidationRejects   *prometheus.CounterVec
	StorageSaves        *prometheus.CounterVec
	StorageSaveDuration prometheus.Histogram
	ReportCacheLookups  *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "route"},
	)
	m.SaleOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sale_operations_total",
			Help:      "Sales recorded, updated and deleted",
		},
		[]string{"operation"},
	)
	m.LedgerEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_entries_created_total",
			Help:      "Ledger lines created, by kind",
		},
		[]string{"kind"},
	)
	m.StockAdjustments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_adjustments_total",
			Help:      "Inventory quantity adjustments, by origin",
		},
		[]string{"origin"},
	)
	m.StockClamps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_clamps_total",
			Help:      "Adjustments whose result was floored at zero",
		},
		[]string{"origin"},
	)
	m.ValidationRejects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_rejects_total",
			Help:      "Inputs refused by validation, by entity",
		},
		[]string{"entity"},
	)
	m.StorageSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_saves_total",
			Help:      "Snapshot saves, by result",
		},
		[]string{"result"},
	)
	m.StorageSaveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_save_duration_seconds",
			Help:      "Snapshot save duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
	m.ReportCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_cache_lookups_total",
			Help:      "Report cache lookups, by report and result",
		},
		[]string{"report", "result"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SaleOperations,
		m.LedgerEntries,
		m.StockAdjustments,
		m.StockClamps,
		m.ValidationRejects,
		m.StorageSaves,
		m.StorageSaveDuration,
		m.ReportCacheLookups,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordHTTPRequest(method string, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *Metrics) RecordSaleOperation(operation string) {
	if m == nil {
		return
	}
	m.SaleOperations.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordLedgerEntry(kind string) {
	if m == nil {
		return
	}
	m.LedgerEntries.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordStockAdjustment(origin string, clamped bool) {
	if m == nil {
		return
	}
	m.StockAdjustments.WithLabelValues(origin).Inc()
	if clamped {
		m.StockClamps.WithLabelValues(origin).Inc()
	}
}

func (m *Metrics) RecordValidationReject(entity string) {
	if m == nil {
		return
	}
	m.ValidationRejects.WithLabelValues(entity).Inc()
}

func (m *Metrics) RecordSave(success bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "error"
	}
	m.StorageSaves.WithLabelValues(result).Inc()
	m.StorageSaveDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordReportCache(report string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.ReportCacheLookups.WithLabelValues(report, result).Inc()
}
