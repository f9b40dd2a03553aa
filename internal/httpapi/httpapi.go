package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"backoffice/internal/domain"
	"backoffice/internal/export"
	"backoffice/internal/logging"
	"backoffice/internal/metrics"
	"backoffice/internal/service"
)

const maxJSONBody = 1 << 20

type API struct {
	service       *service.Service
	metrics       *metrics.Metrics
	allowedOrigin string
	logger        zerolog.Logger
	now           func() time.Time
}

func New(svc *service.Service, m *metrics.Metrics, allowedOrigin string) *API {
	return &API{
		service:       svc,
		metrics:       m,
		allowedOrigin: allowedOrigin,
		logger:        logging.Component("http"),
		now:           time.Now,
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	a.route(mux, "/healthz", a.handleHealth)

	a.route(mux, "/api/v1/sales", a.handleSales)
	a.route(mux, "/api/v1/sales/", a.handleSaleActions)
	a.route(mux, "/api/v1/transactions", a.handleTransactions)
	a.route(mux, "/api/v1/transactions/", a.handleTransactionActions)
	a.route(mux, "/api/v1/inventory", a.handleInventory)
	a.route(mux, "/api/v1/inventory/", a.handleInventoryActions)

	a.route(mux, "/api/v1/reports/dashboard", a.handleDashboard)
	a.route(mux, "/api/v1/reports/products", a.handleProductReport)
	a.route(mux, "/api/v1/reports/cash-flow", a.handleCashFlowReport)

	a.route(mux, "/api/v1/exports/sales", a.handleSalesExport)
	a.route(mux, "/api/v1/exports/transactions", a.handleTransactionsExport)
	a.route(mux, "/api/v1/exports/inventory", a.handleInventoryExport)

	mux.Handle("/metrics", a.metrics.Handler())

	return a.withMiddleware(mux)
}

// route registers h and records every response under the registered pattern,
// so ids in the path do not explode the metric labels.
func (a *API) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		startedAt := time.Now()
		h(rec, r)
		elapsed := time.Since(startedAt)

		a.metrics.RecordHTTPRequest(r.Method, pattern, rec.status, elapsed)

		var event *zerolog.Event
		switch {
		case rec.status >= 500:
			event = a.logger.Error()
		case rec.status >= 400:
			event = a.logger.Warn()
		default:
			event = a.logger.Info()
		}
		event.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	if err := a.service.Ping(r.Context()); err != nil {
		a.logger.Error().Err(err).Msg("storage ping failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": a.now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter, err := saleFilterFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, a.service.ListSales(filter))
	case http.MethodPost:
		var req domain.SaleCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := a.service.RecordSale(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request) {
	id, rest := pathID(r.URL.Path, "/api/v1/sales/")
	if id == "" || rest != "" {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req domain.SaleUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := a.service.UpdateSale(r.Context(), id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodDelete:
		writeJSON(w, http.StatusOK, a.service.DeleteSale(r.Context(), id))
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter, err := transactionFilterFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, a.service.ListTransactions(filter))
	case http.MethodPost:
		var req domain.TransactionCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		tx, err := a.service.RecordTransaction(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"transaction": tx})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleTransactionActions(w http.ResponseWriter, r *http.Request) {
	id, rest := pathID(r.URL.Path, "/api/v1/transactions/")
	if id == "" || rest != "" {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}

	found, err := a.service.DeleteTransaction(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"found": found})
}

func (a *API) handleInventory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, a.service.ListInventory(r.URL.Query().Get("category")))
	case http.MethodPost:
		var req domain.InventoryItemCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		item, err := a.service.CreateInventoryItem(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"item": item})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleInventoryActions(w http.ResponseWriter, r *http.Request) {
	id, rest := pathID(r.URL.Path, "/api/v1/inventory/")
	if id == "" {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}

	if rest == "adjust" {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var req domain.StockAdjustRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := a.service.AdjustStock(r.Context(), id, req.Delta)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if rest != "" {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req domain.InventoryItemUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		item, found, err := a.service.UpdateInventoryItem(r.Context(), id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if !found {
			writeJSON(w, http.StatusOK, map[string]any{"found": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"found": true, "item": item})
	case http.MethodDelete:
		writeJSON(w, http.StatusOK, map[string]any{"found": a.service.DeleteInventoryItem(r.Context(), id)})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, a.service.Dashboard(r.Context()))
}

func (a *API) handleProductReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	from, to, err := dateRangeFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, a.service.ProductPerformance(r.Context(), from, to))
}

func (a *API) handleCashFlowReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	filter, err := transactionFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, a.service.CashFlow(r.Context(), filter))
}

func (a *API) handleSalesExport(w http.ResponseWriter, r *http.Request) {
	format, ok := exportFormat(w, r)
	if !ok {
		return
	}
	filter, err := saleFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sales := a.service.ListSales(filter).Sales
	a.writeExport(w, format, export.SalesFileName(format, a.now()), export.SalesTable(sales))
}

func (a *API) handleTransactionsExport(w http.ResponseWriter, r *http.Request) {
	format, ok := exportFormat(w, r)
	if !ok {
		return
	}
	filter, err := transactionFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	flow := a.service.CashFlow(r.Context(), filter)
	a.writeExport(w, format, export.CashFlowFileName(format, filter.Store, a.now()), export.TransactionsTable(flow.Transactions))
}

func (a *API) handleInventoryExport(w http.ResponseWriter, r *http.Request) {
	format, ok := exportFormat(w, r)
	if !ok {
		return
	}
	items := a.service.ListInventory(r.URL.Query().Get("category")).Items
	a.writeExport(w, format, export.InventoryFileName(format, a.now()), export.InventoryTable(items))
}

func exportFormat(w http.ResponseWriter, r *http.Request) (export.Format, bool) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return "", false
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return "", false
	}
	return format, true
}

func (a *API) writeExport(w http.ResponseWriter, format export.Format, filename string, table export.Table) {
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if err := export.Write(w, format, table); err != nil {
		// headers are gone already; all that is left is to log it
		a.logger.Error().Err(err).Str("file", filename).Msg("export failed")
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// pathID splits "/prefix/{id}/rest" into id and rest.
func pathID(path string, prefix string) (string, string) {
	tail := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	id, rest, _ := strings.Cut(tail, "/")
	return strings.TrimSpace(id), strings.Trim(rest, "/")
}

func dateRangeFromQuery(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	var from, to time.Time
	var err error
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		if from, err = service.ParseDate(raw); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("from: %w", err)
		}
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		if to, err = service.ParseDate(raw); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("to: %w", err)
		}
	}
	return from, to, nil
}

func saleFilterFromQuery(r *http.Request) (domain.SaleFilter, error) {
	from, to, err := dateRangeFromQuery(r)
	if err != nil {
		return domain.SaleFilter{}, err
	}
	q := r.URL.Query()

	filter := domain.SaleFilter{From: from, To: to}
	if raw := strings.TrimSpace(q.Get("salesperson")); raw != "" {
		filter.Salesperson = domain.Salesperson(raw)
		if !filter.Salesperson.Valid() {
			return domain.SaleFilter{}, fmt.Errorf("unknown salesperson %q", raw)
		}
	}
	if raw := strings.TrimSpace(q.Get("store")); raw != "" {
		filter.Store = domain.Store(raw)
		if !filter.Store.Valid() {
			return domain.SaleFilter{}, fmt.Errorf("unknown store %q", raw)
		}
	}
	return filter, nil
}

func transactionFilterFromQuery(r *http.Request) (domain.TransactionFilter, error) {
	from, to, err := dateRangeFromQuery(r)
	if err != nil {
		return domain.TransactionFilter{}, err
	}
	q := r.URL.Query()

	filter := domain.TransactionFilter{From: from, To: to}
	if raw := strings.TrimSpace(q.Get("store")); raw != "" {
		filter.Store = domain.Store(raw)
		if !filter.Store.Valid() {
			return domain.TransactionFilter{}, fmt.Errorf("unknown store %q", raw)
		}
	}
	if raw := strings.TrimSpace(q.Get("category")); raw != "" {
		filter.Category = domain.FinancialCategory(raw)
		if !filter.Category.Valid() {
			return domain.TransactionFilter{}, fmt.Errorf("unknown category %q", raw)
		}
	}
	if raw := strings.TrimSpace(q.Get("kind")); raw != "" {
		filter.Kind = domain.TransactionKind(raw)
		if !filter.Kind.Valid() {
			return domain.TransactionFilter{}, fmt.Errorf("unknown kind %q", raw)
		}
	}
	return filter, nil
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeServiceError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    verr.Error(),
			"messages": verr.Messages,
		})
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		logger := logging.Component("http")
		logger.Error().Err(err).Int("status", status).Msg("internal error")
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
