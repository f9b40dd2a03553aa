package service

import (
	"context"
	"time"

	"backoffice/internal/cache"
	"backoffice/internal/domain"
	"backoffice/internal/report"
)

// cached serves a report for the current revision, computing and storing it
// on a miss. Cache failures only cost a recomputation.
func cached[T any](ctx context.Context, s *Service, name string, params []string, compute func(domain.Snapshot) T) T {
	state, revision := s.Snapshot()
	key := cache.ReportKey(name, s.epoch, revision, params...)

	var out T
	hit, err := s.cache.Get(ctx, key, &out)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("report cache read failed")
	}
	s.metrics.RecordReportCache(name, hit && err == nil)
	if hit && err == nil {
		return out
	}

	out = compute(state)
	if err := s.cache.Set(ctx, key, out, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("report cache write failed")
	}
	return out
}

func (s *Service) Dashboard(ctx context.Context) domain.DashboardReport {
	return cached(ctx, s, "dashboard", nil, report.Dashboard)
}

func (s *Service) ProductPerformance(ctx context.Context, from time.Time, to time.Time) domain.ProductReport {
	return cached(ctx, s, "products", []string{dayParam(from), dayParam(to)}, func(state domain.Snapshot) domain.ProductReport {
		return report.ProductPerformance(state, from, to)
	})
}

func (s *Service) CashFlow(ctx context.Context, filter domain.TransactionFilter) domain.CashFlowReport {
	params := []string{dayParam(filter.From), dayParam(filter.To), string(filter.Store), string(filter.Category), string(filter.Kind)}
	return cached(ctx, s, "cash-flow", params, func(state domain.Snapshot) domain.CashFlowReport {
		return report.CashFlow(state.Transactions, filter)
	})
}

func dayParam(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return report.DayKey(t)
}
