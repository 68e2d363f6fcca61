package ar

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/invoicing"
)

// DashboardStats returns the cached receivables summary, building it at most once per
// cache version even under concurrent requests.
func (s *Service) DashboardStats(ctx context.Context) (DashboardStats, error) {
	key := "ar:stats"
	cached := false
	if s.cache != nil {
		built, err := s.cache.BuildKey(ctx, "ar", "stats")
		if err != nil {
			s.logger.Warn("build stats cache key", slog.Any("error", err))
		} else {
			key, cached = built, true
		}
	}

	ch := s.statsGroup.DoChan(key, func() (interface{}, error) {
		loadCtx := context.WithoutCancel(ctx)
		if !cached {
			return s.buildStats(loadCtx)
		}
		var stats DashboardStats
		err := s.cache.FetchJSON(loadCtx, key, &stats, func(ctx context.Context) (interface{}, error) {
			return s.buildStats(ctx)
		})
		return stats, err
	})
	select {
	case <-ctx.Done():
		return DashboardStats{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return DashboardStats{}, res.Err
		}
		return res.Val.(DashboardStats), nil
	}
}

func (s *Service) buildStats(ctx context.Context) (DashboardStats, error) {
	rows, err := s.repo.ListStatsRows(ctx)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("ar: stats rows: %w", err)
	}
	return ComputeStats(rows, s.engine.Now()), nil
}

// ComputeStats folds invoice rows into dashboard figures. Status is re-derived at now so
// invoices that slipped past their due date count as overdue before the sweep runs.
func ComputeStats(rows []StatsRow, now time.Time) DashboardStats {
	stats := DashboardStats{
		TotalInvoices: len(rows),
		ByStatus:      make(map[invoicing.Status]int, len(invoicing.Statuses)),
		Currencies:    []CurrencyTotals{},
		GeneratedAt:   now,
	}
	for _, st := range invoicing.Statuses {
		stats.ByStatus[st] = 0
	}

	for _, row := range rows {
		status := invoicing.DeriveStatus(invoicing.Invoice{
			Status:         row.Status,
			IssueStatus:    row.IssueStatus,
			StatusOverride: row.StatusOverride,
			TotalAmount:    row.TotalAmount,
			PaidAmount:     row.PaidAmount,
			DueDate:        row.DueDate,
		}, now)
		stats.ByStatus[status]++
		if status == invoicing.StatusOverdue {
			stats.OverdueCount++
		}
	}

	live := lo.Filter(rows, func(row StatsRow, _ int) bool {
		return row.Status != invoicing.StatusCancelled
	})
	for currency, group := range lo.GroupBy(live, func(row StatsRow) string { return row.Currency }) {
		invoiced := invoicing.Sum(lo.Map(group, func(row StatsRow, _ int) decimal.Decimal { return row.TotalAmount })...)
		paid := invoicing.Sum(lo.Map(group, func(row StatsRow, _ int) decimal.Decimal { return row.PaidAmount })...)
		stats.Currencies = append(stats.Currencies, CurrencyTotals{
			Currency:    currency,
			Invoices:    len(group),
			Invoiced:    invoiced,
			Paid:        paid,
			Outstanding: invoicing.Round2(invoiced.Sub(paid)),
		})
	}
	sort.Slice(stats.Currencies, func(i, j int) bool {
		return stats.Currencies[i].Currency < stats.Currencies[j].Currency
	})
	return stats
}
