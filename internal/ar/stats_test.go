package ar

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/invoicing"
	"github.com/odyssey-erp/backoffice/internal/platform/cache"
)

func TestComputeStats(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.AddDate(0, 0, 10)
	past := now.AddDate(0, 0, -10)
	rows := []StatsRow{
		{ID: uuid.New(), Status: invoicing.StatusDraft, IssueStatus: invoicing.StatusDraft, Currency: "USD", TotalAmount: dec("100"), DueDate: future},
		{ID: uuid.New(), Status: invoicing.StatusSent, IssueStatus: invoicing.StatusSent, Currency: "USD", TotalAmount: dec("50.25"), DueDate: past},
		{ID: uuid.New(), Status: invoicing.StatusPartial, IssueStatus: invoicing.StatusSent, Currency: "USD", TotalAmount: dec("80"), PaidAmount: dec("30"), DueDate: past},
		{ID: uuid.New(), Status: invoicing.StatusPaid, IssueStatus: invoicing.StatusSent, Currency: "EUR", TotalAmount: dec("40"), PaidAmount: dec("40"), DueDate: past},
		{ID: uuid.New(), Status: invoicing.StatusCancelled, IssueStatus: invoicing.StatusSent, Currency: "EUR", TotalAmount: dec("999"), DueDate: past},
	}

	stats := ComputeStats(rows, now)

	require.Equal(t, 5, stats.TotalInvoices)
	require.Equal(t, 1, stats.ByStatus[invoicing.StatusDraft])
	require.Equal(t, 0, stats.ByStatus[invoicing.StatusSent])
	require.Equal(t, 1, stats.ByStatus[invoicing.StatusOverdue])
	require.Equal(t, 1, stats.ByStatus[invoicing.StatusPartial])
	require.Equal(t, 1, stats.ByStatus[invoicing.StatusPaid])
	require.Equal(t, 1, stats.ByStatus[invoicing.StatusCancelled])
	require.Equal(t, 1, stats.OverdueCount)

	require.Len(t, stats.Currencies, 2)
	eur, usd := stats.Currencies[0], stats.Currencies[1]
	require.Equal(t, "EUR", eur.Currency)
	require.Equal(t, 1, eur.Invoices)
	require.True(t, eur.Outstanding.IsZero())
	require.Equal(t, "USD", usd.Currency)
	require.Equal(t, 3, usd.Invoices)
	require.True(t, usd.Invoiced.Equal(dec("230.25")))
	require.True(t, usd.Paid.Equal(dec("30")))
	require.True(t, usd.Outstanding.Equal(dec("200.25")))
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(nil, time.Now())

	require.Zero(t, stats.TotalInvoices)
	require.Empty(t, stats.Currencies)
	require.Len(t, stats.ByStatus, len(invoicing.Statuses))
}

func TestDashboardStatsCachedUntilMutation(t *testing.T) {
	f := newServiceFixture(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	f.svc.cache = cache.NewVersioned(client, "invoices", time.Minute)
	ctx := context.Background()

	inv := f.create(t)
	first, err := f.svc.DashboardStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, first.TotalInvoices)
	require.Equal(t, 1, f.repo.statsCalls)

	second, err := f.svc.DashboardStats(ctx)
	require.NoError(t, err)
	require.Equal(t, first.TotalInvoices, second.TotalInvoices)
	require.Equal(t, 1, f.repo.statsCalls)

	_, _, err = f.svc.PayInFull(ctx, inv.ID, PaymentRequest{}, "")
	require.NoError(t, err)

	third, err := f.svc.DashboardStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, f.repo.statsCalls)
	require.Equal(t, 1, third.ByStatus[invoicing.StatusPaid])
	require.True(t, third.Currencies[0].Outstanding.IsZero())
}

func TestDashboardStatsWithoutCache(t *testing.T) {
	f := newServiceFixture(t)
	f.create(t)
	f.create(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats, err := f.svc.DashboardStats(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 2, stats.TotalInvoices)
		}()
	}
	wg.Wait()
}
