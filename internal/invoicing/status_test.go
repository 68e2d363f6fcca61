package invoicing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeriveStatus(t *testing.T) {
	past := testNow.AddDate(0, 0, -1)
	future := testNow.AddDate(0, 0, 1)
	cases := []struct {
		name string
		inv  Invoice
		want Status
	}{
		{"draft open", Invoice{TotalAmount: dec("100"), PaidAmount: dec("0"), DueDate: future, IssueStatus: StatusDraft}, StatusDraft},
		{"sent open", Invoice{TotalAmount: dec("100"), PaidAmount: dec("0"), DueDate: future, IssueStatus: StatusSent}, StatusSent},
		{"paid", Invoice{TotalAmount: dec("100"), PaidAmount: dec("100"), DueDate: past}, StatusPaid},
		{"partial beats overdue", Invoice{TotalAmount: dec("100"), PaidAmount: dec("1"), DueDate: past}, StatusPartial},
		{"overdue", Invoice{TotalAmount: dec("100"), PaidAmount: dec("0"), DueDate: past, IssueStatus: StatusSent}, StatusOverdue},
		{"zero total stays draft", Invoice{TotalAmount: dec("0"), PaidAmount: dec("0"), DueDate: past}, StatusDraft},
		{"cancelled sticks", Invoice{Status: StatusCancelled, TotalAmount: dec("100"), PaidAmount: dec("100")}, StatusCancelled},
		{"override sticks", Invoice{Status: StatusOverdue, StatusOverride: true, TotalAmount: dec("100"), PaidAmount: dec("0"), DueDate: future}, StatusOverdue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DeriveStatus(tc.inv, testNow))
		})
	}
}

func TestIsEditable(t *testing.T) {
	for _, s := range Statuses {
		want := s == StatusDraft || s == StatusSent
		require.Equal(t, want, IsEditable(s), s)
	}
}

func TestSetStatus(t *testing.T) {
	e := newTestEngine()
	inv := newTestInvoice(t, e)

	sent, err := e.SetStatus(inv, StatusSent)
	require.NoError(t, err)
	require.Equal(t, StatusSent, sent.Status)
	require.Equal(t, StatusSent, sent.IssueStatus)

	overdue, err := e.SetStatus(sent, StatusOverdue)
	require.NoError(t, err)
	require.Equal(t, StatusOverdue, overdue.Status)
	require.True(t, overdue.StatusOverride)
	refreshed, changed := e.RefreshStatus(overdue)
	require.False(t, changed)
	require.Equal(t, StatusOverdue, refreshed.Status)

	back, err := e.SetStatus(overdue, StatusDraft)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, back.Status)
	require.False(t, back.StatusOverride)

	_, err = e.SetStatus(back, Status("Archived"))
	require.ErrorIs(t, err, ErrValidation)

	cancelled, err := e.SetStatus(back, StatusCancelled)
	require.NoError(t, err)
	for _, s := range Statuses {
		_, err = e.SetStatus(cancelled, s)
		require.ErrorIs(t, err, ErrInvalidState, s)
	}
	_, err = e.UpdateInvoiceItems(cancelled, sampleItems())
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestRefreshStatusTurnsOverdue(t *testing.T) {
	e := newTestEngine()
	inv := newTestInvoice(t, e)
	inv, err := e.SetStatus(inv, StatusSent)
	require.NoError(t, err)

	later := NewEngine(WithClock(func() time.Time { return testNow.AddDate(0, 2, 0) }))
	refreshed, changed := later.RefreshStatus(inv)
	require.True(t, changed)
	require.Equal(t, StatusOverdue, refreshed.Status)
	require.Equal(t, StatusSent, refreshed.IssueStatus)
}
