package invoicing

import "time"

// DeriveStatus computes the status implied by the balance and due date. Cancelled and
// manually overridden invoices keep their current status.
func DeriveStatus(inv Invoice, now time.Time) Status {
	if inv.Status == StatusCancelled || inv.StatusOverride {
		return inv.Status
	}
	outstanding := OutstandingBalance(inv)
	switch {
	case outstanding.IsZero() && inv.TotalAmount.IsPositive():
		return StatusPaid
	case inv.PaidAmount.IsPositive() && outstanding.IsPositive():
		return StatusPartial
	case !inv.DueDate.IsZero() && inv.DueDate.Before(now) && outstanding.IsPositive():
		return StatusOverdue
	}
	return issueStatus(inv)
}

// IsEditable reports whether items, tax rate, discount, currency and customer may change.
func IsEditable(s Status) bool {
	return s == StatusDraft || s == StatusSent
}

func issueStatus(inv Invoice) Status {
	if inv.IssueStatus == StatusSent {
		return StatusSent
	}
	return StatusDraft
}

func rederive(inv *Invoice, now time.Time) {
	inv.Status = DeriveStatus(*inv, now)
}
