package domain

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// View is the read projection of an invoice. Overdue state is computed for
// the instant the view is built and never stored.
type View struct {
	Invoice
	IsOverdue     bool `json:"isOverdue"`
	DaysRemaining int  `json:"daysRemaining"`
}

// IsOverdue reports whether an unpaid invoice is past its due date.
func IsOverdue(dueDate time.Time, status InvoiceStatus, now time.Time) bool {
	return now.After(dueDate) && status != InvoiceStatusPaid
}

// DaysRemaining is ceil((dueDate - now) / 1 day); negative once past due.
func DaysRemaining(dueDate, now time.Time) int {
	return int(math.Ceil(float64(dueDate.Sub(now)) / float64(day)))
}

func Project(inv Invoice, now time.Time) View {
	return View{
		Invoice:       inv,
		IsOverdue:     IsOverdue(inv.DueDate, inv.Status, now),
		DaysRemaining: DaysRemaining(inv.DueDate, now),
	}
}

func ProjectAll(invoices []Invoice, now time.Time) []View {
	views := make([]View, 0, len(invoices))
	for _, inv := range invoices {
		views = append(views, Project(inv, now))
	}
	return views
}
