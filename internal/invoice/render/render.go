package render

import (
	"fmt"
	"time"

	"github.com/smallbiznis/invoicedesk/internal/invoice/domain"
	"github.com/smallbiznis/invoicedesk/pkg/money"
)

type Renderer interface {
	RenderHTML(input RenderInput) (string, error)
	RenderPDF(input RenderInput) ([]byte, error)
}

type RenderInput struct {
	Invoice     domain.View
	Currency    money.CurrencyInfo
	DueSoonDays int
	GeneratedAt time.Time
}

type renderer struct {
	html *HTMLRenderer
	pdf  *PDFRenderer
}

func NewRenderer() Renderer {
	return &renderer{html: NewHTMLRenderer(), pdf: NewPDFRenderer()}
}

func (r *renderer) RenderHTML(input RenderInput) (string, error) {
	return r.html.RenderHTML(input)
}

func (r *renderer) RenderPDF(input RenderInput) ([]byte, error) {
	return r.pdf.RenderPDF(input)
}

const (
	toneOK      = "ok"
	toneWarning = "warning"
	toneDanger  = "danger"
	tonePaid    = "paid"
)

// DueStatus describes the due-date banner for an invoice view.
type DueStatus struct {
	Label string
	Tone  string
}

func DueStatusOf(view domain.View, dueSoonDays int) DueStatus {
	if view.Status == domain.InvoiceStatusPaid {
		return DueStatus{Label: "Paid", Tone: tonePaid}
	}
	days := view.DaysRemaining
	if view.IsOverdue {
		if days >= 0 {
			return DueStatus{Label: "Overdue", Tone: toneDanger}
		}
		return DueStatus{Label: fmt.Sprintf("Overdue by %s", pluralDays(-days)), Tone: toneDanger}
	}
	tone := toneOK
	if days <= dueSoonDays {
		tone = toneWarning
	}
	if days == 0 {
		return DueStatus{Label: "Due today", Tone: tone}
	}
	return DueStatus{Label: fmt.Sprintf("Due in %s", pluralDays(days)), Tone: tone}
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func formatMoney(amount money.Amount, symbol string) string {
	return money.Format(amount, symbol)
}

func formatDate(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format("Jan 2, 2006")
}

func formatQuantity(value money.Number) string {
	return value.Decimal.String()
}

func formatRate(value money.Number) string {
	return value.Decimal.String() + "%"
}
