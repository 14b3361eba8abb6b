package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicedesk/pkg/money"
)

var (
	hundred     = decimal.NewFromInt(100)
	maxQuantity = decimal.NewFromInt(1_000_000_000)
)

type LineItemInput struct {
	Description string
	Quantity    money.Number
	UnitPrice   money.Amount
}

type Totals struct {
	Subtotal  money.Amount
	TaxAmount money.Amount
	Total     money.Amount
}

// LineTotal is quantity × unit price rounded to the minor unit.
func LineTotal(quantity money.Number, unitPrice money.Amount) (money.Amount, error) {
	total, err := money.RoundDecimal(quantity.Mul(unitPrice.Decimal()))
	if err != nil {
		return 0, ErrInvoiceTooLarge
	}
	return total, nil
}

// BuildLineItems validates the inputs and derives every line total.
// Any client-supplied total is ignored.
func BuildLineItems(inputs []LineItemInput) ([]LineItem, error) {
	if len(inputs) == 0 {
		return nil, ErrMissingLineItems
	}
	items := make([]LineItem, 0, len(inputs))
	for _, in := range inputs {
		description := strings.TrimSpace(in.Description)
		if description == "" {
			return nil, ErrInvalidLineItemDescription
		}
		if !in.Quantity.IsPositive() || in.Quantity.GreaterThan(maxQuantity) {
			return nil, ErrInvalidLineItemQuantity
		}
		if in.UnitPrice < 0 || !in.UnitPrice.InRange() {
			return nil, ErrInvalidLineItemUnitPrice
		}
		lineTotal, err := LineTotal(in.Quantity, in.UnitPrice)
		if err != nil {
			return nil, err
		}
		items = append(items, LineItem{
			Description: description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			LineTotal:   lineTotal,
		})
	}
	return items, nil
}

// ComputeTotals derives subtotal, tax and total. Tax is
// subtotal × rate / 100, rounded half away from zero.
// Any figure past money.MaxMinor fails with ErrInvoiceTooLarge.
func ComputeTotals(items []LineItem, taxRate money.Number) (Totals, error) {
	lineTotals := make([]money.Amount, 0, len(items))
	for _, item := range items {
		lineTotals = append(lineTotals, item.LineTotal)
	}
	subtotal, err := money.Add(lineTotals...)
	if err != nil {
		return Totals{}, ErrInvoiceTooLarge
	}
	tax, err := money.RoundDecimal(subtotal.Decimal().Mul(taxRate.Decimal).Div(hundred))
	if err != nil {
		return Totals{}, ErrInvoiceTooLarge
	}
	total, err := money.Add(subtotal, tax)
	if err != nil {
		return Totals{}, ErrInvoiceTooLarge
	}
	return Totals{
		Subtotal:  subtotal,
		TaxAmount: tax,
		Total:     total,
	}, nil
}

// CheckPayment validates amount against the invoice's outstanding balance.
func CheckPayment(inv Invoice, amount money.Amount) error {
	if amount <= 0 || !amount.InRange() {
		return ErrInvalidAmount
	}
	if amount > inv.BalanceDue {
		return ErrAmountExceedsBalance
	}
	return nil
}

// ApplyPayment returns inv with amount credited. The invoice becomes PAID
// exactly when the balance reaches zero; PAID never reverts.
func ApplyPayment(inv Invoice, amount money.Amount, at time.Time) (Invoice, error) {
	if err := CheckPayment(inv, amount); err != nil {
		return Invoice{}, err
	}
	inv.AmountPaid += amount
	inv.BalanceDue = inv.Total - inv.AmountPaid
	if inv.BalanceDue == 0 && inv.Status != InvoiceStatusPaid {
		inv.Status = InvoiceStatusPaid
		paidAt := at
		inv.PaidAt = &paidAt
	}
	inv.UpdatedAt = at
	return inv, nil
}

// Reconcile reports whether the stored figures satisfy the ledger identities.
func Reconcile(inv Invoice, payments []money.Amount) bool {
	totals, err := ComputeTotals(inv.LineItems, inv.TaxRate)
	if err != nil || totals != (Totals{Subtotal: inv.Subtotal, TaxAmount: inv.TaxAmount, Total: inv.Total}) {
		return false
	}
	paid, err := money.Add(payments...)
	if err != nil || paid != inv.AmountPaid || inv.BalanceDue != inv.Total-inv.AmountPaid {
		return false
	}
	if inv.AmountPaid < 0 || inv.AmountPaid > inv.Total {
		return false
	}
	return (inv.Status == InvoiceStatusPaid) == (inv.BalanceDue == 0)
}
