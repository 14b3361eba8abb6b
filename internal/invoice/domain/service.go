package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/invoicedesk/pkg/money"
)

type CreateInvoiceRequest struct {
	InvoiceNumber string
	CustomerName  string
	IssueDate     time.Time
	DueDate       time.Time
	Currency      string
	TaxRate       money.Number
	LineItems     []LineItemInput
}

type RecordPaymentRequest struct {
	InvoiceID   string
	Amount      money.Amount
	PaymentDate *time.Time
}

type SetArchivedRequest struct {
	ID         string
	IsArchived bool
}

// Document is a rendered invoice export.
type Document struct {
	Filename    string
	ContentType string
	Content     []byte
}

type Service interface {
	Create(context.Context, CreateInvoiceRequest) (Invoice, error)
	List(context.Context) ([]Invoice, error)
	GetByID(context.Context, string) (Invoice, error)
	RecordPayment(context.Context, RecordPaymentRequest) (Invoice, error)
	SetArchived(context.Context, SetArchivedRequest) (Invoice, error)
	Delete(context.Context, string) error
	RenderHTML(context.Context, string) (string, error)
	RenderPDF(context.Context, string) (Document, error)
}

var (
	ErrInvalidID                  = errors.New("invalid_id")
	ErrInvalidCustomerName        = errors.New("invalid_customer_name")
	ErrInvalidCurrency            = errors.New("invalid_currency")
	ErrInvalidIssueDate           = errors.New("invalid_issue_date")
	ErrInvalidDueDate             = errors.New("invalid_due_date")
	ErrInvalidInvoiceNumber       = errors.New("invalid_invoice_number")
	ErrInvalidTaxRate             = errors.New("invalid_tax_rate")
	ErrMissingLineItems           = errors.New("missing_line_items")
	ErrInvalidLineItemDescription = errors.New("invalid_line_item_description")
	ErrInvalidLineItemQuantity    = errors.New("invalid_line_item_quantity")
	ErrInvalidLineItemUnitPrice   = errors.New("invalid_line_item_unit_price")
	ErrInvoiceTooLarge            = errors.New("invoice_too_large")
	ErrInvalidAmount              = errors.New("invalid_amount")
	ErrAmountExceedsBalance       = errors.New("amount_exceeds_balance")
	ErrDuplicateInvoiceNumber     = errors.New("duplicate_invoice_number")
	ErrConcurrentUpdate           = errors.New("concurrent_update")
	ErrNotFound                   = errors.New("not_found")
)
