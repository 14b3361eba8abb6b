package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/invoicedesk/internal/payment/domain"
	"github.com/smallbiznis/invoicedesk/pkg/money"
	"gorm.io/datatypes"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft InvoiceStatus = "DRAFT"
	InvoiceStatusPaid  InvoiceStatus = "PAID"
)

// LineItem is embedded in its invoice and has no identity of its own.
// LineTotal is always derived from Quantity and UnitPrice.
type LineItem struct {
	Description string       `json:"description"`
	Quantity    money.Number `json:"quantity"`
	UnitPrice   money.Amount `json:"unitPrice"`
	LineTotal   money.Amount `json:"lineTotal"`
}

type Invoice struct {
	ID            snowflake.ID                  `gorm:"primaryKey" json:"id"`
	InvoiceNumber string                        `gorm:"type:varchar(64);not null;uniqueIndex" json:"invoiceNumber"`
	CustomerName  string                        `gorm:"not null" json:"customerName"`
	IssueDate     time.Time                     `gorm:"not null" json:"issueDate"`
	DueDate       time.Time                     `gorm:"not null" json:"dueDate"`
	Currency      money.Currency                `gorm:"type:varchar(3);not null" json:"currency"`
	LineItems     datatypes.JSONSlice[LineItem] `gorm:"not null" json:"lineItems"`
	Subtotal      money.Amount                  `gorm:"not null" json:"subtotal"`
	TaxRate       money.Number                  `gorm:"type:numeric(9,4);not null" json:"taxRate"`
	TaxAmount     money.Amount                  `gorm:"not null" json:"taxAmount"`
	Total         money.Amount                  `gorm:"not null" json:"total"`
	AmountPaid    money.Amount                  `gorm:"not null" json:"amountPaid"`
	BalanceDue    money.Amount                  `gorm:"not null" json:"balanceDue"`
	Status        InvoiceStatus                 `gorm:"type:varchar(16);not null" json:"status"`
	IsArchived    bool                          `gorm:"not null" json:"isArchived"`
	PaidAt        *time.Time                    `json:"paidAt,omitempty"`
	CreatedAt     time.Time                     `gorm:"not null" json:"createdAt"`
	UpdatedAt     time.Time                     `gorm:"not null" json:"updatedAt"`

	Payments []paymentdomain.Payment `gorm:"-" json:"payments"`
}

func (Invoice) TableName() string { return "invoices" }
