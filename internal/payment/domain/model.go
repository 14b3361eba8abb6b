package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicedesk/pkg/money"
)

// Payment is an immutable record of money received against an invoice.
type Payment struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID `gorm:"not null;index" json:"invoiceId"`
	Amount      money.Amount `gorm:"not null" json:"amount"`
	PaymentDate time.Time    `gorm:"not null" json:"paymentDate"`
	CreatedAt   time.Time    `gorm:"not null" json:"createdAt"`
}

func (Payment) TableName() string { return "payments" }
