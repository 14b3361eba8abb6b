package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	ListByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]Payment, error)
	ListByInvoices(ctx context.Context, db *gorm.DB, invoiceIDs []snowflake.ID) (map[snowflake.ID][]Payment, error)
	DeleteByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int64, error)
}
