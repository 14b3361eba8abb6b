package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB) ([]*Invoice, error)
	Count(ctx context.Context, db *gorm.DB) (int64, error)
	// UpdateBalance writes the payment-derived fields of invoice only if the
	// stored amount_paid still equals prevAmountPaid. It reports whether the
	// row was updated.
	UpdateBalance(ctx context.Context, db *gorm.DB, invoice *Invoice, prevAmountPaid int64) (bool, error)
	SetArchived(ctx context.Context, db *gorm.DB, id snowflake.ID, archived bool, at time.Time) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
}
