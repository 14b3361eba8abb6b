package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicedesk/internal/invoice/domain"
	"gorm.io/gorm"
)

const invoiceColumns = `id, invoice_number, customer_name, issue_date, due_date, currency,
	line_items, subtotal, tax_rate, tax_amount, total, amount_paid, balance_due,
	status, is_archived, paid_at, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoices (`+invoiceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.InvoiceNumber,
		invoice.CustomerName,
		invoice.IssueDate,
		invoice.DueDate,
		invoice.Currency,
		invoice.LineItems,
		invoice.Subtotal,
		invoice.TaxRate,
		invoice.TaxAmount,
		invoice.Total,
		invoice.AmountPaid,
		invoice.BalanceDue,
		invoice.Status,
		invoice.IsArchived,
		invoice.PaidAt,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`,
		id,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT ` + invoiceColumns + ` FROM invoices ORDER BY created_at DESC, id DESC`,
	).Scan(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM invoices`).Scan(&count).Error
	return count, err
}

func (r *repo) UpdateBalance(ctx context.Context, db *gorm.DB, invoice *domain.Invoice, prevAmountPaid int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET amount_paid = ?, balance_due = ?, status = ?, paid_at = ?, updated_at = ?
		 WHERE id = ? AND amount_paid = ?`,
		invoice.AmountPaid,
		invoice.BalanceDue,
		invoice.Status,
		invoice.PaidAt,
		invoice.UpdatedAt,
		invoice.ID,
		prevAmountPaid,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) SetArchived(ctx context.Context, db *gorm.DB, id snowflake.ID, archived bool, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET is_archived = ?, updated_at = ? WHERE id = ?`,
		archived,
		at,
		id,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Exec(`DELETE FROM invoices WHERE id = ?`, id)
	return result.RowsAffected, result.Error
}
