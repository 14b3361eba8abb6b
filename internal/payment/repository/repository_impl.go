package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicedesk/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (id, invoice_id, amount, payment_date, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		payment.ID,
		payment.InvoiceID,
		payment.Amount,
		payment.PaymentDate,
		payment.CreatedAt,
	).Error
}

func (r *repo) ListByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.Payment, error) {
	payments := []domain.Payment{}
	err := db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, amount, payment_date, created_at
		 FROM payments WHERE invoice_id = ?
		 ORDER BY payment_date ASC, id ASC`,
		invoiceID,
	).Scan(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) ListByInvoices(ctx context.Context, db *gorm.DB, invoiceIDs []snowflake.ID) (map[snowflake.ID][]domain.Payment, error) {
	grouped := make(map[snowflake.ID][]domain.Payment, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return grouped, nil
	}

	var payments []domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, amount, payment_date, created_at
		 FROM payments WHERE invoice_id IN ?
		 ORDER BY payment_date ASC, id ASC`,
		invoiceIDs,
	).Scan(&payments).Error
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		grouped[p.InvoiceID] = append(grouped[p.InvoiceID], p)
	}
	return grouped, nil
}

func (r *repo) DeleteByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Exec(`DELETE FROM payments WHERE invoice_id = ?`, invoiceID)
	return result.RowsAffected, result.Error
}
