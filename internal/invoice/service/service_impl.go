package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicedesk/internal/clock"
	"github.com/smallbiznis/invoicedesk/internal/config"
	"github.com/smallbiznis/invoicedesk/internal/invoice/domain"
	"github.com/smallbiznis/invoicedesk/internal/invoice/format"
	"github.com/smallbiznis/invoicedesk/internal/invoice/render"
	obslogger "github.com/smallbiznis/invoicedesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/invoicedesk/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/invoicedesk/internal/payment/domain"
	"github.com/smallbiznis/invoicedesk/pkg/db"
	"github.com/smallbiznis/invoicedesk/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxInvoiceNumberLength = 64
	maxNumberAttempts      = 5
	maxPaymentAttempts     = 3
)

var maxTaxRate = decimal.NewFromInt(99999)

// errBalanceChanged signals that another payment landed between read and write.
var errBalanceChanged = errors.New("balance_changed")

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	PaymentRepo paymentdomain.Repository
	Renderer    render.Renderer
	Display     *config.DisplayConfigHolder `optional:"true"`
	Metrics     *obsmetrics.Metrics         `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	paymentRepo paymentdomain.Repository
	renderer    render.Renderer
	display     *config.DisplayConfigHolder
	metrics     *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("invoice.service"),
		genID:       p.GenID,
		clock:       clk,
		repo:        p.Repo,
		paymentRepo: p.PaymentRepo,
		renderer:    p.Renderer,
		display:     p.Display,
		metrics:     p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateInvoiceRequest) (domain.Invoice, error) {
	customerName := strings.TrimSpace(req.CustomerName)
	if customerName == "" {
		return domain.Invoice{}, domain.ErrInvalidCustomerName
	}

	currency, err := money.ParseCurrency(req.Currency)
	if err != nil {
		return domain.Invoice{}, domain.ErrInvalidCurrency
	}

	if req.IssueDate.IsZero() {
		return domain.Invoice{}, domain.ErrInvalidIssueDate
	}
	if req.DueDate.IsZero() || !req.DueDate.After(req.IssueDate) {
		return domain.Invoice{}, domain.ErrInvalidDueDate
	}

	taxRate := req.TaxRate
	if taxRate.IsNegative() || taxRate.GreaterThan(maxTaxRate) || !taxRate.Equal(taxRate.Round(4)) {
		return domain.Invoice{}, domain.ErrInvalidTaxRate
	}

	number := strings.TrimSpace(req.InvoiceNumber)
	if len(number) > maxInvoiceNumberLength {
		return domain.Invoice{}, domain.ErrInvalidInvoiceNumber
	}

	items, err := domain.BuildLineItems(req.LineItems)
	if err != nil {
		return domain.Invoice{}, err
	}
	totals, err := domain.ComputeTotals(items, taxRate)
	if err != nil {
		return domain.Invoice{}, err
	}

	now := s.clock.Now()
	invoice := domain.Invoice{
		ID:            s.genID.Generate(),
		InvoiceNumber: number,
		CustomerName:  customerName,
		IssueDate:     req.IssueDate.UTC(),
		DueDate:       req.DueDate.UTC(),
		Currency:      currency,
		LineItems:     items,
		Subtotal:      totals.Subtotal,
		TaxRate:       taxRate,
		TaxAmount:     totals.TaxAmount,
		Total:         totals.Total,
		AmountPaid:    0,
		BalanceDue:    totals.Total,
		Status:        domain.InvoiceStatusDraft,
		IsArchived:    false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if number != "" {
		err = s.repo.Insert(ctx, s.db, &invoice)
		if db.IsDuplicateKeyErr(err) {
			return domain.Invoice{}, domain.ErrDuplicateInvoiceNumber
		}
	} else {
		err = s.insertWithGeneratedNumber(ctx, &invoice)
	}
	if err != nil {
		return domain.Invoice{}, err
	}

	invoice.Payments = []paymentdomain.Payment{}
	s.metrics.RecordInvoiceCreated(ctx, string(invoice.Currency))
	obslogger.ForInvoice(ctx, s.log, invoice.ID).Info("invoice created",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("currency", string(invoice.Currency)),
		zap.Int64("total_minor", int64(invoice.Total)),
	)

	return invoice, nil
}

// insertWithGeneratedNumber numbers the invoice from the running count,
// stepping past numbers already taken.
func (s *Service) insertWithGeneratedNumber(ctx context.Context, invoice *domain.Invoice) error {
	count, err := s.repo.Count(ctx, s.db)
	if err != nil {
		return err
	}

	for attempt := int64(1); attempt <= maxNumberAttempts; attempt++ {
		number, err := format.FormatInvoiceNumber(format.DefaultInvoiceNumberTemplate, invoice.IssueDate, count+attempt)
		if err != nil {
			return err
		}
		invoice.InvoiceNumber = number

		err = s.repo.Insert(ctx, s.db, invoice)
		if err == nil {
			return nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return err
		}
	}
	return domain.ErrDuplicateInvoiceNumber
}

func (s *Service) List(ctx context.Context) ([]domain.Invoice, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}

	ids := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		if item != nil {
			ids = append(ids, item.ID)
		}
	}
	payments, err := s.paymentRepo.ListByInvoices(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}

	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		inv := *item
		inv.Payments = payments[inv.ID]
		if inv.Payments == nil {
			inv.Payments = []paymentdomain.Payment{}
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.Invoice, error) {
	id, err := s.parseID(rawID)
	if err != nil {
		return domain.Invoice{}, err
	}
	return s.load(ctx, s.db, id)
}

func (s *Service) RecordPayment(ctx context.Context, req domain.RecordPaymentRequest) (domain.Invoice, error) {
	id, err := s.parseID(req.InvoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}

	var result domain.Invoice
	for attempt := 1; attempt <= maxPaymentAttempts; attempt++ {
		result, err = s.applyPayment(ctx, id, req)
		if !errors.Is(err, errBalanceChanged) {
			break
		}
		obslogger.ForInvoice(ctx, s.log, id).Debug("payment raced, retrying",
			zap.Int("attempt", attempt),
		)
	}

	switch {
	case errors.Is(err, errBalanceChanged):
		s.metrics.RecordPaymentRejected(ctx, "concurrent_update")
		return domain.Invoice{}, domain.ErrConcurrentUpdate
	case errors.Is(err, domain.ErrInvalidAmount):
		s.metrics.RecordPaymentRejected(ctx, "invalid_amount")
		return domain.Invoice{}, err
	case errors.Is(err, domain.ErrAmountExceedsBalance):
		s.metrics.RecordPaymentRejected(ctx, "exceeds_balance")
		return domain.Invoice{}, err
	case err != nil:
		return domain.Invoice{}, err
	}

	s.metrics.RecordPayment(ctx, string(result.Currency), string(result.Status), int64(req.Amount))
	obslogger.ForInvoice(ctx, s.log, result.ID).Info("payment recorded",
		zap.Int64("amount_minor", int64(req.Amount)),
		zap.Int64("balance_due_minor", int64(result.BalanceDue)),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

// applyPayment credits one payment inside a transaction. The invoice row is
// only written if amount_paid is unchanged since it was read, so concurrent
// payments can never over-credit an invoice.
func (s *Service) applyPayment(ctx context.Context, id snowflake.ID, req domain.RecordPaymentRequest) (domain.Invoice, error) {
	var result domain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}

		now := s.clock.Now()
		updated, err := domain.ApplyPayment(*current, req.Amount, now)
		if err != nil {
			return err
		}

		ok, err := s.repo.UpdateBalance(ctx, tx, &updated, int64(current.AmountPaid))
		if err != nil {
			return err
		}
		if !ok {
			return errBalanceChanged
		}

		paymentDate := now
		if req.PaymentDate != nil && !req.PaymentDate.IsZero() {
			paymentDate = req.PaymentDate.UTC()
		}
		payment := paymentdomain.Payment{
			ID:          s.genID.Generate(),
			InvoiceID:   id,
			Amount:      req.Amount,
			PaymentDate: paymentDate,
			CreatedAt:   now,
		}
		if err := s.paymentRepo.Insert(ctx, tx, &payment); err != nil {
			return err
		}

		result, err = s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if !domain.Reconcile(result, paymentAmounts(result.Payments)) {
			obslogger.ForInvoice(ctx, s.log, id).Error("invoice ledger out of balance after payment",
				zap.Int64("amount_paid_minor", int64(result.AmountPaid)),
				zap.Int64("total_minor", int64(result.Total)),
			)
		}
		return nil
	})
	return result, err
}

func (s *Service) SetArchived(ctx context.Context, req domain.SetArchivedRequest) (domain.Invoice, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Invoice{}, err
	}

	var result domain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		if current.IsArchived != req.IsArchived {
			if err := s.repo.SetArchived(ctx, tx, id, req.IsArchived, s.clock.Now()); err != nil {
				return err
			}
		}
		result, err = s.load(ctx, tx, id)
		return err
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	return result, nil
}

func (s *Service) Delete(ctx context.Context, rawID string) error {
	id, err := s.parseID(rawID)
	if err != nil {
		return err
	}

	var removedPayments int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}

		removedPayments, err = s.paymentRepo.DeleteByInvoice(ctx, tx, id)
		if err != nil {
			return err
		}
		rows, err := s.repo.Delete(ctx, tx, id)
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.RecordInvoiceDeleted(ctx)
	obslogger.ForInvoice(ctx, s.log, id).Info("invoice deleted",
		zap.Int64("payments_removed", removedPayments),
	)
	return nil
}

func (s *Service) load(ctx context.Context, tx *gorm.DB, id snowflake.ID) (domain.Invoice, error) {
	item, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if item == nil {
		return domain.Invoice{}, domain.ErrNotFound
	}
	payments, err := s.paymentRepo.ListByInvoice(ctx, tx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	item.Payments = payments
	return *item, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func paymentAmounts(payments []paymentdomain.Payment) []money.Amount {
	amounts := make([]money.Amount, 0, len(payments))
	for _, p := range payments {
		amounts = append(amounts, p.Amount)
	}
	return amounts
}
