package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/invoicedesk/internal/clock"
	"github.com/smallbiznis/invoicedesk/internal/invoice/domain"
	"github.com/smallbiznis/invoicedesk/internal/invoice/render"
	"github.com/smallbiznis/invoicedesk/internal/invoice/repository"
	"github.com/smallbiznis/invoicedesk/internal/migration"
	paymentdomain "github.com/smallbiznis/invoicedesk/internal/payment/domain"
	paymentrepository "github.com/smallbiznis/invoicedesk/internal/payment/repository"
	"github.com/smallbiznis/invoicedesk/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	svc   domain.Service
	db    *gorm.DB
	clock *clock.FakeClock
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	return newTestEnvWithRepos(t, repository.Provide(), paymentrepository.Provide())
}

func newTestEnvWithRepos(t *testing.T, repo domain.Repository, paymentRepo paymentdomain.Repository) testEnv {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(testNow)
	svc := New(Params{
		DB:          conn,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		Repo:        repo,
		PaymentRepo: paymentRepo,
		Renderer:    render.NewRenderer(),
	})
	return testEnv{svc: svc, db: conn, clock: clk}
}

func sampleRequest(number string) domain.CreateInvoiceRequest {
	return domain.CreateInvoiceRequest{
		InvoiceNumber: number,
		CustomerName:  "Acme Co",
		IssueDate:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:       time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Currency:      "usd",
		TaxRate:       money.MustNumber("10"),
		LineItems: []domain.LineItemInput{
			{Description: "Widget", Quantity: money.MustNumber("2"), UnitPrice: 5000},
			{Description: "Setup", Quantity: money.MustNumber("1"), UnitPrice: 10000},
		},
	}
}

func pay(t *testing.T, env testEnv, id snowflake.ID, amount money.Amount) (domain.Invoice, error) {
	t.Helper()
	return env.svc.RecordPayment(context.Background(), domain.RecordPaymentRequest{
		InvoiceID: id.String(),
		Amount:    amount,
	})
}

func TestCreateComputesTotals(t *testing.T) {
	env := newTestEnv(t)

	inv, err := env.svc.Create(context.Background(), sampleRequest("INV-1"))
	require.NoError(t, err)

	assert.NotZero(t, inv.ID)
	assert.Equal(t, "INV-1", inv.InvoiceNumber)
	assert.Equal(t, money.USD, inv.Currency)
	assert.Equal(t, money.Amount(20000), inv.Subtotal)
	assert.Equal(t, money.Amount(2000), inv.TaxAmount)
	assert.Equal(t, money.Amount(22000), inv.Total)
	assert.Equal(t, money.Amount(0), inv.AmountPaid)
	assert.Equal(t, money.Amount(22000), inv.BalanceDue)
	assert.Equal(t, domain.InvoiceStatusDraft, inv.Status)
	assert.False(t, inv.IsArchived)
	assert.NotNil(t, inv.Payments)
	require.Len(t, inv.LineItems, 2)
	assert.Equal(t, money.Amount(10000), inv.LineItems[0].LineTotal)

	stored, err := env.svc.GetByID(context.Background(), inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, inv.Total, stored.Total)
	assert.True(t, stored.TaxRate.Equal(inv.TaxRate.Decimal))
	assert.Len(t, stored.LineItems, 2)
	assert.Empty(t, stored.Payments)
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*domain.CreateInvoiceRequest)
		err    error
	}{
		{"blank customer", func(r *domain.CreateInvoiceRequest) { r.CustomerName = "  " }, domain.ErrInvalidCustomerName},
		{"unknown currency", func(r *domain.CreateInvoiceRequest) { r.Currency = "JPY" }, domain.ErrInvalidCurrency},
		{"due before issue", func(r *domain.CreateInvoiceRequest) { r.DueDate = r.IssueDate }, domain.ErrInvalidDueDate},
		{"negative tax", func(r *domain.CreateInvoiceRequest) { r.TaxRate = money.MustNumber("-1") }, domain.ErrInvalidTaxRate},
		{"too precise tax", func(r *domain.CreateInvoiceRequest) { r.TaxRate = money.MustNumber("1.00001") }, domain.ErrInvalidTaxRate},
		{"no items", func(r *domain.CreateInvoiceRequest) { r.LineItems = nil }, domain.ErrMissingLineItems},
		{"zero quantity", func(r *domain.CreateInvoiceRequest) { r.LineItems[0].Quantity = money.MustNumber("0") }, domain.ErrInvalidLineItemQuantity},
		{"negative price", func(r *domain.CreateInvoiceRequest) { r.LineItems[0].UnitPrice = -1 }, domain.ErrInvalidLineItemUnitPrice},
		{"blank description", func(r *domain.CreateInvoiceRequest) { r.LineItems[1].Description = "" }, domain.ErrInvalidLineItemDescription},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := sampleRequest("")
			tc.mutate(&req)
			_, err := env.svc.Create(ctx, req)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	list, err := env.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateRejectsDuplicateNumber(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, sampleRequest("INV-7"))
	require.NoError(t, err)

	_, err = env.svc.Create(ctx, sampleRequest("INV-7"))
	assert.ErrorIs(t, err, domain.ErrDuplicateInvoiceNumber)
}

func TestCreateGeneratesNumber(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.svc.Create(ctx, sampleRequest(""))
	require.NoError(t, err)
	assert.Equal(t, "INV-20240301-000001", first.InvoiceNumber)

	// A manual number that collides with the next generated one is skipped.
	_, err = env.svc.Create(ctx, sampleRequest("INV-20240301-000003"))
	require.NoError(t, err)

	third, err := env.svc.Create(ctx, sampleRequest(""))
	require.NoError(t, err)
	assert.Equal(t, "INV-20240301-000004", third.InvoiceNumber)
}

func TestPayFullBalanceMarksPaid(t *testing.T) {
	env := newTestEnv(t)
	inv, err := env.svc.Create(context.Background(), sampleRequest("INV-1"))
	require.NoError(t, err)

	paid, err := pay(t, env, inv.ID, 22000)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, paid.Status)
	assert.Equal(t, money.Amount(0), paid.BalanceDue)
	assert.Equal(t, money.Amount(22000), paid.AmountPaid)
	require.NotNil(t, paid.PaidAt)
	require.Len(t, paid.Payments, 1)
	assert.Equal(t, money.Amount(22000), paid.Payments[0].Amount)

	_, err = pay(t, env, inv.ID, 1)
	assert.ErrorIs(t, err, domain.ErrAmountExceedsBalance)
}

func TestPartialPayments(t *testing.T) {
	env := newTestEnv(t)
	inv, err := env.svc.Create(context.Background(), sampleRequest("INV-1"))
	require.NoError(t, err)

	afterFirst, err := pay(t, env, inv.ID, 10000)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusDraft, afterFirst.Status)
	assert.Equal(t, money.Amount(12000), afterFirst.BalanceDue)
	assert.Nil(t, afterFirst.PaidAt)

	env.clock.Advance(time.Hour)
	afterSecond, err := pay(t, env, inv.ID, 12000)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, afterSecond.Status)
	assert.Equal(t, money.Amount(0), afterSecond.BalanceDue)
	require.Len(t, afterSecond.Payments, 2)
	assert.Equal(t, money.Amount(10000), afterSecond.Payments[0].Amount)
	assert.Equal(t, money.Amount(12000), afterSecond.Payments[1].Amount)
}

func TestOverpaymentLeavesInvoiceUnchanged(t *testing.T) {
	env := newTestEnv(t)
	inv, err := env.svc.Create(context.Background(), sampleRequest("INV-1"))
	require.NoError(t, err)

	_, err = pay(t, env, inv.ID, 25000)
	assert.ErrorIs(t, err, domain.ErrAmountExceedsBalance)

	_, err = pay(t, env, inv.ID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = pay(t, env, inv.ID, -500)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	stored, err := env.svc.GetByID(context.Background(), inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, money.Amount(0), stored.AmountPaid)
	assert.Equal(t, money.Amount(22000), stored.BalanceDue)
	assert.Equal(t, domain.InvoiceStatusDraft, stored.Status)
	assert.Empty(t, stored.Payments)
}

func TestPaymentChecksExistenceFirst(t *testing.T) {
	env := newTestEnv(t)

	_, err := pay(t, env, snowflake.ID(12345), 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.svc.RecordPayment(context.Background(), domain.RecordPaymentRequest{InvoiceID: "abc", Amount: 100})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestConcurrentPaymentsNeverOverCredit(t *testing.T) {
	env := newTestEnv(t)
	inv, err := env.svc.Create(context.Background(), sampleRequest("INV-1"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = pay(t, env, inv.ID, 10000)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 2, succeeded)

	stored, err := env.svc.GetByID(context.Background(), inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, money.Amount(20000), stored.AmountPaid)
	assert.Equal(t, money.Amount(2000), stored.BalanceDue)
	assert.Len(t, stored.Payments, 2)
	assert.True(t, domain.Reconcile(stored, paymentAmounts(stored.Payments)))
}

var errStoreDown = errors.New("store down")

// failingPaymentRepo delegates to the sqlite repository except for Insert.
type failingPaymentRepo struct {
	paymentdomain.Repository
	mock.Mock
}

func (r *failingPaymentRepo) Insert(ctx context.Context, db *gorm.DB, payment *paymentdomain.Payment) error {
	return r.Called(ctx, payment).Error(0)
}

// failingInvoiceRepo delegates to the sqlite repository except for Delete.
type failingInvoiceRepo struct {
	domain.Repository
	mock.Mock
}

func (r *failingInvoiceRepo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	args := r.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func TestPaymentRollsBackWhenInsertFails(t *testing.T) {
	paymentRepo := &failingPaymentRepo{Repository: paymentrepository.Provide()}
	paymentRepo.On("Insert", mock.Anything, mock.Anything).Return(errStoreDown)
	env := newTestEnvWithRepos(t, repository.Provide(), paymentRepo)

	inv, err := env.svc.Create(context.Background(), sampleRequest("INV-1"))
	require.NoError(t, err)

	_, err = pay(t, env, inv.ID, 10000)
	require.ErrorIs(t, err, errStoreDown)
	paymentRepo.AssertNumberOfCalls(t, "Insert", 1)

	// the balance update ran before the failed insert and must be undone
	var amountPaid int64
	require.NoError(t, env.db.Raw(`SELECT amount_paid FROM invoices WHERE id = ?`, inv.ID).Scan(&amountPaid).Error)
	assert.Zero(t, amountPaid)

	stored, err := env.svc.GetByID(context.Background(), inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, money.Amount(22000), stored.BalanceDue)
	assert.Equal(t, domain.InvoiceStatusDraft, stored.Status)
	assert.Empty(t, stored.Payments)
}

func TestDeleteRollsBackWhenInvoiceDeleteFails(t *testing.T) {
	repo := &failingInvoiceRepo{Repository: repository.Provide()}
	repo.On("Delete", mock.Anything, mock.Anything).Return(int64(0), errStoreDown)
	env := newTestEnvWithRepos(t, repo, paymentrepository.Provide())
	ctx := context.Background()

	inv, err := env.svc.Create(ctx, sampleRequest("INV-1"))
	require.NoError(t, err)
	_, err = pay(t, env, inv.ID, 1000)
	require.NoError(t, err)
	_, err = pay(t, env, inv.ID, 2000)
	require.NoError(t, err)

	require.ErrorIs(t, env.svc.Delete(ctx, inv.ID.String()), errStoreDown)
	repo.AssertExpectations(t)

	// payments were removed first inside the same transaction
	var remaining int64
	require.NoError(t, env.db.Raw(`SELECT COUNT(*) FROM payments WHERE invoice_id = ?`, inv.ID).Scan(&remaining).Error)
	assert.Equal(t, int64(2), remaining)

	stored, err := env.svc.GetByID(ctx, inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, money.Amount(3000), stored.AmountPaid)
	assert.Len(t, stored.Payments, 2)
}

func TestListNewestFirstWithPayments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	older, err := env.svc.Create(ctx, sampleRequest("INV-1"))
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	newer, err := env.svc.Create(ctx, sampleRequest("INV-2"))
	require.NoError(t, err)

	_, err = pay(t, env, older.ID, 5000)
	require.NoError(t, err)
	_, err = env.svc.SetArchived(ctx, domain.SetArchivedRequest{ID: older.ID.String(), IsArchived: true})
	require.NoError(t, err)

	list, err := env.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.NotNil(t, list[0].Payments)
	assert.Empty(t, list[0].Payments)
	assert.Equal(t, older.ID, list[1].ID)
	assert.True(t, list[1].IsArchived)
	assert.Len(t, list[1].Payments, 1)
}

func TestSetArchivedIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inv, err := env.svc.Create(ctx, sampleRequest("INV-1"))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := env.svc.SetArchived(ctx, domain.SetArchivedRequest{ID: inv.ID.String(), IsArchived: true})
		require.NoError(t, err)
		assert.True(t, got.IsArchived)
		assert.Equal(t, inv.Total, got.Total)
	}

	restored, err := env.svc.SetArchived(ctx, domain.SetArchivedRequest{ID: inv.ID.String(), IsArchived: false})
	require.NoError(t, err)
	assert.False(t, restored.IsArchived)

	_, err = env.svc.SetArchived(ctx, domain.SetArchivedRequest{ID: "999", IsArchived: true})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteRemovesPayments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inv, err := env.svc.Create(ctx, sampleRequest("INV-1"))
	require.NoError(t, err)
	_, err = pay(t, env, inv.ID, 1000)
	require.NoError(t, err)
	_, err = pay(t, env, inv.ID, 2000)
	require.NoError(t, err)

	require.NoError(t, env.svc.Delete(ctx, inv.ID.String()))

	var remaining int64
	require.NoError(t, env.db.Raw(`SELECT COUNT(*) FROM payments WHERE invoice_id = ?`, inv.ID).Scan(&remaining).Error)
	assert.Zero(t, remaining)

	_, err = env.svc.GetByID(ctx, inv.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, env.svc.Delete(ctx, inv.ID.String()), domain.ErrNotFound)
}

func TestGetByIDErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.GetByID(ctx, "not-a-number")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = env.svc.GetByID(ctx, "0")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = env.svc.GetByID(ctx, "4242")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRenderExports(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inv, err := env.svc.Create(ctx, sampleRequest("INV 2024/01"))
	require.NoError(t, err)

	env.clock.Set(time.Date(2024, 4, 5, 12, 0, 0, 0, time.UTC))
	html, err := env.svc.RenderHTML(ctx, inv.ID.String())
	require.NoError(t, err)
	assert.Contains(t, html, "Acme Co")
	assert.Contains(t, html, "Overdue")

	doc, err := env.svc.RenderPDF(ctx, inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "inv-2024-01.pdf", doc.Filename)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.NotEmpty(t, doc.Content)

	_, err = env.svc.RenderPDF(ctx, "77")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
