package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/invoicedesk/internal/invoice/domain"
	"github.com/smallbiznis/invoicedesk/pkg/money"
)

const dateOnlyLayout = "2006-01-02"

type lineItemRequest struct {
	Description string       `json:"description" binding:"required"`
	Quantity    money.Number `json:"quantity"`
	UnitPrice   money.Amount `json:"unitPrice"`
}

type createInvoiceRequest struct {
	InvoiceNumber string            `json:"invoiceNumber" binding:"max=64"`
	CustomerName  string            `json:"customerName" binding:"required"`
	IssueDate     string            `json:"issueDate" binding:"required"`
	DueDate       string            `json:"dueDate" binding:"required"`
	Currency      string            `json:"currency" binding:"omitempty,currency"`
	TaxRate       money.Number      `json:"taxRate"`
	LineItems     []lineItemRequest `json:"lineItems" binding:"required,min=1,dive"`
}

type recordPaymentRequest struct {
	Amount      money.Amount `json:"amount"`
	PaymentDate string       `json:"paymentDate"`
}

type archiveInvoiceRequest struct {
	ID         string `json:"id" binding:"required"`
	IsArchived *bool  `json:"isArchived" binding:"required"`
}

func (s *Server) ListInvoices(c *gin.Context) {
	items, err := s.invoiceSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, invoicedomain.ProjectAll(items, s.clock.Now()))
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	issueDate, err := parseDate(req.IssueDate)
	if err != nil {
		AbortWithError(c, newValidationError("issueDate", "invalid_issue_date", "Issue date must be a date such as 2024-03-01."))
		return
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		AbortWithError(c, newValidationError("dueDate", "invalid_due_date", "Due date must be a date such as 2024-03-01."))
		return
	}

	items := make([]invoicedomain.LineItemInput, 0, len(req.LineItems))
	for _, item := range req.LineItems {
		items = append(items, invoicedomain.LineItemInput{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	created, err := s.invoiceSvc.Create(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		InvoiceNumber: req.InvoiceNumber,
		CustomerName:  req.CustomerName,
		IssueDate:     issueDate,
		DueDate:       dueDate,
		Currency:      req.Currency,
		TaxRate:       req.TaxRate,
		LineItems:     items,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, invoicedomain.Project(created, s.clock.Now()))
}

func (s *Server) GetInvoice(c *gin.Context) {
	item, err := s.invoiceSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, invoicedomain.Project(item, s.clock.Now()))
}

func (s *Server) RecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	var paymentDate *time.Time
	if strings.TrimSpace(req.PaymentDate) != "" {
		parsed, err := parseDate(req.PaymentDate)
		if err != nil {
			AbortWithError(c, newValidationError("paymentDate", "invalid_payment_date", "Payment date must be a date such as 2024-03-01."))
			return
		}
		paymentDate = &parsed
	}

	updated, err := s.invoiceSvc.RecordPayment(c.Request.Context(), invoicedomain.RecordPaymentRequest{
		InvoiceID:   c.Param("id"),
		Amount:      req.Amount,
		PaymentDate: paymentDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, invoicedomain.Project(updated, s.clock.Now()))
}

func (s *Server) ArchiveInvoice(c *gin.Context) {
	var req archiveInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	updated, err := s.invoiceSvc.SetArchived(c.Request.Context(), invoicedomain.SetArchivedRequest{
		ID:         req.ID,
		IsArchived: *req.IsArchived,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, invoicedomain.Project(updated, s.clock.Now()))
}

func (s *Server) DeleteInvoice(c *gin.Context) {
	if err := s.invoiceSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "invoice removed"})
}

func (s *Server) RenderInvoice(c *gin.Context) {
	html, err := s.invoiceSvc.RenderHTML(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (s *Server) DownloadInvoicePDF(c *gin.Context) {
	doc, err := s.invoiceSvc.RenderPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, doc.Filename))
	c.Data(http.StatusOK, doc.ContentType, doc.Content)
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateOnlyLayout, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
