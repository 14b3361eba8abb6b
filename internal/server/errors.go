package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	invoicedomain "github.com/smallbiznis/invoicedesk/internal/invoice/domain"
	"github.com/smallbiznis/invoicedesk/pkg/money"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

// domainValidation maps service sentinels to the field and message a client sees.
var domainValidation = []struct {
	err   error
	field string
	msg   string
}{
	{invoicedomain.ErrInvalidID, "id", "Invoice id is malformed."},
	{invoicedomain.ErrInvalidCustomerName, "customerName", "Customer name is required."},
	{invoicedomain.ErrInvalidCurrency, "currency", "Currency must be one of USD, INR, EUR or GBP."},
	{invoicedomain.ErrInvalidIssueDate, "issueDate", "Issue date is required."},
	{invoicedomain.ErrInvalidDueDate, "dueDate", "Due date must be after the issue date."},
	{invoicedomain.ErrInvalidInvoiceNumber, "invoiceNumber", "Invoice number must be at most 64 characters."},
	{invoicedomain.ErrInvalidTaxRate, "taxRate", "Tax rate must be zero or greater, with at most four decimal places."},
	{invoicedomain.ErrMissingLineItems, "lineItems", "At least one line item is required."},
	{invoicedomain.ErrInvalidLineItemDescription, "lineItems.description", "Every line item needs a description."},
	{invoicedomain.ErrInvalidLineItemQuantity, "lineItems.quantity", "Quantity must be greater than zero and at most 1000000000."},
	{invoicedomain.ErrInvalidLineItemUnitPrice, "lineItems.unitPrice", "Unit price cannot be negative or exceed 10000000000000.00."},
	{invoicedomain.ErrInvoiceTooLarge, "lineItems", "Invoice totals cannot exceed 10000000000000.00."},
	{invoicedomain.ErrInvalidAmount, "amount", "Payment amount must be greater than zero."},
	{invoicedomain.ErrAmountExceedsBalance, "amount", "Amount exceeds balance due."},
	{money.ErrTooPrecise, "amount", "Amounts support at most two decimal places."},
	{money.ErrInvalidAmount, "amount", "Amount must be a number."},
	{money.ErrOutOfRange, "amount", "Amounts cannot exceed 10000000000000.00."},
	{money.ErrInvalidCurrency, "currency", "Currency must be one of USD, INR, EUR or GBP."},
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "Request body is malformed.")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// bindingError turns a ShouldBindJSON failure into a client-facing error.
func bindingError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		out := &ValidationErrors{}
		for _, fe := range fieldErrs {
			out.Errors = append(out.Errors, ValidationError{
				Field:   fieldPath(fe.Namespace()),
				Code:    fe.Tag(),
				Message: bindingMessage(fe),
			})
		}
		return out
	}
	for _, entry := range domainValidation {
		if errors.Is(err, entry.err) {
			return err
		}
	}
	return invalidRequestError()
}

// fieldPath drops the request struct name from a validator namespace.
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func bindingMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required."
	case "min":
		return fe.Field() + " needs at least " + fe.Param() + " entries."
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters."
	case currencyTag:
		return "Currency must be one of USD, INR, EUR or GBP."
	default:
		return fe.Field() + " is invalid."
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "An unexpected error occurred.",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "The request is invalid.",
			Errors:  vErr.Errors,
		}
	}

	for _, entry := range domainValidation {
		if errors.Is(err, entry.err) {
			return http.StatusBadRequest, errorPayload{
				Type:    "validation_error",
				Message: entry.msg,
				Errors: []ValidationError{
					{Field: entry.field, Code: entry.err.Error(), Message: entry.msg},
				},
			}
		}
	}

	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "Request body is malformed.",
		}
	case errors.Is(err, invoicedomain.ErrDuplicateInvoiceNumber):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "An invoice with this number already exists.",
			Errors: []ValidationError{
				{Field: "invoiceNumber", Code: invoicedomain.ErrDuplicateInvoiceNumber.Error(), Message: "Invoice number is already in use."},
			},
		}
	case errors.Is(err, invoicedomain.ErrConcurrentUpdate):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "The invoice changed while the payment was applied. Please retry.",
		}
	case errors.Is(err, invoicedomain.ErrNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "Invoice not found.",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "An unexpected error occurred.",
		}
	}
}

// classifyErrorForLog reports the error type and code recorded on request logs.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if status >= http.StatusInternalServerError {
		return payload.Type, "store_failure"
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}
