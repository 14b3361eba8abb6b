package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("currency", "USD"),
		attribute.String("invoice_id", "456"),
		attribute.String("customer_name", "Acme"),
		attribute.String("reason", "exceeds_balance"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "invoice_id" || attr.Key == "customer_name" {
			t.Fatalf("unexpected high-cardinality label %q retained", attr.Key)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordInvoiceCreated(context.Background(), "USD")
	m.RecordPayment(context.Background(), "USD", "PAID", 100)
	m.RecordPaymentRejected(context.Background(), "exceeds_balance")
	m.RecordInvoiceDeleted(context.Background())
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "invoicedesk"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordPayment(context.Background(), "EUR", "DRAFT", 2500)
}
