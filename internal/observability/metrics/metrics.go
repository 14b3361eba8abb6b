package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes invoice ledger instruments.
type Metrics struct {
	invoicesCreated  metric.Int64Counter
	invoicesDeleted  metric.Int64Counter
	paymentsRecorded metric.Int64Counter
	paymentsRejected metric.Int64Counter
	paymentVolume    metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the invoice instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "invoicedesk"
	}
	meter := provider.Meter(name)

	invoicesCreated, err := meter.Int64Counter("invoicedesk_invoices_created_total")
	if err != nil {
		return nil, err
	}
	invoicesDeleted, err := meter.Int64Counter("invoicedesk_invoices_deleted_total")
	if err != nil {
		return nil, err
	}
	paymentsRecorded, err := meter.Int64Counter("invoicedesk_payments_recorded_total")
	if err != nil {
		return nil, err
	}
	paymentsRejected, err := meter.Int64Counter("invoicedesk_payments_rejected_total")
	if err != nil {
		return nil, err
	}
	paymentVolume, err := meter.Int64Counter("invoicedesk_payment_volume_minor_total",
		metric.WithDescription("Sum of recorded payments in minor currency units"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		invoicesCreated:  invoicesCreated,
		invoicesDeleted:  invoicesDeleted,
		paymentsRecorded: paymentsRecorded,
		paymentsRejected: paymentsRejected,
		paymentVolume:    paymentVolume,
	}, nil
}

func (m *Metrics) RecordInvoiceCreated(ctx context.Context, currency string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("currency", strings.TrimSpace(currency)))
	m.invoicesCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordInvoiceDeleted(ctx context.Context) {
	if m == nil {
		return
	}
	m.invoicesDeleted.Add(ctx, 1)
}

// RecordPayment counts an accepted payment and its volume. status is the
// invoice status after the payment was applied.
func (m *Metrics) RecordPayment(ctx context.Context, currency, status string, minorUnits int64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("currency", strings.TrimSpace(currency)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.paymentsRecorded.Add(ctx, 1, metric.WithAttributes(attrs...))
	if minorUnits > 0 {
		m.paymentVolume.Add(ctx, minorUnits, metric.WithAttributes(FilterAttributes(
			attribute.String("currency", strings.TrimSpace(currency)),
		)...))
	}
}

func (m *Metrics) RecordPaymentRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.paymentsRejected.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":    {},
	"status_code": {},
	"currency":    {},
	"status":      {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
