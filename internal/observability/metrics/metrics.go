package metrics

import (
	"context"
	"errors"
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

// Metrics exposes domain-level instruments for the package lifecycle.
type Metrics struct {
	attendance    metric.Int64Counter
	packages      metric.Int64Counter
	bills         metric.Int64Counter
	notifications metric.Int64Counter
	paymentEvents metric.Int64Counter
	consumedHours metric.Float64Counter
}

const exportInterval = 10 * time.Second

// NewProvider registers the global meter provider. Without OTLP export it
// installs a noop provider so instruments stay cheap.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		noopProvider := noop.NewMeterProvider()
		otel.SetMeterProvider(noopProvider)
		return noopProvider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, fmt.Errorf("metrics exporter: %w", err)
	}
	sdkProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(sdkProvider)
	if lc != nil {
		lc.Append(fx.StopHook(sdkProvider.Shutdown))
	}

	log.Info("otlp metrics enabled",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return sdkProvider, nil
}

// New creates the lifecycle instruments on the service meter.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	meterName := strings.TrimSpace(cfg.ServiceName)
	if meterName == "" {
		meterName = "elmcorner"
	}
	meter := provider.Meter(meterName)

	var (
		m    Metrics
		errs []error
	)
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}
	m.attendance = counter("elmcorner_attendance_changes_total", "Class attendance marks and reversals.")
	m.packages = counter("elmcorner_package_transitions_total", "Package created, finished and reactivated transitions.")
	m.bills = counter("elmcorner_bill_events_total", "Bills created and paid.")
	m.notifications = counter("elmcorner_notification_dispatches_total", "WhatsApp notification attempts by outcome.")
	m.paymentEvents = counter("elmcorner_payment_events_total", "Payment gateway link and notification events.")

	hours, err := meter.Float64Counter("elmcorner_consumed_hours_total",
		metric.WithDescription("Teaching hours consumed from packages."),
		metric.WithUnit("h"),
	)
	errs = append(errs, err)
	m.consumedHours = hours

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordAttendance counts attendance changes; hours is negative for reversals.
func (m *Metrics) RecordAttendance(ctx context.Context, direction string, hours float64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("direction", strings.TrimSpace(direction)))
	m.attendance.Add(ctx, 1, metric.WithAttributes(attrs...))
	if hours > 0 {
		m.consumedHours.Add(ctx, hours)
	}
}

// RecordPackageTransition counts package state changes such as created or finished.
func (m *Metrics) RecordPackageTransition(ctx context.Context, transition string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("transition", strings.TrimSpace(transition)))
	m.packages.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordBillEvent(ctx context.Context, eventType, currency string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("currency", strings.ToUpper(strings.TrimSpace(currency))),
	)
	m.bills.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordNotification(ctx context.Context, kind, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("kind", strings.TrimSpace(kind)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.notifications.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordPaymentEvent(ctx context.Context, provider, eventType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("event_type", strings.TrimSpace(eventType)),
	)
	m.paymentEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc", "grpc/protobuf":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	}
	return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"direction":   {},
	"transition":  {},
	"event_type":  {},
	"currency":    {},
	"kind":        {},
	"outcome":     {},
	"provider":    {},
	"status_code": {},
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
