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

// Metrics exposes application-level instruments.
type Metrics struct {
	admissionAllowed metric.Int64Counter
	admissionDenied  metric.Int64Counter
	usageEmitted     metric.Int64Counter
	usageConsumed    metric.Int64Counter
	limiterFailOpen  metric.Int64Counter
	invoicesCreated  metric.Int64Counter
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

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "monetizeit"
	}
	meter := provider.Meter(name)

	admissionAllowed, err := meter.Int64Counter("monetizeit_admission_allowed_total")
	if err != nil {
		return nil, err
	}
	admissionDenied, err := meter.Int64Counter("monetizeit_admission_denied_total")
	if err != nil {
		return nil, err
	}
	usageEmitted, err := meter.Int64Counter("monetizeit_usage_events_emitted_total")
	if err != nil {
		return nil, err
	}
	usageConsumed, err := meter.Int64Counter("monetizeit_usage_events_consumed_total")
	if err != nil {
		return nil, err
	}
	limiterFailOpen, err := meter.Int64Counter("monetizeit_rate_limit_fail_open_total")
	if err != nil {
		return nil, err
	}
	invoicesCreated, err := meter.Int64Counter("monetizeit_invoices_created_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		admissionAllowed: admissionAllowed,
		admissionDenied:  admissionDenied,
		usageEmitted:     usageEmitted,
		usageConsumed:    usageConsumed,
		limiterFailOpen:  limiterFailOpen,
		invoicesCreated:  invoicesCreated,
	}, nil
}

// RecordAdmissionAllowed increments admitted request counts.
func (m *Metrics) RecordAdmissionAllowed(ctx context.Context, apiID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("api_id", strings.TrimSpace(apiID)))
	m.admissionAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAdmissionDenied increments rejected request counts by reason.
func (m *Metrics) RecordAdmissionDenied(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.admissionDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordUsageEmitted increments emitted usage event counts.
func (m *Metrics) RecordUsageEmitted(ctx context.Context, apiID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("api_id", strings.TrimSpace(apiID)))
	m.usageEmitted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordUsageConsumed increments consumed usage event counts by outcome.
func (m *Metrics) RecordUsageConsumed(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.usageConsumed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLimiterFailOpen increments limiter store failure counts.
func (m *Metrics) RecordLimiterFailOpen(ctx context.Context) {
	if m == nil {
		return
	}
	m.limiterFailOpen.Add(ctx, 1)
}

// RecordInvoiceCreated increments invoice creation counts.
func (m *Metrics) RecordInvoiceCreated(ctx context.Context, unitType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("unit_type", strings.TrimSpace(unitType)))
	m.invoicesCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
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
	"api_id":      {},
	"endpoint":    {},
	"status_code": {},
	"reason":      {},
	"outcome":     {},
	"unit_type":   {},
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
