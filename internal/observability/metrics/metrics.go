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

// Metrics exposes domain-level instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	notificationsEmitted    metric.Int64Counter
	notificationsSuppressed metric.Int64Counter
	channelFailures         metric.Int64Counter
	guideTransitions        metric.Int64Counter
	guidesCreated           metric.Int64Counter
	declarationSubmissions  metric.Int64Counter
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

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(30*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
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
		name = "meiwatch"
	}
	if provider == nil {
		provider = noop.NewMeterProvider()
	}
	meter := provider.Meter(name)

	emitted, err := meter.Int64Counter("meiwatch_notifications_emitted_total")
	if err != nil {
		return nil, err
	}
	suppressed, err := meter.Int64Counter("meiwatch_notifications_suppressed_total")
	if err != nil {
		return nil, err
	}
	channelFailures, err := meter.Int64Counter("meiwatch_notification_channel_failures_total")
	if err != nil {
		return nil, err
	}
	transitions, err := meter.Int64Counter("meiwatch_guide_transitions_total")
	if err != nil {
		return nil, err
	}
	created, err := meter.Int64Counter("meiwatch_guides_created_total")
	if err != nil {
		return nil, err
	}
	submissions, err := meter.Int64Counter("meiwatch_declaration_submissions_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		notificationsEmitted:    emitted,
		notificationsSuppressed: suppressed,
		channelFailures:         channelFailures,
		guideTransitions:        transitions,
		guidesCreated:           created,
		declarationSubmissions:  submissions,
	}, nil
}

// RecordNotificationEmitted counts a persisted notification by kind.
func (m *Metrics) RecordNotificationEmitted(ctx context.Context, kind, severity string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("kind", strings.TrimSpace(kind)),
		attribute.String("severity", strings.TrimSpace(severity)),
	)
	m.notificationsEmitted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordNotificationSuppressed counts a notification the deduplicator held back.
func (m *Metrics) RecordNotificationSuppressed(ctx context.Context, kind, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("kind", strings.TrimSpace(kind)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.notificationsSuppressed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordChannelFailure counts a failed delivery on an outbound channel.
func (m *Metrics) RecordChannelFailure(ctx context.Context, channel string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("channel", strings.TrimSpace(channel)))
	m.channelFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordGuideTransition counts guide status changes.
func (m *Metrics) RecordGuideTransition(ctx context.Context, from, to string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(
		attribute.String("from", strings.TrimSpace(from)),
		attribute.String("to", strings.TrimSpace(to)),
	)
	m.guideTransitions.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordGuidesCreated counts newly inserted monthly guides.
func (m *Metrics) RecordGuidesCreated(ctx context.Context, category string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("category", strings.TrimSpace(category)))
	m.guidesCreated.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordDeclarationSubmitted counts annual declaration submissions.
func (m *Metrics) RecordDeclarationSubmitted(ctx context.Context) {
	if m == nil {
		return
	}
	m.declarationSubmissions.Add(ctx, 1)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
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

// Entity identifiers never become labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"kind":     {},
	"severity": {},
	"reason":   {},
	"channel":  {},
	"from":     {},
	"to":       {},
	"category": {},
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
