package push

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/dosepoint/dosepoint/internal/push"

// DeliveryMetrics holds metrics for push gateway calls.
type DeliveryMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	tokenRejections metric.Int64Counter
}

// NewDeliveryMetrics creates metrics for monitoring gateway deliveries.
func NewDeliveryMetrics() (*DeliveryMetrics, error) {
	meter := otel.Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"push.delivery.duration",
		metric.WithDescription("Duration of push gateway requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"push.delivery.total",
		metric.WithDescription("Total number of push gateway requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	tokenRejections, err := meter.Int64Counter(
		"push.delivery.token_rejections",
		metric.WithDescription("Number of deliveries refused for a stale device token"),
		metric.WithUnit("{rejection}"),
	)
	if err != nil {
		return nil, err
	}

	return &DeliveryMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		tokenRejections: tokenRejections,
	}, nil
}

// RecordDelivery records one gateway delivery attempt.
func (m *DeliveryMetrics) RecordDelivery(platform string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("push.platform", platform),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Use background context for metrics to avoid context cancellation issues
	ctx := context.TODO()
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTokenRejection records a delivery refused because the device token
// is no longer valid.
func (m *DeliveryMetrics) RecordTokenRejection(platform string) {
	if m == nil {
		return
	}
	m.tokenRejections.Add(context.TODO(), 1, metric.WithAttributes(
		attribute.String("push.platform", platform),
	))
}
