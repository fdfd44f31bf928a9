package license

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	TracerName = "zamutints/license"
	MeterName  = "zamutints/license"
)

// Call results recorded on metrics and logs.
const (
	resultSuccess  = "success"
	resultRejected = "rejected"
	resultError    = "error"
)

// Rejection reasons recorded by RecordRejection.
const (
	ReasonLicenseRequired    = "license_required"
	ReasonFeatureNotLicensed = "feature_not_licensed"
	ReasonValidationFailed   = "validation_failed"
)

// Metrics holds the license OpenTelemetry instruments. A nil *Metrics
// records nothing.
type Metrics struct {
	Requests        metric.Int64Counter
	RequestDuration metric.Float64Histogram
	CacheHits       metric.Int64Counter
	CacheMisses     metric.Int64Counter
	GuardRejections metric.Int64Counter
	LicenseValid    metric.Int64UpDownCounter
}

// NewMetrics creates the license instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.Requests, err = meter.Int64Counter(
		"license_client_requests_total",
		metric.WithDescription("License server calls by operation and result"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create requests counter: %w", err)
	}

	m.RequestDuration, err = meter.Float64Histogram(
		"license_client_request_duration_seconds",
		metric.WithDescription("License server call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	m.CacheHits, err = meter.Int64Counter(
		"license_cache_hits_total",
		metric.WithDescription("Validations answered from the local cache"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache hits counter: %w", err)
	}

	m.CacheMisses, err = meter.Int64Counter(
		"license_cache_misses_total",
		metric.WithDescription("Cached validations that required a server call"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache misses counter: %w", err)
	}

	m.GuardRejections, err = meter.Int64Counter(
		"license_guard_rejections_total",
		metric.WithDescription("Requests rejected by the license guards"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create guard rejections counter: %w", err)
	}

	m.LicenseValid, err = meter.Int64UpDownCounter(
		"license_valid",
		metric.WithDescription("1 while the process holds a valid license"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create license valid gauge: %w", err)
	}

	return m, nil
}

// defaultMetrics builds instruments on the global meter provider.
func defaultMetrics() *Metrics {
	m, err := NewMetrics(otel.Meter(MeterName))
	if err != nil {
		return nil
	}
	return m
}

func (m *Metrics) recordRequest(ctx context.Context, op, result string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("result", result),
	)
	m.Requests.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("operation", op)))
}

func (m *Metrics) recordCache(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Add(ctx, 1)
	} else {
		m.CacheMisses.Add(ctx, 1)
	}
}

func (m *Metrics) recordValid(ctx context.Context, delta int64) {
	if m == nil || delta == 0 {
		return
	}
	m.LicenseValid.Add(ctx, delta)
}

// RecordRejection counts a request turned away by a license guard.
func (m *Metrics) RecordRejection(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.GuardRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func startSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
