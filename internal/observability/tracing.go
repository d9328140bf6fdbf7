package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartServiceSpan starts a span named "<service>.<operation>"
func StartServiceSpan(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.component", service),
			attribute.String("service.operation", operation),
		),
	)
}

// RecordError records err on the span and marks it failed
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// BusinessMetrics holds the domain counters. A nil *BusinessMetrics is valid
// and records nothing.
type BusinessMetrics struct {
	recordsCaptured  metric.Int64Counter
	recordsDeleted   metric.Int64Counter
	recordsSynced    metric.Int64Counter
	otpSent          metric.Int64Counter
	otpVerifications metric.Int64Counter
	exports          metric.Int64Counter
	imageBytes       metric.Int64UpDownCounter
}

// NewBusinessMetrics creates the domain instruments on the global meter
func NewBusinessMetrics() (*BusinessMetrics, error) {
	meter := otel.Meter(instrumentationName)
	m := &BusinessMetrics{}

	var err error
	if m.recordsCaptured, err = meter.Int64Counter(
		"cattlebreed.records.captured",
		metric.WithDescription("Animal records created"),
		metric.WithUnit("{records}"),
	); err != nil {
		return nil, err
	}
	if m.recordsDeleted, err = meter.Int64Counter(
		"cattlebreed.records.deleted",
		metric.WithDescription("Animal records deleted"),
		metric.WithUnit("{records}"),
	); err != nil {
		return nil, err
	}
	if m.recordsSynced, err = meter.Int64Counter(
		"cattlebreed.records.synced",
		metric.WithDescription("Animal records marked as synced"),
		metric.WithUnit("{records}"),
	); err != nil {
		return nil, err
	}
	if m.otpSent, err = meter.Int64Counter(
		"cattlebreed.auth.otp_sent",
		metric.WithDescription("OTP codes issued"),
		metric.WithUnit("{codes}"),
	); err != nil {
		return nil, err
	}
	if m.otpVerifications, err = meter.Int64Counter(
		"cattlebreed.auth.otp_verifications",
		metric.WithDescription("OTP verification attempts by result"),
		metric.WithUnit("{attempts}"),
	); err != nil {
		return nil, err
	}
	if m.exports, err = meter.Int64Counter(
		"cattlebreed.exports",
		metric.WithDescription("Record exports by format"),
		metric.WithUnit("{exports}"),
	); err != nil {
		return nil, err
	}
	if m.imageBytes, err = meter.Int64UpDownCounter(
		"cattlebreed.storage.image_bytes",
		metric.WithDescription("Bytes of captured images on disk"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordCapture counts a created record and its stored image size
func (m *BusinessMetrics) RecordCapture(ctx context.Context, source string, imageSize int64) {
	if m == nil {
		return
	}
	m.recordsCaptured.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
	if imageSize > 0 {
		m.imageBytes.Add(ctx, imageSize)
	}
}

// RecordDelete counts deleted records
func (m *BusinessMetrics) RecordDelete(ctx context.Context, count int64, freedBytes int64) {
	if m == nil || count <= 0 {
		return
	}
	m.recordsDeleted.Add(ctx, count)
	if freedBytes > 0 {
		m.imageBytes.Add(ctx, -freedBytes)
	}
}

// RecordSync counts records flipped to synced
func (m *BusinessMetrics) RecordSync(ctx context.Context, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.recordsSynced.Add(ctx, int64(count))
}

// RecordOTPSent counts issued codes per delivery channel
func (m *BusinessMetrics) RecordOTPSent(ctx context.Context, channel string, success bool) {
	if m == nil {
		return
	}
	m.otpSent.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", channel),
		attribute.Bool("success", success),
	))
}

// RecordOTPVerification counts a verification attempt with its outcome
func (m *BusinessMetrics) RecordOTPVerification(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.otpVerifications.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordExport counts an export run
func (m *BusinessMetrics) RecordExport(ctx context.Context, format string, records int, success bool) {
	if m == nil {
		return
	}
	m.exports.Add(ctx, 1, metric.WithAttributes(
		attribute.String("format", format),
		attribute.Int("records", records),
		attribute.Bool("success", success),
	))
}
