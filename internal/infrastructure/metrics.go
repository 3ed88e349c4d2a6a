package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LicensingMetrics groups the instruments recorded by the service.
type LicensingMetrics struct {
	// Remote operation proxy
	RemoteCallsTotal        metric.Int64Counter
	RemoteCallFailuresTotal metric.Int64Counter
	RemoteCallDuration      metric.Float64Histogram

	// HTTP
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Domain
	LicensesIssuedTotal metric.Int64Counter
	VerificationsTotal  metric.Int64Counter
	AndroidDevicesTotal metric.Int64Counter
	EventsDroppedTotal  metric.Int64Counter
}

// CreateLicensingMetrics registers every instrument on meter.
func CreateLicensingMetrics(meter metric.Meter) (*LicensingMetrics, error) {
	m := &LicensingMetrics{}
	var err error

	if m.RemoteCallsTotal, err = meter.Int64Counter(
		"remote_calls_total",
		metric.WithDescription("Total number of backend operations invoked"),
	); err != nil {
		return nil, err
	}
	if m.RemoteCallFailuresTotal, err = meter.Int64Counter(
		"remote_call_failures_total",
		metric.WithDescription("Total number of backend operations that failed"),
	); err != nil {
		return nil, err
	}
	if m.RemoteCallDuration, err = meter.Float64Histogram(
		"remote_call_duration_seconds",
		metric.WithDescription("Backend operation duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.LicensesIssuedTotal, err = meter.Int64Counter(
		"licenses_issued_total",
		metric.WithDescription("Total number of license files written"),
	); err != nil {
		return nil, err
	}
	if m.VerificationsTotal, err = meter.Int64Counter(
		"license_verifications_total",
		metric.WithDescription("License verifications by status"),
	); err != nil {
		return nil, err
	}
	if m.AndroidDevicesTotal, err = meter.Int64Counter(
		"android_devices_processed_total",
		metric.WithDescription("Android devices processed by outcome"),
	); err != nil {
		return nil, err
	}
	if m.EventsDroppedTotal, err = meter.Int64Counter(
		"log_events_dropped_total",
		metric.WithDescription("Log channel lines dropped for slow subscribers"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordRemoteCall records one backend call outcome. Safe on a nil receiver.
func (m *LicensingMetrics) RecordRemoteCall(ctx context.Context, operation string, duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("operation", operation))
	m.RemoteCallsTotal.Add(ctx, 1, attrs)
	m.RemoteCallDuration.Record(ctx, duration.Seconds(), attrs)
	if failed {
		m.RemoteCallFailuresTotal.Add(ctx, 1, attrs)
	}
}

// RecordHTTPRequest records one served request. Safe on a nil receiver.
func (m *LicensingMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordLicenseIssued counts a written license. Safe on a nil receiver.
func (m *LicensingMetrics) RecordLicenseIssued(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.LicensesIssuedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordVerification counts a verification by status. Safe on a nil receiver.
func (m *LicensingMetrics) RecordVerification(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.VerificationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordAndroidDevice counts a processed device. Safe on a nil receiver.
func (m *LicensingMetrics) RecordAndroidDevice(ctx context.Context, authorized bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if authorized {
		outcome = "authorized"
	}
	m.AndroidDevicesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordEventDropped counts a dropped log line. Safe on a nil receiver.
func (m *LicensingMetrics) RecordEventDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.EventsDroppedTotal.Add(ctx, 1)
}
