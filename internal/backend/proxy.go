package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apierrors "licensebridge/internal/errors"
	"licensebridge/internal/infrastructure"
	"licensebridge/pkg/contracts/commands"
)

// Failure is a backend operation that could not complete. Message is shown
// to the user as is.
type Failure struct {
	Operation string
	Message   string
	Cause     error
}

func (f *Failure) Error() string { return f.Message }

func (f *Failure) Unwrap() error { return f.Cause }

// AppError converts f for the HTTP error handler.
func (f *Failure) AppError() *apierrors.AppError {
	return apierrors.NewRemoteError(f.Operation, f.Message)
}

// Proxy wraps a Backend with logging, tracing and metrics.
type Proxy struct {
	backend Backend
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *infrastructure.LicensingMetrics
}

// ProxyOption configures a Proxy.
type ProxyOption func(*Proxy)

// WithTracer sets the tracer used for per-call spans.
func WithTracer(t trace.Tracer) ProxyOption {
	return func(p *Proxy) { p.tracer = t }
}

// WithMetrics records call counts and durations.
func WithMetrics(m *infrastructure.LicensingMetrics) ProxyOption {
	return func(p *Proxy) { p.metrics = m }
}

// NewProxy creates a Proxy for b.
func NewProxy(b Backend, logger *slog.Logger, opts ...ProxyOption) *Proxy {
	p := &Proxy{
		backend: b,
		logger:  infrastructure.WithComponent(logger, "remote_proxy"),
		tracer:  otel.Tracer(infrastructure.InstrumentationName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Call runs fn against the proxied backend exactly once. Any error or panic
// becomes a *Failure; the outcome is logged before Call returns. Backend
// operations cannot be cancelled mid-flight: fn sees ctx's values but never
// its cancellation, so a disconnecting client cannot kill adb half way.
func Call[T any](ctx context.Context, p *Proxy, operation string, params []slog.Attr, fn func(context.Context, Backend) (T, error)) (result T, failure *Failure) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := p.tracer.Start(ctx, "backend."+operation,
		trace.WithAttributes(attribute.String("backend.operation", operation)))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			failure = &Failure{Operation: operation, Message: fmt.Sprintf("internal error in %s: %v", operation, r)}
			p.logger.ErrorContext(ctx, "remote call panicked",
				slog.String("operation", operation),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
		p.finish(ctx, span, operation, start, failure)
	}()

	attrs := append([]slog.Attr{slog.String("operation", operation)}, params...)
	p.logger.LogAttrs(ctx, slog.LevelInfo, "remote call started", attrs...)

	value, err := fn(ctx, p.backend)
	if err != nil {
		return result, &Failure{Operation: operation, Message: Message(err), Cause: err}
	}
	return value, nil
}

func (p *Proxy) finish(ctx context.Context, span trace.Span, operation string, start time.Time, failure *Failure) {
	duration := time.Since(start)
	p.metrics.RecordRemoteCall(ctx, operation, duration, failure != nil)

	span.SetAttributes(
		attribute.Float64("backend.duration_ms", float64(duration.Milliseconds())),
		attribute.Bool("backend.success", failure == nil),
	)
	if failure != nil {
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Message)
		p.logger.ErrorContext(ctx, "remote call failed",
			slog.String("operation", operation),
			slog.Duration("duration", duration),
			slog.String("error", failure.Message))
	} else {
		span.SetStatus(codes.Ok, "")
		p.logger.InfoContext(ctx, "remote call completed",
			slog.String("operation", operation),
			slog.Duration("duration", duration))
	}
	span.End()
}

// Message is the user-facing text of a backend error.
func Message(err error) string {
	var appErr *apierrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Cause != nil {
			return fmt.Sprintf("%s: %v", appErr.Message, appErr.Cause)
		}
		return appErr.Message
	}
	return err.Error()
}

// ListDevices proxies Backend.ListDevices.
func (p *Proxy) ListDevices(ctx context.Context) ([]string, *Failure) {
	return Call(ctx, p, string(commands.ListADBDevices), nil,
		func(ctx context.Context, b Backend) ([]string, error) {
			return b.ListDevices(ctx)
		})
}

// AuthorizeAndroid proxies Backend.AuthorizeAndroid.
func (p *Proxy) AuthorizeAndroid(ctx context.Context, batchMode bool) (string, *Failure) {
	return Call(ctx, p, string(commands.ProcessAndroidAuthorization),
		[]slog.Attr{slog.Bool("batch_mode", batchMode)},
		func(ctx context.Context, b Backend) (string, error) {
			return b.AuthorizeAndroid(ctx, batchMode)
		})
}

// ExecutableDirectory proxies Backend.ExecutableDirectory.
func (p *Proxy) ExecutableDirectory(ctx context.Context) (string, *Failure) {
	return Call(ctx, p, string(commands.GetExecutableDir), nil,
		func(ctx context.Context, b Backend) (string, error) {
			return b.ExecutableDirectory(ctx)
		})
}

// GenerateDeviceCode proxies Backend.GenerateDeviceCode.
func (p *Proxy) GenerateDeviceCode(ctx context.Context) (string, *Failure) {
	return Call(ctx, p, string(commands.GenerateWindowsDeviceCode), nil,
		func(ctx context.Context, b Backend) (string, error) {
			return b.GenerateDeviceCode(ctx)
		})
}

// IssueLicense proxies Backend.IssueLicense.
func (p *Proxy) IssueLicense(ctx context.Context, deviceCode, targetDir string) (string, *Failure) {
	return Call(ctx, p, string(commands.GenerateAuthFile),
		[]slog.Attr{slog.String("device_code", deviceCode), slog.String("target_dir", targetDir)},
		func(ctx context.Context, b Backend) (string, error) {
			return b.IssueLicense(ctx, deviceCode, targetDir)
		})
}

// VerifyLicense proxies Backend.VerifyLicense.
func (p *Proxy) VerifyLicense(ctx context.Context, licensePath, deviceCodePath string) (commands.VerificationResult, *Failure) {
	return Call(ctx, p, string(commands.CheckAuthorization),
		[]slog.Attr{slog.String("license_path", licensePath), slog.String("device_code_path", deviceCodePath)},
		func(ctx context.Context, b Backend) (commands.VerificationResult, error) {
			return b.VerifyLicense(ctx, licensePath, deviceCodePath)
		})
}

// AuthorizeApplication proxies Backend.AuthorizeApplication.
func (p *Proxy) AuthorizeApplication(ctx context.Context, appDir string) (commands.AuthorizeApplicationResponse, *Failure) {
	return Call(ctx, p, string(commands.AuthorizeWindowsApplication),
		[]slog.Attr{slog.String("app_dir", appDir)},
		func(ctx context.Context, b Backend) (commands.AuthorizeApplicationResponse, error) {
			return b.AuthorizeApplication(ctx, appDir)
		})
}
