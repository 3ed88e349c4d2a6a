package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"licensebridge/internal/config"
	apierrors "licensebridge/internal/errors"
	"licensebridge/internal/events"
	"licensebridge/internal/infrastructure"
	"licensebridge/internal/ledger"
	"licensebridge/internal/licensefile"
	"licensebridge/pkg/contracts/commands"
)

// Dependencies are the collaborators of the local backend. Ledger, Events
// and Metrics may be nil.
type Dependencies struct {
	ADB       ADB
	Generator CodeGenerator
	Codec     *licensefile.Codec
	Ledger    ledger.Recorder
	Events    events.Publisher
	Metrics   *infrastructure.LicensingMetrics
	// ExecutableDir defaults to the directory of the running binary.
	ExecutableDir func() (string, error)
	Logger        *slog.Logger
}

// Local performs every backend operation on this machine.
type Local struct {
	adb         ADB
	generator   CodeGenerator
	codec       *licensefile.Codec
	ledger      ledger.Recorder
	events      events.Publisher
	metrics     *infrastructure.LicensingMetrics
	execDir     func() (string, error)
	remotePaths []string
	tempDir     string
	concurrency int
	logger      *slog.Logger

	// androidMu keeps one adb session at a time: a kill-server issued by one
	// run would otherwise cut the pulls and pushes of another.
	androidMu sync.Mutex
}

// NewLocal creates the local backend.
func NewLocal(cfg config.BackendConfig, deps Dependencies) (*Local, error) {
	if deps.ADB == nil || deps.Generator == nil || deps.Codec == nil {
		return nil, apierrors.NewConfigError("backend requires an adb client, a code generator and a license codec", nil)
	}
	if len(cfg.AndroidRemotePaths) == 0 {
		return nil, apierrors.NewConfigError("no android remote paths configured", nil)
	}

	l := &Local{
		adb:         deps.ADB,
		generator:   deps.Generator,
		codec:       deps.Codec,
		ledger:      deps.Ledger,
		events:      deps.Events,
		metrics:     deps.Metrics,
		execDir:     deps.ExecutableDir,
		remotePaths: cfg.AndroidRemotePaths,
		tempDir:     cfg.TempDir,
		concurrency: cfg.BatchConcurrency,
		logger:      infrastructure.WithComponent(deps.Logger, "backend"),
	}
	if l.execDir == nil {
		l.execDir = executableDir
	}
	if l.tempDir == "" {
		l.tempDir = os.TempDir()
	}
	if l.concurrency < 1 {
		l.concurrency = 1
	}
	return l, nil
}

func executableDir() (string, error) {
	paths, err := config.GetPaths()
	if err != nil {
		return "", err
	}
	return paths.ExecutableDir, nil
}

// publish mirrors a line to the event channel and the diagnostic log.
func (l *Local) publish(ctx context.Context, level events.Level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if l.events != nil {
		l.events.Publish(level, msg)
	}

	slogLevel := slog.LevelInfo
	switch level {
	case events.LevelDebug:
		slogLevel = slog.LevelDebug
	case events.LevelWarn:
		slogLevel = slog.LevelWarn
	case events.LevelError:
		slogLevel = slog.LevelError
	}
	l.logger.Log(ctx, slogLevel, msg)
}

// ListDevices implements Backend.
func (l *Local) ListDevices(ctx context.Context) ([]string, error) {
	l.androidMu.Lock()
	defer l.androidMu.Unlock()

	l.publish(ctx, events.LevelInfo, "refreshing adb device list")
	devices, err := l.adb.Devices(ctx)
	if err != nil {
		err = fmt.Errorf("failed to list devices: %w", err)
		l.publish(ctx, events.LevelError, "%v", err)
		return nil, err
	}
	l.publish(ctx, events.LevelInfo, "devices found: [%s]", strings.Join(devices, ", "))
	return devices, nil
}

// ExecutableDirectory implements Backend. Failure to resolve the directory
// is reported as an empty result.
func (l *Local) ExecutableDirectory(ctx context.Context) (string, error) {
	dir, err := l.execDir()
	if err != nil {
		l.logger.WarnContext(ctx, "executable directory unavailable", slog.String("error", err.Error()))
		return "", nil
	}
	return dir, nil
}

// GenerateDeviceCode implements Backend.
func (l *Local) GenerateDeviceCode(ctx context.Context) (string, error) {
	l.publish(ctx, events.LevelInfo, "generating host device code")
	code, err := l.generator.Generate(ctx)
	if err != nil {
		l.publish(ctx, events.LevelError, "device code generation failed: %s", Message(err))
		return "", err
	}
	l.publish(ctx, events.LevelInfo, "host device code generated: %s", code)
	return code, nil
}

// IssueLicense implements Backend.
func (l *Local) IssueLicense(ctx context.Context, deviceCode, targetDir string) (string, error) {
	l.publish(ctx, events.LevelInfo, "issuing license for device %s into %s", deviceCode, targetDir)

	rec, path, err := l.codec.Issue(deviceCode, targetDir)
	if err != nil {
		l.publish(ctx, events.LevelError, "license issuance failed: %s", Message(err))
		return "", err
	}
	l.recordIssued(ctx, rec, targetDir, ledger.SourceWindows)

	msg := fmt.Sprintf("license for device %s written to %s", rec.DeviceCode, path)
	l.publish(ctx, events.LevelInfo, "%s", msg)
	return msg, nil
}

// VerifyLicense implements Backend.
func (l *Local) VerifyLicense(ctx context.Context, licensePath, deviceCodePath string) (commands.VerificationResult, error) {
	l.publish(ctx, events.LevelInfo, "verifying license %s against device code file %s", licensePath, deviceCodePath)

	v, err := l.codec.Verify(licensePath, deviceCodePath)
	if err != nil {
		l.publish(ctx, events.LevelError, "license verification could not run: %s", Message(err))
		return commands.VerificationResult{}, err
	}
	l.metrics.RecordVerification(ctx, string(v.Status))

	result := toVerificationResult(v)
	if v.Passed() {
		l.publish(ctx, events.LevelInfo, "license verified for device %s", v.Record.DeviceCode)
	} else {
		l.publish(ctx, events.LevelWarn, "license verification %s: %s", v.Status, v.Reason)
	}
	return result, nil
}

func toVerificationResult(v licensefile.Verification) commands.VerificationResult {
	result := commands.VerificationResult{Status: string(v.Status), Reason: v.Reason}
	if v.Passed() {
		result.LicenseDetails = details(v.Record)
	}
	return result
}

func details(rec licensefile.Record) commands.LicenseDetails {
	return commands.LicenseDetails{
		DeviceCode:   rec.DeviceCode,
		SerialNumber: rec.SerialNumber,
		IssuedAt:     rec.IssuedAt,
	}
}

// AuthorizeApplication implements Backend: it writes the device code and a
// license into appDir and verifies the pair straight away.
func (l *Local) AuthorizeApplication(ctx context.Context, appDir string) (commands.AuthorizeApplicationResponse, error) {
	l.publish(ctx, events.LevelInfo, "authorizing application in %s", appDir)
	if !config.DirExists(appDir) {
		err := apierrors.NewAppValidationError(fmt.Sprintf("path is not a valid directory: %s", appDir))
		l.publish(ctx, events.LevelError, "%s", err.Message)
		return commands.AuthorizeApplicationResponse{}, err
	}

	code, err := l.GenerateDeviceCode(ctx)
	if err != nil {
		return commands.AuthorizeApplicationResponse{}, err
	}

	codePath := filepath.Join(appDir, config.DeviceCodeFileName)
	if err := licensefile.WriteDeviceCode(codePath, code); err != nil {
		l.publish(ctx, events.LevelError, "%s", Message(err))
		return commands.AuthorizeApplicationResponse{}, err
	}

	rec, licensePath, err := l.codec.Issue(code, appDir)
	if err != nil {
		l.publish(ctx, events.LevelError, "license issuance failed: %s", Message(err))
		return commands.AuthorizeApplicationResponse{}, err
	}
	l.recordIssued(ctx, rec, appDir, ledger.SourceWindows)

	resp := commands.AuthorizeApplicationResponse{
		AuthorizationMessage: fmt.Sprintf("device %s authorized: license written to %s", code, licensePath),
	}

	v, err := l.codec.Verify(licensePath, codePath)
	switch {
	case err != nil:
		resp.VerificationStatus = "verification could not run: " + Message(err)
	case v.Passed():
		resp.VerificationStatus = PassedMarker + ": license file is valid"
		d := details(v.Record)
		resp.VerificationDetails = &d
	default:
		resp.VerificationStatus = fmt.Sprintf("verification %s: %s", v.Status, v.Reason)
	}
	if err == nil {
		l.metrics.RecordVerification(ctx, string(v.Status))
	}

	l.publish(ctx, events.LevelInfo, "%s", resp.AuthorizationMessage)
	l.publish(ctx, events.LevelInfo, "%s", resp.VerificationStatus)
	return resp, nil
}

func (l *Local) recordIssued(ctx context.Context, rec licensefile.Record, target string, source ledger.Source) {
	l.metrics.RecordLicenseIssued(ctx, string(source))
	if l.ledger == nil {
		return
	}
	err := l.ledger.Record(ctx, ledger.Entry{
		DeviceCode:   rec.DeviceCode,
		SerialNumber: rec.SerialNumber,
		IssuedAt:     rec.IssuedTime(),
		Target:       target,
		Source:       source,
	})
	if err != nil {
		l.logger.WarnContext(ctx, "license issued but not recorded in the ledger",
			slog.String("serial_number", rec.SerialNumber),
			slog.String("error", err.Error()))
	}
}

var errNoDevices = errors.New("no devices detected, check the USB connection")
