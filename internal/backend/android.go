package backend

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"licensebridge/internal/config"
	"licensebridge/internal/events"
	"licensebridge/internal/ledger"
	"licensebridge/internal/licensefile"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

type deviceResult struct {
	line       string
	authorized bool
}

// AuthorizeAndroid implements Backend. Without batchMode only the first
// enumerated device is processed. A failing device never stops the others;
// the report has one line per device followed by a summary line. Overlapping
// calls run one after the other, and once started a run finishes its pushes
// and the adb kill-server even if ctx is cancelled.
func (l *Local) AuthorizeAndroid(ctx context.Context, batchMode bool) (string, error) {
	ctx = context.WithoutCancel(ctx)
	l.androidMu.Lock()
	defer l.androidMu.Unlock()

	l.publish(ctx, events.LevelInfo, "starting android authorization, batch mode: %t", batchMode)

	devices, err := l.adb.Devices(ctx)
	if err != nil {
		err = fmt.Errorf("failed to list devices: %w", err)
		l.publish(ctx, events.LevelError, "%v", err)
		return "", err
	}
	if len(devices) == 0 {
		l.publish(ctx, events.LevelError, "%v", errNoDevices)
		return "", errNoDevices
	}
	if !batchMode {
		devices = devices[:1]
	}

	if err := os.MkdirAll(l.tempDir, 0o755); err != nil {
		err = fmt.Errorf("failed to create temp directory: %w", err)
		l.publish(ctx, events.LevelError, "%v", err)
		return "", err
	}
	defer l.killServer(ctx)

	results := make([]deviceResult, len(devices))
	var g errgroup.Group
	g.SetLimit(l.concurrency)
	for i, serial := range devices {
		g.Go(func() error {
			results[i] = l.authorizeDevice(ctx, serial)
			return nil
		})
	}
	_ = g.Wait()

	lines := make([]string, 0, len(results)+1)
	authorized := 0
	for _, r := range results {
		lines = append(lines, r.line)
		if r.authorized {
			authorized++
		}
	}
	summary := fmt.Sprintf("%d/%d devices authorized", authorized, len(devices))
	lines = append(lines, summary)
	l.publish(ctx, events.LevelInfo, "%s", summary)

	return strings.Join(lines, "\n"), nil
}

func (l *Local) authorizeDevice(ctx context.Context, serial string) deviceResult {
	l.publish(ctx, events.LevelInfo, "processing device %s", serial)

	for _, base := range l.remotePaths {
		l.publish(ctx, events.LevelInfo, "device %s: trying %s", serial, base)
		msg, err := l.pullAndAuthorize(ctx, serial, base)
		if err == nil {
			l.metrics.RecordAndroidDevice(ctx, true)
			l.publish(ctx, events.LevelInfo, "%s", msg)
			return deviceResult{line: msg, authorized: true}
		}
		l.publish(ctx, events.LevelWarn, "device %s: path %s failed: %s; trying next path", serial, base, Message(err))
	}

	l.metrics.RecordAndroidDevice(ctx, false)
	msg := fmt.Sprintf("device %s: authorization failed on every known path", serial)
	l.publish(ctx, events.LevelError, "%s", msg)
	return deviceResult{line: msg}
}

// pullAndAuthorize fetches the device code stored under base, issues a
// license for it and pushes the license back next to the code.
func (l *Local) pullAndAuthorize(ctx context.Context, serial, base string) (string, error) {
	workDir, err := os.MkdirTemp(l.tempDir, "device-"+unsafeFileChars.ReplaceAllString(serial, "_")+"-")
	if err != nil {
		return "", fmt.Errorf("failed to create work directory: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(workDir)
		l.publish(ctx, events.LevelDebug, "temporary files for device %s removed", serial)
	}()

	remoteCode := path.Join(base, config.DeviceCodeFileName)
	localCode := filepath.Join(workDir, config.DeviceCodeFileName)
	if err := l.adb.Pull(ctx, serial, remoteCode, localCode); err != nil {
		return "", fmt.Errorf("device code pull failed: %w", err)
	}

	code, err := licensefile.ReadDeviceCode(localCode)
	if err != nil {
		return "", err
	}
	l.publish(ctx, events.LevelInfo, "device %s: device code %s read", serial, code)

	rec, licensePath, err := l.codec.Issue(code, workDir)
	if err != nil {
		return "", err
	}

	remote, err := l.adb.Push(ctx, serial, licensePath, base)
	if err != nil {
		return "", fmt.Errorf("license push failed: %w", err)
	}
	l.recordIssued(ctx, rec, serial, ledger.SourceAndroid)

	return fmt.Sprintf("device %s authorized: license pushed to %s", serial, remote), nil
}

func (l *Local) killServer(ctx context.Context) {
	if err := l.adb.KillServer(ctx); err != nil {
		l.publish(ctx, events.LevelError, "failed to stop adb server: %v", err)
		return
	}
	l.publish(ctx, events.LevelInfo, "adb server stopped")
}
