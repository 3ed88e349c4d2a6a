package devicecode

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"runtime"
	"strings"

	"licensebridge/internal/infrastructure"
	"licensebridge/internal/shell"
)

var ioregSerialPattern = regexp.MustCompile(`"IOPlatformSerialNumber"\s*=\s*"([^"]*)"`)

// Linux sources, tried in order.
var linuxSerialFiles = []string{
	"/sys/class/dmi/id/board_serial",
	"/sys/class/dmi/id/product_uuid",
	"/etc/machine-id",
}

// HostSource reads the serial number of the running host.
type HostSource struct {
	Runner   shell.Runner
	ReadFile func(string) ([]byte, error)
	GOOS     string
	logger   *slog.Logger
}

// NewHostSource creates a HostSource for the current platform.
func NewHostSource(runner shell.Runner, logger *slog.Logger) *HostSource {
	return &HostSource{
		Runner:   runner,
		ReadFile: os.ReadFile,
		GOOS:     runtime.GOOS,
		logger:   infrastructure.WithComponent(logger, "devicecode"),
	}
}

// Serial implements SerialSource.
func (s *HostSource) Serial(ctx context.Context) (string, error) {
	switch s.GOOS {
	case "windows":
		return s.windowsSerial(ctx)
	case "darwin":
		return s.darwinSerial(ctx)
	case "linux":
		return s.linuxSerial()
	default:
		return "", fmt.Errorf("unsupported platform %s", s.GOOS)
	}
}

func (s *HostSource) windowsSerial(ctx context.Context) (string, error) {
	out, err := s.Runner.Run(ctx, "wmic", "baseboard", "get", "serialnumber")
	if err == nil {
		if serial := secondLine(out); ValidSerial(serial) {
			return serial, nil
		}
	} else {
		s.logger.DebugContext(ctx, "wmic unavailable, falling back to powershell", slog.String("error", err.Error()))
	}

	// wmic is absent on recent Windows 11 builds.
	out, err = s.Runner.Run(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command",
		"(Get-CimInstance -ClassName Win32_BaseBoard).SerialNumber")
	if err != nil {
		return "", fmt.Errorf("query baseboard serial: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (s *HostSource) darwinSerial(ctx context.Context) (string, error) {
	out, err := s.Runner.Run(ctx, "ioreg", "-rd1", "-c", "IOPlatformExpertDevice")
	if err != nil {
		return "", fmt.Errorf("query platform serial: %w", err)
	}
	m := ioregSerialPattern.FindSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("IOPlatformSerialNumber not found in ioreg output")
	}
	return string(m[1]), nil
}

func (s *HostSource) linuxSerial() (string, error) {
	var lastErr error
	for _, path := range linuxSerialFiles {
		raw, err := s.ReadFile(path)
		if err != nil {
			lastErr = err
			continue
		}
		if serial := strings.TrimSpace(string(raw)); ValidSerial(serial) {
			s.logger.Debug("serial source selected", slog.String("path", path))
			return serial, nil
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no usable serial in %s", strings.Join(linuxSerialFiles, ", "))
	}
	return "", lastErr
}

// secondLine returns the trimmed second non-empty line, which is where wmic
// prints the value below its column header.
func secondLine(out []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(out))
	n := 0
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		n++
		if n == 2 {
			return line
		}
	}
	return ""
}
