// Package adb drives the Android Debug Bridge executable.
package adb

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"licensebridge/internal/config"
	"licensebridge/internal/infrastructure"
	"licensebridge/internal/shell"
)

// Client runs adb commands. Path is the adb executable.
type Client struct {
	Path   string
	Runner shell.Runner
	logger *slog.Logger
}

// NewClient creates a Client for the adb binary at adbPath.
func NewClient(adbPath string, runner shell.Runner, logger *slog.Logger) *Client {
	return &Client{
		Path:   adbPath,
		Runner: runner,
		logger: infrastructure.WithComponent(logger, "adb"),
	}
}

// Devices lists the serials of attached devices in the "device" state.
func (c *Client) Devices(ctx context.Context) ([]string, error) {
	out, err := c.Runner.Run(ctx, c.Path, "devices")
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	devices := ParseDevices(out)
	c.logger.DebugContext(ctx, "devices listed", slog.Int("count", len(devices)))
	return devices, nil
}

// ParseDevices extracts serials from `adb devices` output. Unauthorized and
// offline devices are skipped.
func ParseDevices(out []byte) []string {
	devices := []string{}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 2 && fields[len(fields)-1] == "device" {
			devices = append(devices, fields[0])
		}
	}
	return devices
}

// Pull copies remote from the device to local.
func (c *Client) Pull(ctx context.Context, serial, remote, local string) error {
	if _, err := c.Runner.Run(ctx, c.Path, c.deviceArgs(serial, "pull", remote, local)...); err != nil {
		return fmt.Errorf("pull %s from %s: %w", remote, serial, err)
	}
	c.logger.DebugContext(ctx, "file pulled",
		slog.String("device", serial), slog.String("remote", remote), slog.String("local", local))
	return nil
}

// Push copies local into remoteDir as the license file and returns the
// remote path written.
func (c *Client) Push(ctx context.Context, serial, local, remoteDir string) (string, error) {
	remote := path.Join(remoteDir, config.LicenseFileName)
	if _, err := c.Runner.Run(ctx, c.Path, c.deviceArgs(serial, "push", local, remote)...); err != nil {
		return "", fmt.Errorf("push %s to %s: %w", remote, serial, err)
	}
	c.logger.DebugContext(ctx, "file pushed",
		slog.String("device", serial), slog.String("remote", remote))
	return remote, nil
}

// KillServer stops the adb server so it does not outlive the process.
func (c *Client) KillServer(ctx context.Context) error {
	if _, err := c.Runner.Run(ctx, c.Path, "kill-server"); err != nil {
		return fmt.Errorf("kill adb server: %w", err)
	}
	return nil
}

func (c *Client) deviceArgs(serial string, args ...string) []string {
	if serial == "" {
		return args
	}
	return append([]string{"-s", serial}, args...)
}
