// Package devicecode derives the host device code from the board serial number.
package devicecode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"

	apierrors "licensebridge/internal/errors"
	"licensebridge/internal/infrastructure"
)

// CodeLength is the number of hex characters kept from the serial digest.
const CodeLength = 16

// placeholderSerials are values firmware vendors leave in unset serial fields.
var placeholderSerials = map[string]struct{}{
	"to be filled by o.e.m.": {},
	"default string":         {},
	"not applicable":         {},
	"none":                   {},
	"0":                      {},
}

// SerialSource reads a stable hardware serial number.
type SerialSource interface {
	Serial(ctx context.Context) (string, error)
}

// Generator produces device codes.
type Generator struct {
	source SerialSource
	logger *slog.Logger
}

// NewGenerator creates a Generator reading from source.
func NewGenerator(source SerialSource, logger *slog.Logger) *Generator {
	return &Generator{
		source: source,
		logger: infrastructure.WithComponent(logger, "devicecode"),
	}
}

// Generate returns the device code of this host.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	serial, err := g.source.Serial(ctx)
	if err != nil {
		g.logger.WarnContext(ctx, "serial number lookup failed", slog.String("error", err.Error()))
		return "", apierrors.NewAppError(apierrors.ErrTypeNotFound,
			"unable to read a valid motherboard serial number", err)
	}

	serial = strings.TrimSpace(serial)
	if !ValidSerial(serial) {
		g.logger.WarnContext(ctx, "serial number rejected", slog.String("serial", serial))
		return "", apierrors.NewAppError(apierrors.ErrTypeNotFound,
			"unable to read a valid motherboard serial number", nil)
	}

	code := Code(serial)
	g.logger.DebugContext(ctx, "device code generated", slog.String("device_code", code))
	return code, nil
}

// ValidSerial reports whether serial identifies real hardware.
func ValidSerial(serial string) bool {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return false
	}
	_, placeholder := placeholderSerials[strings.ToLower(serial)]
	return !placeholder
}

// Code hashes serial into a device code.
func Code(serial string) string {
	sum := sha256.Sum256([]byte(serial))
	return hex.EncodeToString(sum[:])[:CodeLength]
}
