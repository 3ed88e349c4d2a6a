// Package ledger records every issued license in a workbook and, when
// configured, a Google Sheet.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"licensebridge/internal/config"
	"licensebridge/internal/infrastructure"
)

// Source tells which flow issued a license.
type Source string

const (
	SourceWindows Source = "windows"
	SourceAndroid Source = "android"
)

// Header is the column layout shared by every sink.
var Header = []string{"Issued At", "Device Code", "Serial Number", "Source", "Target"}

// Entry is one issued license.
type Entry struct {
	DeviceCode   string
	SerialNumber string
	IssuedAt     time.Time
	Target       string
	Source       Source
}

// Row renders e in Header order.
func (e Entry) Row() []interface{} {
	return []interface{}{
		e.IssuedAt.UTC().Format(time.RFC3339),
		e.DeviceCode,
		e.SerialNumber,
		string(e.Source),
		e.Target,
	}
}

// Sink stores entries.
type Sink interface {
	Name() string
	Append(ctx context.Context, e Entry) error
}

// Recorder is what the backend needs from a ledger.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Ledger fans entries out to its sinks.
type Ledger struct {
	sinks  []Sink
	logger *slog.Logger
}

// New creates a Ledger over sinks.
func New(logger *slog.Logger, sinks ...Sink) *Ledger {
	return &Ledger{
		sinks:  sinks,
		logger: infrastructure.WithComponent(logger, "ledger"),
	}
}

// Open builds the sinks described by cfg. A disabled ledger has no sinks.
func Open(ctx context.Context, cfg config.LedgerConfig, logger *slog.Logger) (*Ledger, error) {
	if !cfg.Enabled {
		return New(logger), nil
	}

	sinks := []Sink{NewXLSXSink(cfg.WorkbookPath, cfg.SheetName)}
	if cfg.SheetsEnabled() {
		sheetsSink, err := NewSheetsSink(ctx, cfg.SheetID, cfg.SheetName, WithCredentialsFile(cfg.CredentialsFile))
		if err != nil {
			return nil, fmt.Errorf("failed to create sheets sink: %w", err)
		}
		sinks = append(sinks, sheetsSink)
	}
	return New(logger, sinks...), nil
}

// Sinks returns the names of the configured sinks.
func (l *Ledger) Sinks() []string {
	names := make([]string, 0, len(l.sinks))
	for _, s := range l.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Record appends e to every sink. All sinks are attempted; their errors
// are joined.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range l.sinks {
		if err := s.Append(ctx, e); err != nil {
			l.logger.ErrorContext(ctx, "ledger append failed",
				slog.String("sink", s.Name()),
				slog.String("device_code", e.DeviceCode),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		l.logger.DebugContext(ctx, "ledger entry recorded",
			slog.String("sink", s.Name()),
			slog.String("serial_number", e.SerialNumber))
	}
	return errors.Join(errs...)
}
