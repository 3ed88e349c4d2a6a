package ledger

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsSink appends entries to a Google Sheet.
type SheetsSink struct {
	service *sheets.Service
	sheetID string
	sheet   string
}

// WithCredentialsFile authenticates with a service-account key file.
func WithCredentialsFile(path string) option.ClientOption {
	return option.WithCredentialsFile(path)
}

// NewSheetsSink creates a sink for the spreadsheet sheetID.
func NewSheetsSink(ctx context.Context, sheetID, sheet string, opts ...option.ClientOption) (*SheetsSink, error) {
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &SheetsSink{service: service, sheetID: sheetID, sheet: sheet}, nil
}

// Name implements Sink.
func (s *SheetsSink) Name() string { return "google_sheets" }

// Append implements Sink.
func (s *SheetsSink) Append(ctx context.Context, e Entry) error {
	values := &sheets.ValueRange{Values: [][]interface{}{e.Row()}}
	_, err := s.service.Spreadsheets.Values.Append(s.sheetID, s.sheet+"!A:E", values).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append to sheet %s: %w", s.sheetID, err)
	}
	return nil
}
