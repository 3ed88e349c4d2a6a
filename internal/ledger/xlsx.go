package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
)

// XLSXSink appends entries to a local workbook, creating it with a header
// row on first use.
type XLSXSink struct {
	path  string
	sheet string
	mu    sync.Mutex
}

// NewXLSXSink creates a sink writing sheet in the workbook at path.
func NewXLSXSink(path, sheet string) *XLSXSink {
	return &XLSXSink{path: path, sheet: sheet}
}

// Name implements Sink.
func (s *XLSXSink) Name() string { return "xlsx" }

// Append implements Sink.
func (s *XLSXSink) Append(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return fmt.Errorf("failed to read sheet %s: %w", s.sheet, err)
	}
	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return err
	}
	row := e.Row()
	if err := f.SetSheetRow(s.sheet, cell, &row); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}

	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", s.path, err)
	}
	return nil
}

// Entries reads back every recorded entry.
func (s *XLSXSink) Entries() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", s.sheet, err)
	}

	entries := make([]Entry, 0, len(rows))
	for i, row := range rows {
		if i == 0 || len(row) < len(Header) {
			continue
		}
		issued, _ := time.Parse(time.RFC3339, row[0])
		entries = append(entries, Entry{
			IssuedAt:     issued,
			DeviceCode:   row[1],
			SerialNumber: row[2],
			Source:       Source(row[3]),
			Target:       row[4],
		})
	}
	return entries, nil
}

func (s *XLSXSink) open() (*excelize.File, error) {
	if _, err := os.Stat(s.path); err == nil {
		f, err := excelize.OpenFile(s.path)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook %s: %w", s.path, err)
		}
		if idx, _ := f.GetSheetIndex(s.sheet); idx == -1 {
			if err := s.addSheet(f); err != nil {
				f.Close()
				return nil, err
			}
		}
		return f, nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", s.sheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := s.writeHeader(f); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (s *XLSXSink) addSheet(f *excelize.File) error {
	if _, err := f.NewSheet(s.sheet); err != nil {
		return fmt.Errorf("failed to add sheet %s: %w", s.sheet, err)
	}
	return s.writeHeader(f)
}

func (s *XLSXSink) writeHeader(f *excelize.File) error {
	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(s.sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(s.sheet, 1, 1, style); err != nil {
		return err
	}
	return f.SetColWidth(s.sheet, "A", "E", 28)
}
