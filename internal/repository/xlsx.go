package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipt-sheets-bot/internal/sheet"
)

// XLSXStore appends rows to a worksheet of a local workbook, saving after every write.
type XLSXStore struct {
	path   string
	sheet  string
	logger *slog.Logger

	mu   sync.Mutex
	f    *excelize.File
	next int // 1-based row the next append writes to
}

func NewXLSXStore(path, sheetName string, logger *slog.Logger) (*XLSXStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var f *excelize.File
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		f = excelize.NewFile()
		if sheetName != "Sheet1" {
			if _, err := f.NewSheet(sheetName); err != nil {
				return nil, fmt.Errorf("xlsx new sheet: %w", err)
			}
			idx, _ := f.GetSheetIndex(sheetName)
			f.SetActiveSheet(idx)
			_ = f.DeleteSheet("Sheet1")
		}
		if err := f.SaveAs(path); err != nil {
			return nil, fmt.Errorf("xlsx create: %w", err)
		}
		logger.Info("store.xlsx.created", "path", path, "sheet", sheetName)
	} else {
		var err error
		f, err = excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("xlsx open: %w", err)
		}
		if idx, _ := f.GetSheetIndex(sheetName); idx == -1 {
			if _, err := f.NewSheet(sheetName); err != nil {
				return nil, fmt.Errorf("xlsx new sheet: %w", err)
			}
		}
	}
	existing, err := f.GetRows(sheetName)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("xlsx read rows: %w", err)
	}
	return &XLSXStore{path: path, sheet: sheetName, logger: logger, f: f, next: len(existing) + 1}, nil
}

func (s *XLSXStore) AppendRow(ctx context.Context, row sheet.Row) error {
	return s.AppendRows(ctx, []sheet.Row{row})
}

func (s *XLSXStore) AppendRows(ctx context.Context, rows []sheet.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.next
	for _, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, next)
		values := r.Values()
		if err := s.f.SetSheetRow(s.sheet, cell, &values); err != nil {
			return fmt.Errorf("xlsx set row: %w", err)
		}
		next++
	}
	if err := s.f.Save(); err != nil {
		return fmt.Errorf("xlsx save: %w", err)
	}
	s.next = next
	s.logger.Debug("store.xlsx.append", "sheet", s.sheet, "rows", len(rows), "next_row", next, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// PadTo anchors appends below row minRows. Blank rows are not written: the
// workbook would trim them when read back.
func (s *XLSXStore) PadTo(_ context.Context, minRows, _ int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next <= minRows {
		s.next = minRows + 1
	}
	return 0, nil
}

func (s *XLSXStore) ReadAllRows(ctx context.Context) ([]sheet.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.f.GetRows(s.sheet)
	if err != nil {
		return nil, fmt.Errorf("xlsx read rows: %w", err)
	}
	// trailing rows whose cells are all empty are not returned by GetRows
	n := max(len(rows), s.next-1)
	out := make([]sheet.Row, n)
	for i := range out {
		if i < len(rows) {
			out[i] = sheet.Row(rows[i])
		} else {
			out[i] = sheet.Row{}
		}
	}
	return out, nil
}

// Check verifies the workbook file is still in place.
func (s *XLSXStore) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := os.Stat(s.path)
	return err
}

func (s *XLSXStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
