package repository

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/receipt-sheets-bot/internal/sheet"
)

// RowStore is the spreadsheet boundary: append one row, read every row.
type RowStore interface {
	AppendRow(ctx context.Context, row sheet.Row) error
	ReadAllRows(ctx context.Context) ([]sheet.Row, error)
	Close() error
}

// RowsAppender is implemented by stores that can append several rows in one call.
type RowsAppender interface {
	AppendRows(ctx context.Context, rows []sheet.Row) error
}

// Padder is implemented by stores whose appends skip trailing blank rows.
// PadTo makes the next append land below row minRows and reports how many rows it wrote.
type Padder interface {
	PadTo(ctx context.Context, minRows, width int) (int, error)
}

// EnsureMinRows makes sure the next appended row lands after row minRows,
// writing blank rows of the given width when the store needs them.
func EnsureMinRows(ctx context.Context, s RowStore, minRows, width int) (int, error) {
	if minRows <= 0 {
		return 0, nil
	}
	if p, ok := s.(Padder); ok {
		return p.PadTo(ctx, minRows, width)
	}

	rows, err := s.ReadAllRows(ctx)
	if err != nil {
		return 0, fmt.Errorf("read rows: %w", err)
	}
	missing := minRows - len(rows)
	if missing <= 0 {
		return 0, nil
	}

	blanks := make([]sheet.Row, missing)
	for i := range blanks {
		blanks[i] = sheet.BlankRow(width)
	}
	if ra, ok := s.(RowsAppender); ok {
		if err := ra.AppendRows(ctx, blanks); err != nil {
			return 0, fmt.Errorf("append blank rows: %w", err)
		}
		return missing, nil
	}
	for i, b := range blanks {
		if err := s.AppendRow(ctx, b); err != nil {
			return i, fmt.Errorf("append blank row: %w", err)
		}
	}
	return missing, nil
}
