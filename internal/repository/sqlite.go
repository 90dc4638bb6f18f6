package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/receipt-sheets-bot/internal/sheet"
)

// SQLiteStore keeps rows of one named sheet in a sqlite table, cells as a JSON array.
type SQLiteStore struct {
	db     *sql.DB
	sheet  string
	logger *slog.Logger
}

func NewSQLiteStore(ctx context.Context, db *sql.DB, sheetName string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SQLiteStore{db: db, sheet: sheetName, logger: logger}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	stmts := []string{`
	CREATE TABLE IF NOT EXISTS sheet_rows (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		sheet      TEXT NOT NULL,
		cells      JSON NOT NULL,
		created_at DATETIME NOT NULL
	);`,
		`CREATE INDEX IF NOT EXISTS idx_sheet_rows_sheet ON sheet_rows(sheet, id);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) AppendRow(ctx context.Context, row sheet.Row) error {
	return s.AppendRows(ctx, []sheet.Row{row})
}

// AppendRows inserts all rows in one transaction.
func (s *SQLiteStore) AppendRows(ctx context.Context, rows []sheet.Row) error {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sheet_rows (sheet, cells, created_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for _, r := range rows {
		if r == nil {
			r = sheet.Row{}
		}
		cells, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode row: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, s.sheet, string(cells), now); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("store.sqlite.append", "sheet", s.sheet, "rows", len(rows), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func (s *SQLiteStore) ReadAllRows(ctx context.Context) ([]sheet.Row, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cells FROM sheet_rows WHERE sheet = ? ORDER BY id`, s.sheet)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []sheet.Row
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var r sheet.Row
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Check(ctx context.Context) error {
	return HealthCheck(ctx, s.db, 0, s.logger)
}

// Close is a no-op; the *sql.DB belongs to the caller.
func (s *SQLiteStore) Close() error { return nil }
