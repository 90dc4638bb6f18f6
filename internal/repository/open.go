package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/receipt-sheets-bot/internal/common"
)

// Checker is implemented by every store; the health watcher polls it.
type Checker interface {
	Check(ctx context.Context) error
}

// OpenStore builds the row store selected by cfg.Backend. The returned close func releases
// everything the store opened and is safe to call once.
func OpenStore(ctx context.Context, cfg common.SheetConfig, logger *slog.Logger) (RowStore, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	// the Sheets client keeps ctx for token refreshes; only startup calls use cctx
	cctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	switch cfg.Backend {
	case common.BackendGoogle:
		s, err := NewSheetsStore(ctx, SheetsConfig{
			SpreadsheetID:  cfg.SpreadsheetID,
			SheetName:      cfg.SheetName,
			ServiceAccount: cfg.ServiceAccount,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := s.Check(cctx); err != nil {
			return nil, nil, fmt.Errorf("open worksheet %q: %w", cfg.SheetName, err)
		}
		logger.Info("store.opened", "backend", cfg.Backend, "sheet", cfg.SheetName)
		return s, func() { _ = s.Close() }, nil

	case common.BackendXLSX:
		s, err := NewXLSXStore(cfg.XLSXPath, cfg.SheetName, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("store.opened", "backend", cfg.Backend, "path", cfg.XLSXPath, "sheet", cfg.SheetName)
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Error("store.close.failed", "error", err)
			}
		}, nil

	case common.BackendSQLite:
		db, err := Open(cctx, Config{Path: cfg.SQLitePath, BusyTimeout: 5 * time.Second}, logger)
		if err != nil {
			return nil, nil, err
		}
		s, err := NewSQLiteStore(cctx, db, cfg.SheetName, logger)
		if err != nil {
			Close(db, logger)
			return nil, nil, err
		}
		logger.Info("store.opened", "backend", cfg.Backend, "path", cfg.SQLitePath, "sheet", cfg.SheetName)
		return s, func() { Close(db, logger) }, nil
	}
	return nil, nil, common.ConfigError(fmt.Sprintf("unknown sheet backend %q", cfg.Backend), nil)
}
