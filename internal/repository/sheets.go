package repository

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/joseph-ayodele/receipt-sheets-bot/internal/common"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/sheet"
)

// SheetsConfig identifies the target worksheet and the service account that may edit it.
type SheetsConfig struct {
	SpreadsheetID  string
	SheetName      string
	ServiceAccount string // JSON key contents, or a path to the key file
	Endpoint       string // custom API endpoint (emulator/tests); disables auth
}

// SheetsStore appends rows to a Google Sheets worksheet.
type SheetsStore struct {
	svc    *sheets.Service
	id     string
	sheet  string
	logger *slog.Logger

	mu     sync.Mutex
	anchor int // 1-based row where the append table search starts
}

func NewSheetsStore(ctx context.Context, cfg SheetsConfig, logger *slog.Logger) (*SheetsStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts,
			option.WithEndpoint(cfg.Endpoint),
			option.WithHTTPClient(&http.Client{}),
			option.WithoutAuthentication(),
		)
	} else {
		key, err := serviceAccountKey(cfg.ServiceAccount)
		if err != nil {
			return nil, err
		}
		jwt, err := google.JWTConfigFromJSON(key, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, common.ConfigError("parse service account key", err)
		}
		opts = append(opts, option.WithHTTPClient(jwt.Client(ctx)))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return &SheetsStore{svc: svc, id: cfg.SpreadsheetID, sheet: cfg.SheetName, logger: logger, anchor: 1}, nil
}

// serviceAccountKey accepts the key JSON itself or a path to it.
func serviceAccountKey(v string) ([]byte, error) {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "{") {
		return []byte(v), nil
	}
	b, err := os.ReadFile(v)
	if err != nil {
		return nil, common.ConfigError("read service account key", err)
	}
	return b, nil
}

// Check verifies the spreadsheet is reachable and has the configured worksheet.
func (s *SheetsStore) Check(ctx context.Context) error {
	ss, err := s.svc.Spreadsheets.Get(s.id).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return common.UpstreamError("sheets", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == s.sheet {
			return nil
		}
	}
	return common.NewAppError(common.CodeConfig, fmt.Sprintf("worksheet %q not found", s.sheet), common.ErrNotFound)
}

func (s *SheetsStore) AppendRow(ctx context.Context, row sheet.Row) error {
	return s.AppendRows(ctx, []sheet.Row{row})
}

// AppendRows appends after the last row of the table found from the anchor row down.
func (s *SheetsStore) AppendRows(ctx context.Context, rows []sheet.Row) error {
	start := time.Now()
	values := make([][]interface{}, len(rows))
	for i, r := range rows {
		values[i] = r.Values()
	}

	s.mu.Lock()
	rng := fmt.Sprintf("%s!A%d", s.sheet, s.anchor)
	s.mu.Unlock()

	resp, err := s.svc.Spreadsheets.Values.Append(s.id, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		s.logger.Error("store.sheets.append_failed", "range", rng, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return common.UpstreamError("sheets", err)
	}
	updated := ""
	if resp.Updates != nil {
		updated = resp.Updates.UpdatedRange
	}
	s.logger.Info("store.sheets.append", "range", rng, "updated_range", updated, "rows", len(rows), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// PadTo moves the append anchor below row minRows. The Sheets append call
// ignores blank rows when locating the table, so none are written.
func (s *SheetsStore) PadTo(_ context.Context, minRows, _ int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if minRows+1 > s.anchor {
		s.anchor = minRows + 1
	}
	return 0, nil
}

func (s *SheetsStore) ReadAllRows(ctx context.Context) ([]sheet.Row, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.id, s.sheet).Context(ctx).Do()
	if err != nil {
		return nil, common.UpstreamError("sheets", err)
	}
	out := make([]sheet.Row, len(resp.Values))
	for i, r := range resp.Values {
		row := make(sheet.Row, len(r))
		for j, c := range r {
			row[j] = fmt.Sprint(c)
		}
		out[i] = row
	}
	return out, nil
}

func (s *SheetsStore) Close() error { return nil }
