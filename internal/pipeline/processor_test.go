package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-sheets-bot/constants"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/common"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/entity"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/extract"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/sheet"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/synth"
)

type reply struct {
	chatID    int64
	messageID int
	text      string
}

type fakeTransport struct {
	downloadErr error
	replyErr    error

	mu         sync.Mutex
	downloaded []string
	replies    []reply
}

func (f *fakeTransport) Download(_ context.Context, _ string, dst string) error {
	f.mu.Lock()
	f.downloaded = append(f.downloaded, dst)
	f.mu.Unlock()
	if f.downloadErr != nil {
		return f.downloadErr
	}
	return os.WriteFile(dst, []byte("jpeg"), 0o600)
}

func (f *fakeTransport) Reply(_ context.Context, chatID int64, messageID int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, reply{chatID, messageID, text})
	return f.replyErr
}

type fakeRecognizer struct {
	text     string
	err      error
	sawImage bool
}

func (f *fakeRecognizer) Recognize(_ context.Context, path string) (string, error) {
	_, statErr := os.Stat(path)
	f.sawImage = statErr == nil
	return f.text, f.err
}

type fakeExtractor struct {
	res      extract.Result
	gotText  string
	gotField []entity.Field
	calls    int
}

func (f *fakeExtractor) Extract(_ context.Context, text string, fields []entity.Field) extract.Result {
	f.calls++
	f.gotText = text
	f.gotField = fields
	return f.res
}

type fakeStore struct {
	rows      []sheet.Row
	appendErr error
}

func (s *fakeStore) AppendRow(_ context.Context, r sheet.Row) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.rows = append(s.rows, r)
	return nil
}

func (s *fakeStore) ReadAllRows(context.Context) ([]sheet.Row, error) { return s.rows, nil }
func (s *fakeStore) Close() error { return nil }

// seq yields the given values in order, then zeros.
func seq(vals ...int) func(int) int {
	i := 0
	return func(int) int {
		if i >= len(vals) {
			return 0
		}
		v := vals[i]
		i++
		return v
	}
}

type harness struct {
	tr    *fakeTransport
	ocr   *fakeRecognizer
	ex    *fakeExtractor
	store *fakeStore
	dir   string
	logs  *bytes.Buffer
	proc  *Processor
}

func newHarness(t *testing.T, layoutName string, cfg Config) *harness {
	t.Helper()
	l, ok := sheet.Builtin(layoutName)
	require.True(t, ok)
	h := &harness{
		tr:    &fakeTransport{},
		ocr:   &fakeRecognizer{text: "Order Date: 03/15/2024\nShip to: Jane Roe\n123 Main St, Springfield, IL 62704"},
		ex:    &fakeExtractor{},
		store: &fakeStore{},
		dir:   t.TempDir(),
		logs:  &bytes.Buffer{},
	}
	h.ex.res = extract.Result{Status: extract.StatusOK, Order: entity.Order{
		OrderDate:  "2024-03-15",
		Seller:     "Shokz Store",
		BuyerName:  "Jane Roe",
		BuyerEmail: "jane@example.com",
		Address:    "123 Main St, Springfield, IL 62704",
		Product:    "OpenSwim Pro Red",
	}}
	cfg.TempDir = h.dir
	h.proc = NewProcessor(Deps{
		Transport:  h.tr,
		Recognizer: h.ocr,
		Extractor:  h.ex,
		Store:      h.store,
		IDs:        synth.NewGenerator(seq(7, 1, 2, 3, 4, 5, 6, 1, 0, 1, 0, 2, 9, 3, 8, 4, 7)),
		Layout:     l,
	}, cfg, slog.New(slog.NewTextHandler(h.logs, nil)))
	return h
}

func requireNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func inbound() entity.Inbound {
	return entity.Inbound{ChatID: 42, MessageID: 7, FileID: "large"}
}

func TestProcess_FullLayoutEndToEnd(t *testing.T) {
	h := newHarness(t, "full", Config{SuccessReply: "saved"})

	require.NoError(t, h.proc.Process(context.Background(), inbound()))

	require.Len(t, h.store.rows, 1)
	require.Equal(t, sheet.Row{
		"2024-03-15", "Shokz Store", "Jane Roe", "jane@example.com",
		"6277123456", "123 Main St, Springfield, IL 62704", "Springfield", "62704",
		"OpenSwim Pro Red", "S7101010293847", "", "", "",
	}, h.store.rows[0])
	require.Equal(t, []reply{{42, 7, "saved"}}, h.tr.replies)
	require.Equal(t, entity.ExtractableFields, h.ex.gotField)
	require.True(t, h.ocr.sawImage)

	require.Len(t, h.tr.downloaded, 1)
	require.Equal(t, h.dir, filepath.Dir(h.tr.downloaded[0]))
	require.True(t, strings.HasSuffix(h.tr.downloaded[0], constants.ImageExt))
	requireNoTempFiles(t, h.dir)
}

func TestProcess_AddressLayoutPadsSheet(t *testing.T) {
	h := newHarness(t, "address", Config{SuccessReply: "saved"})

	require.NoError(t, h.proc.Process(context.Background(), inbound()))
	require.Len(t, h.store.rows, 490)
	require.Equal(t, sheet.BlankRow(13), h.store.rows[0])
	last := h.store.rows[489]
	require.Equal(t, "123 Main St, Springfield, IL 62704", last[5])
	require.Equal(t, "OpenSwim Pro Red", last[8])
	require.Empty(t, last[0])
	require.Equal(t, []entity.Field{entity.FieldAddress, entity.FieldProduct}, h.ex.gotField)

	// already padded: the next order only appends its own row
	require.NoError(t, h.proc.Process(context.Background(), inbound()))
	require.Len(t, h.store.rows, 491)
}

func TestProcess_RawLayoutSkipsExtraction(t *testing.T) {
	h := newHarness(t, "raw", Config{SuccessReply: "saved"})

	require.NoError(t, h.proc.Process(context.Background(), inbound()))
	require.Zero(t, h.ex.calls)
	require.Equal(t, []sheet.Row{{h.ocr.text}}, h.store.rows)
}

func TestProcess_AppendFailureSendsNoSuccessReply(t *testing.T) {
	h := newHarness(t, "full", Config{SuccessReply: "saved"})
	h.store.appendErr = common.UpstreamError("sheets", errors.New("403"))

	err := h.proc.Process(context.Background(), inbound())
	require.Error(t, err)
	var se *StageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, constants.StateAppending, se.State)
	require.Empty(t, h.tr.replies)
	requireNoTempFiles(t, h.dir)

	logs := h.logs.String()
	require.Contains(t, logs, "msg=pipeline.failed")
	require.Contains(t, logs, "state=APPENDING")
	require.Contains(t, logs, "code=UPSTREAM_ERROR")
	require.Contains(t, logs, "chat_id=42")
}

func TestProcess_FailureReplyWhenConfigured(t *testing.T) {
	h := newHarness(t, "full", Config{SuccessReply: "saved", FailureReply: "could not save"})
	h.store.appendErr = errors.New("sheets: 403")

	require.Error(t, h.proc.Process(context.Background(), inbound()))
	require.Equal(t, []reply{{42, 7, "could not save"}}, h.tr.replies)
}

func TestProcess_DownloadFailure(t *testing.T) {
	h := newHarness(t, "full", Config{SuccessReply: "saved"})
	h.tr.downloadErr = errors.New("telegram: 404")

	err := h.proc.Process(context.Background(), inbound())
	var se *StageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, constants.StateDownloading, se.State)
	require.Empty(t, h.store.rows)
	require.Empty(t, h.tr.replies)
	requireNoTempFiles(t, h.dir)
}

func TestProcess_OCRFailureStillAppends(t *testing.T) {
	h := newHarness(t, "full", Config{SuccessReply: "saved"})
	h.ocr.err = errors.New("ocr.space: timeout")
	h.ex.res = extract.Result{Status: extract.StatusDegraded, Reason: "empty text"}

	require.NoError(t, h.proc.Process(context.Background(), inbound()))
	require.Equal(t, "", h.ex.gotText)
	require.Len(t, h.store.rows, 1)

	row := h.store.rows[0]
	require.Len(t, row, 13)
	require.Equal(t, "00000", row[7])
	require.Empty(t, row[6])
	require.True(t, strings.HasPrefix(row[9], constants.UnknownModelCode))
	require.Len(t, row[4], 10)
	require.Equal(t, []reply{{42, 7, "saved"}}, h.tr.replies)
}

func TestProcess_ReplyFailureKeepsRow(t *testing.T) {
	h := newHarness(t, "full", Config{SuccessReply: "saved"})
	h.tr.replyErr = errors.New("blocked by user")

	require.NoError(t, h.proc.Process(context.Background(), inbound()))
	require.Len(t, h.store.rows, 1)
}
