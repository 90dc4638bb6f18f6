package repository

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-sheets-bot/internal/common"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/sheet"
)

type fakeSheetsAPI struct {
	mu       sync.Mutex
	ranges   []string
	bodies   []map[string]any
	queries  []url.Values
	failWith int
}

func (f *fakeSheetsAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, _ := url.PathUnescape(r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if f.failWith != 0 {
			w.WriteHeader(f.failWith)
			_, _ = io.WriteString(w, `{"error":{"code":403,"message":"denied"}}`)
			return
		}
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			i := strings.Index(path, "/values/")
			rng := strings.TrimSuffix(path[i+len("/values/"):], ":append")
			f.mu.Lock()
			f.ranges = append(f.ranges, rng)
			f.bodies = append(f.bodies, body)
			f.queries = append(f.queries, r.URL.Query())
			f.mu.Unlock()
			_, _ = io.WriteString(w, `{"updates":{"updatedRange":"Orders!A490:M490","updatedRows":1}}`)
		case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
			_, _ = io.WriteString(w, `{"range":"Orders!A1:B2","values":[["a","b"],["c",5]]}`)
		case r.Method == http.MethodGet:
			_, _ = io.WriteString(w, `{"sheets":[{"properties":{"title":"Orders"}},{"properties":{"title":"Other"}}]}`)
		default:
			http.NotFound(w, r)
		}
	}
}

func newTestSheetsStore(t *testing.T, api *fakeSheetsAPI, sheetName string) *SheetsStore {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	s, err := NewSheetsStore(context.Background(), SheetsConfig{
		SpreadsheetID: "sheet-id",
		SheetName:     sheetName,
		Endpoint:      srv.URL + "/",
	}, nil)
	require.NoError(t, err)
	return s
}

func TestSheetsStore_Append(t *testing.T) {
	api := &fakeSheetsAPI{}
	s := newTestSheetsStore(t, api, "Orders")
	ctx := context.Background()

	require.NoError(t, s.AppendRow(ctx, sheet.Row{"2024-03-15", "", "Jane"}))

	require.Equal(t, []string{"Orders!A1"}, api.ranges)
	require.Equal(t, "RAW", api.queries[0].Get("valueInputOption"))
	require.Equal(t, "INSERT_ROWS", api.queries[0].Get("insertDataOption"))
	require.Equal(t, []any{[]any{"2024-03-15", "", "Jane"}}, api.bodies[0]["values"])
}

func TestSheetsStore_PadToMovesAnchor(t *testing.T) {
	api := &fakeSheetsAPI{}
	s := newTestSheetsStore(t, api, "Orders")
	ctx := context.Background()

	n, err := EnsureMinRows(ctx, s, 489, 13)
	require.NoError(t, err)
	require.Zero(t, n)
	// a smaller minimum never moves the anchor back up
	_, err = s.PadTo(ctx, 10, 13)
	require.NoError(t, err)

	require.NoError(t, s.AppendRow(ctx, sheet.BlankRow(13)))
	require.Equal(t, []string{"Orders!A490"}, api.ranges)
}

func TestSheetsStore_ReadAllRows(t *testing.T) {
	s := newTestSheetsStore(t, &fakeSheetsAPI{}, "Orders")
	rows, err := s.ReadAllRows(context.Background())
	require.NoError(t, err)
	require.Equal(t, []sheet.Row{{"a", "b"}, {"c", "5"}}, rows)
}

func TestSheetsStore_Check(t *testing.T) {
	require.NoError(t, newTestSheetsStore(t, &fakeSheetsAPI{}, "Orders").Check(context.Background()))

	err := newTestSheetsStore(t, &fakeSheetsAPI{}, "Missing").Check(context.Background())
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestSheetsStore_UpstreamFailure(t *testing.T) {
	s := newTestSheetsStore(t, &fakeSheetsAPI{failWith: http.StatusForbidden}, "Orders")
	err := s.AppendRow(context.Background(), sheet.Row{"a"})
	require.ErrorIs(t, err, common.ErrUpstream)

	_, err = s.ReadAllRows(context.Background())
	require.ErrorIs(t, err, common.ErrUpstream)
}

func TestServiceAccountKey(t *testing.T) {
	b, err := serviceAccountKey(`  {"type":"service_account"}`)
	require.NoError(t, err)
	require.Equal(t, `{"type":"service_account"}`, string(b))

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"k":1}`), 0o600))
	b, err = serviceAccountKey(path)
	require.NoError(t, err)
	require.Equal(t, `{"k":1}`, string(b))

	_, err = serviceAccountKey(filepath.Join(t.TempDir(), "nope.json"))
	require.ErrorIs(t, err, common.ErrConfig)
}

func TestNewSheetsStore_BadKey(t *testing.T) {
	_, err := NewSheetsStore(context.Background(), SheetsConfig{SpreadsheetID: "x", SheetName: "Orders", ServiceAccount: `{"type":"nonsense"}`}, nil)
	require.ErrorIs(t, err, common.ErrConfig)
}
