package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-sheets-bot/internal/common"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeJPEG writes a noisy w×h color JPEG and returns its path.
func writeJPEG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	r := rand.New(rand.NewPCG(1, 2))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(r.IntN(256)), uint8(r.IntN(256)), uint8(r.IntN(256)), 255})
		}
	}
	path := filepath.Join(t.TempDir(), "receipt.jpg")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 95}))
	require.NoError(t, f.Close())
	return path
}

type capturedForm struct {
	mu          sync.Mutex
	fields      map[string]string
	fileName    string
	fileType    string
	fileBytes   int
	requestSeen int
}

func ocrServer(t *testing.T, status int, body string) (*httptest.Server, *capturedForm) {
	t.Helper()
	cf := &capturedForm{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(10<<20))
		cf.mu.Lock()
		cf.requestSeen++
		cf.fields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			cf.fields[k] = v[0]
		}
		if fh := r.MultipartForm.File["file"]; len(fh) == 1 {
			cf.fileName = fh[0].Filename
			cf.fileType = fh[0].Header.Get("Content-Type")
			cf.fileBytes = int(fh[0].Size)
		}
		cf.mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, cf
}

const okBody = `{
	"ParsedResults": [
		{"ParsedText": "123 Main St,  Springfield, IL 62704\r\nUSA\r\n", "FileParseExitCode": 1, "ErrorMessage": ""},
		{"ParsedText": "Item:\tOpenswim Pro Red", "FileParseExitCode": 1, "ErrorMessage": ""}
	],
	"OCRExitCode": 1,
	"IsErroredOnProcessing": false,
	"ErrorMessage": null,
	"ProcessingTimeInMilliseconds": "321"
}`

func TestExtract_OK(t *testing.T) {
	srv, cf := ocrServer(t, http.StatusOK, okBody)
	path := writeJPEG(t, 40, 30)

	e := NewExtractor(Config{APIKey: "k-123", URL: srv.URL, Engine: "2"}, quietLogger())
	res, err := e.Extract(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "123 Main St, Springfield, IL 62704\nUSA\n\nItem: Openswim Pro Red", res.Text)
	require.Equal(t, 2, res.Pages)
	require.Equal(t, "ocr.space", res.Method)

	require.Equal(t, "k-123", cf.fields["apikey"])
	require.Equal(t, "eng", cf.fields["language"])
	require.Equal(t, "2", cf.fields["OCREngine"])
	require.Equal(t, "receipt.jpg", cf.fileName)
	require.Equal(t, "image/jpeg", cf.fileType)

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int(st.Size()), cf.fileBytes, "unenhanced small images are uploaded as-is")
}

func TestRecognize_ReturnsText(t *testing.T) {
	srv, _ := ocrServer(t, http.StatusOK, okBody)
	e := NewExtractor(Config{APIKey: "k", URL: srv.URL}, quietLogger())
	text, err := e.Recognize(context.Background(), writeJPEG(t, 10, 10))
	require.NoError(t, err)
	require.Contains(t, text, "Openswim Pro Red")
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		upstream bool
		contains string
	}{
		{"http 500", http.StatusInternalServerError, `oops`, true, "non-2xx status: 500"},
		{"processing error list", http.StatusOK, `{"IsErroredOnProcessing":true,"OCRExitCode":3,"ErrorMessage":["File failed validation","Too large"]}`, true, "File failed validation; Too large"},
		{"processing error string", http.StatusOK, `{"IsErroredOnProcessing":true,"OCRExitCode":4,"ErrorMessage":"Invalid API key"}`, true, "Invalid API key"},
		{"no parsed results", http.StatusOK, `{"IsErroredOnProcessing":false,"OCRExitCode":1}`, false, "no parsed results"},
		{"not json", http.StatusOK, `<html>`, false, "decode ocr response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := ocrServer(t, tt.status, tt.body)
			e := NewExtractor(Config{APIKey: "k", URL: srv.URL}, quietLogger())
			res, err := e.Extract(context.Background(), writeJPEG(t, 10, 10))
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.contains)
			require.Equal(t, tt.upstream, errors.Is(err, common.ErrUpstream))
			require.Empty(t, res.Text)
		})
	}
}

func TestExtract_TruncatedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(10 << 20)
		w.Header().Set("Content-Length", "1000")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"ParsedResults": [`)
	}))
	t.Cleanup(srv.Close)

	e := NewExtractor(Config{APIKey: "k", URL: srv.URL}, quietLogger())
	res, err := e.Extract(context.Background(), writeJPEG(t, 10, 10))
	require.ErrorContains(t, err, "read ocr response")
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.ErrorIs(t, err, common.ErrUpstream)
	require.Empty(t, res.Text)
}

func TestExtract_MissingFile(t *testing.T) {
	e := NewExtractor(Config{APIKey: "k", URL: "http://127.0.0.1:1"}, quietLogger())
	_, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "nope.jpg"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "prepare image")
}

func TestExtract_RateLimited(t *testing.T) {
	srv, cf := ocrServer(t, http.StatusOK, okBody)
	e := NewExtractor(Config{APIKey: "k", URL: srv.URL, RatePerMinute: 600}, quietLogger())
	path := writeJPEG(t, 10, 10)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := e.Extract(context.Background(), path)
		require.NoError(t, err)
	}
	require.GreaterOrEqual(t, time.Since(start), 180*time.Millisecond)
	require.Equal(t, 3, cf.requestSeen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Extract(ctx, path)
	require.Error(t, err)
}

func TestPrepareImage_PassThrough(t *testing.T) {
	path := writeJPEG(t, 20, 20)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	out, warns, err := PrepareImage(path, false, 0)
	require.NoError(t, err)
	require.Empty(t, warns)
	require.Equal(t, raw, out)
}

func TestPrepareImage_Enhance(t *testing.T) {
	out, warns, err := PrepareImage(writeJPEG(t, 64, 48), true, 0)
	require.NoError(t, err)
	require.Contains(t, warns, "enhanced")

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, 64, img.Bounds().Dx())
	require.Equal(t, 48, img.Bounds().Dy())

	r, g, b, _ := img.At(10, 10).RGBA()
	require.InDelta(t, r, g, 2*256)
	require.InDelta(t, g, b, 2*256)
}

func TestPrepareImage_ShrinksUnderLimit(t *testing.T) {
	path := writeJPEG(t, 600, 600)
	st, err := os.Stat(path)
	require.NoError(t, err)
	limit := int(st.Size() / 4)

	out, _, err := PrepareImage(path, false, limit)
	require.NoError(t, err)
	require.LessOrEqual(t, len(out), limit)
	_, err = jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
}

func TestPrepareImage_UndecodableOversized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.jpg")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), 200), 0o600))

	out, warns, err := PrepareImage(path, false, 100)
	require.NoError(t, err)
	require.Len(t, out, 200)
	require.Len(t, warns, 1)

	_, _, err = PrepareImage(path, true, 0)
	require.Error(t, err)
}

func TestNormalize(t *testing.T) {
	in := "Order 0123\r\n\r\n\r\n\r\nShip\tto:   Jane  \n-----\nZIP 02108  "
	require.Equal(t, "Order 0123\n\nShip to: Jane\n\nZIP 02108", Normalize(in))
	require.Equal(t, "", Normalize(""))
}
