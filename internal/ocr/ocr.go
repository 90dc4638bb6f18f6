// Package ocr sends receipt images to the OCR.space parse API.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/receipt-sheets-bot/constants"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/common"
)

const DefaultURL = "https://api.ocr.space/parse/image"

type Config struct {
	APIKey   string
	URL      string // default DefaultURL
	Language string // default "eng"
	Engine   string // OCREngine form value; empty leaves the provider default
	Timeout  time.Duration

	Enhance       bool // grayscale/contrast/sharpen before upload
	MaxImageBytes int  // re-encode uploads larger than this; 0 disables
	RatePerMinute int  // 0 = unlimited
}

type ExtractionResult struct {
	Text     string
	Pages    int
	Method   string
	Language string
	Duration time.Duration
	Warnings []string
}

// ErrNoText is returned when the provider answers without any parsed result.
var ErrNoText = errors.New("ocr: no parsed results")

type Extractor struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), 1)
	}
	return &Extractor{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger,
	}
}

// Recognize returns the normalized text of the image at path.
func (e *Extractor) Recognize(ctx context.Context, path string) (string, error) {
	res, err := e.Extract(ctx, path)
	return res.Text, err
}

// Extract uploads the image at path and collects the text of every parsed page.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	res := ExtractionResult{Method: "ocr.space", Language: e.cfg.Language}
	rid := uuid.New().String()
	orderID := common.OrderIDFromContext(ctx)

	img, warns, err := PrepareImage(path, e.cfg.Enhance, e.cfg.MaxImageBytes)
	res.Warnings = warns
	if err != nil {
		e.logger.Error("ocr.prepare_failed", "req_id", rid, "order_id", orderID, "path", path, "error", err)
		return res, fmt.Errorf("prepare image: %w", err)
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return res, fmt.Errorf("ocr rate limit: %w", err)
		}
	}

	body, contentType, err := e.buildForm(filepath.Base(path), img)
	if err != nil {
		return res, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL, body)
	if err != nil {
		return res, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	e.logger.Info("ocr.request",
		"req_id", rid,
		"order_id", orderID,
		"bytes", len(img),
		"enhanced", e.cfg.Enhance,
	)

	resp, err := e.http.Do(req)
	if err != nil {
		e.logger.Error("ocr.send_error", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return res, common.UpstreamError("ocr.space", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			e.logger.Warn("ocr.response_body_close_error", "req_id", rid, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		e.logger.Error("ocr.read_error", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return res, common.UpstreamError("ocr.space", fmt.Errorf("read ocr response: %w", err))
	}
	if resp.StatusCode/100 != 2 {
		e.logger.Error("ocr.http_error", "req_id", rid, "status", resp.StatusCode, "elapsed_ms", time.Since(start).Milliseconds())
		return res, common.UpstreamError("ocr.space", fmt.Errorf("non-2xx status: %d", resp.StatusCode))
	}

	var parsed parseResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return res, fmt.Errorf("decode ocr response: %w", err)
	}
	if parsed.IsErroredOnProcessing {
		msg := parsed.errorText()
		e.logger.Error("ocr.processing_error", "req_id", rid, "exit_code", parsed.OCRExitCode, "message", msg)
		return res, common.UpstreamError("ocr.space", fmt.Errorf("processing failed: %s", msg))
	}
	if len(parsed.ParsedResults) == 0 {
		return res, ErrNoText
	}

	pages := make([]string, 0, len(parsed.ParsedResults))
	for _, p := range parsed.ParsedResults {
		if p.ErrorMessage != "" {
			res.Warnings = append(res.Warnings, p.ErrorMessage)
		}
		pages = append(pages, p.ParsedText)
	}
	res.Pages = len(pages)
	res.Text = Normalize(strings.Join(pages, "\n"))
	res.Duration = time.Since(start)

	e.logger.Info("ocr.ok",
		"req_id", rid,
		"order_id", orderID,
		"pages", res.Pages,
		"text_len", len(res.Text),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (e *Extractor) buildForm(filename string, img []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"apikey", e.cfg.APIKey},
		{"language", e.cfg.Language},
		{"isOverlayRequired", "false"},
	}
	if e.cfg.Engine != "" {
		fields = append(fields, [2]string{"OCREngine", e.cfg.Engine})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", f[0], err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", constants.ImageContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(img); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

type parseResponse struct {
	ParsedResults []struct {
		ParsedText        string `json:"ParsedText"`
		FileParseExitCode int    `json:"FileParseExitCode"`
		ErrorMessage      string `json:"ErrorMessage"`
	} `json:"ParsedResults"`
	OCRExitCode           int             `json:"OCRExitCode"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"` // string or []string
}

func (p parseResponse) errorText() string {
	if len(p.ErrorMessage) == 0 {
		return ""
	}
	var list []string
	if err := json.Unmarshal(p.ErrorMessage, &list); err == nil {
		return strings.Join(list, "; ")
	}
	var s string
	if err := json.Unmarshal(p.ErrorMessage, &s); err == nil {
		return s
	}
	return string(p.ErrorMessage)
}
