package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/receipt-sheets-bot/internal/common"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/extract"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/llm/openai"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/ocr"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/repository"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/sheet"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/synth"
)

type output struct {
	Layout  string         `json:"layout"`
	Status  extract.Status `json:"status"`
	Reason  string         `json:"reason,omitempty"`
	OCRText string         `json:"ocr_text"`
	Record  sheet.Record   `json:"record"`
	Row     sheet.Row      `json:"row"`
	Elapsed int64          `json:"elapsed_ms"`
}

func main() {
	imagePath := flag.String("image", "", "receipt image to OCR")
	textPath := flag.String("text", "", "file with already recognized text (skips OCR)")
	layoutName := flag.String("layout", "", "layout name (default SHEET_LAYOUT)")
	doAppend := flag.Bool("append", false, "append the row to the configured sheet")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if (*imagePath == "") == (*textPath == "") {
		logger.Error("usage", "cmd", "runextract -image <file> | -text <file> [-layout name] [-append]")
		os.Exit(2)
	}
	if err := common.LoadDotEnv(); err != nil {
		logger.Error("load .env", "error", err)
		os.Exit(2)
	}
	cfg := common.LoadConfig()
	if *layoutName != "" {
		cfg.Sheet.Layout = *layoutName
	}
	if cfg.LLM.APIKey == "" {
		logger.Error("OPENAI_API_KEY env var is required")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Pipeline.ProcessTimeout)
	defer cancel()

	if err := run(ctx, cfg, *imagePath, *textPath, *doAppend, logger); err != nil {
		logger.Error("runextract failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *common.Config, imagePath, textPath string, doAppend bool, logger *slog.Logger) error {
	start := time.Now()
	layout, err := sheet.Resolve(cfg.Sheet.Layout, cfg.Sheet.LayoutFile)
	if err != nil {
		return err
	}

	var text string
	if imagePath != "" {
		if cfg.OCR.APIKey == "" {
			return common.ConfigError("OCR_API_KEY is required for -image", nil)
		}
		x := ocr.NewExtractor(ocr.Config{
			APIKey:        cfg.OCR.APIKey,
			URL:           cfg.OCR.URL,
			Language:      cfg.OCR.Language,
			Engine:        cfg.OCR.Engine,
			Timeout:       cfg.OCR.Timeout,
			Enhance:       cfg.OCR.Enhance,
			MaxImageBytes: cfg.OCR.MaxImageBytes,
		}, logger)
		res, err := x.Extract(ctx, imagePath)
		if err != nil {
			return fmt.Errorf("ocr: %w", err)
		}
		logger.Info("ocr done", "pages", res.Pages, "warnings", res.Warnings, "duration_ms", res.Duration.Milliseconds())
		text = res.Text
	} else {
		b, err := os.ReadFile(textPath)
		if err != nil {
			return err
		}
		text = ocr.Normalize(string(b))
	}

	pool := extract.NewPool(openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger), logger, extract.WithWorkers(1), extract.WithCallTimeout(cfg.LLM.Timeout))
	defer pool.Close()

	res := pool.Extract(ctx, text, layout.ExtractFields())
	zip, city := synth.ParseZipAndCity(res.Order.Address)
	rec := sheet.Record{
		Order:   res.Order,
		IDs:     synth.Synthesize(zip, res.Order.Product),
		Zip:     zip,
		City:    city,
		RawText: text,
	}
	row := sheet.BuildRow(rec, layout)

	if doAppend {
		store, closeStore, err := repository.OpenStore(ctx, cfg.Sheet, logger)
		if err != nil {
			return err
		}
		defer closeStore()
		if _, err := repository.EnsureMinRows(ctx, store, layout.MinRows, layout.Width); err != nil {
			return err
		}
		if err := store.AppendRow(ctx, row); err != nil {
			return err
		}
		logger.Info("row appended", "backend", cfg.Sheet.Backend, "sheet", cfg.Sheet.SheetName)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(output{
		Layout:  layout.Name,
		Status:  res.Status,
		Reason:  res.Reason,
		OCRText: text,
		Record:  rec,
		Row:     row,
		Elapsed: time.Since(start).Milliseconds(),
	})
}
