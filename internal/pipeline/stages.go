package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/receipt-sheets-bot/internal/entity"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/repository"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/sheet"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/synth"
)

// recognize never fails the order: an OCR error yields empty text.
func (p *Processor) recognize(ctx context.Context, log *slog.Logger, path string) string {
	start := time.Now()
	text, err := p.deps.Recognizer.Recognize(ctx, path)
	if err != nil {
		log.Warn("pipeline.ocr.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return ""
	}
	log.Info("pipeline.ocr.ok", "chars", len(text), "elapsed_ms", time.Since(start).Milliseconds())
	return text
}

func (p *Processor) extract(ctx context.Context, log *slog.Logger, text string) entity.Order {
	if len(p.fields) == 0 {
		return entity.Order{}
	}
	res := p.deps.Extractor.Extract(ctx, text, p.fields)
	if !res.OK() {
		log.Warn("pipeline.extract.degraded", "reason", res.Reason)
	}
	return res.Order
}

func (p *Processor) synthesize(order entity.Order, text string) sheet.Record {
	zip, city := synth.ParseZipAndCity(order.Address)
	return sheet.Record{
		Order:   order,
		IDs:     p.deps.IDs.Identifiers(zip, order.Product),
		Zip:     zip,
		City:    city,
		RawText: text,
	}
}

func (p *Processor) appendRow(ctx context.Context, log *slog.Logger, rec sheet.Record) error {
	start := time.Now()
	row := sheet.BuildRow(rec, p.deps.Layout)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.SheetTimeout)
	defer cancel()

	padded, err := repository.EnsureMinRows(ctx, p.deps.Store, p.deps.Layout.MinRows, p.deps.Layout.Width)
	if err != nil {
		return fmt.Errorf("pad sheet: %w", err)
	}
	if padded > 0 {
		log.Info("pipeline.sheet.padded", "rows", padded, "min_rows", p.deps.Layout.MinRows)
	}
	if err := p.deps.Store.AppendRow(ctx, row); err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	log.Info("pipeline.append.ok", "layout", p.deps.Layout.Name, "cells", len(row), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}
