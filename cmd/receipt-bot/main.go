package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/receipt-sheets-bot/internal/async"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/common"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/extract"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/llm/openai"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/ocr"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/pipeline"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/repository"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/server"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/sheet"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/synth"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/telegram"
)

const healthInterval = 30 * time.Second

func main() {
	if err := common.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("receipt-bot stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *common.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	layout, err := sheet.Resolve(cfg.Sheet.Layout, cfg.Sheet.LayoutFile)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Pipeline.TempDir, 0o755); err != nil {
		return fmt.Errorf("temp dir: %w", err)
	}

	store, closeStore, err := repository.OpenStore(ctx, cfg.Sheet, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	bot, err := telegram.New(telegram.Config{
		Token:           cfg.Telegram.Token,
		DownloadTimeout: cfg.Telegram.DownloadTimeout,
	}, logger)
	if err != nil {
		return err
	}

	recognizer := ocr.NewExtractor(ocr.Config{
		APIKey:        cfg.OCR.APIKey,
		URL:           cfg.OCR.URL,
		Language:      cfg.OCR.Language,
		Engine:        cfg.OCR.Engine,
		Timeout:       cfg.OCR.Timeout,
		Enhance:       cfg.OCR.Enhance,
		MaxImageBytes: cfg.OCR.MaxImageBytes,
		RatePerMinute: cfg.OCR.RatePerMinute,
	}, logger)

	llmClient := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	pool := extract.NewPool(llmClient, logger,
		extract.WithWorkers(cfg.LLM.Workers),
		extract.WithCallTimeout(cfg.LLM.Timeout),
	)
	defer pool.Close()

	proc := pipeline.NewProcessor(pipeline.Deps{
		Transport:  bot,
		Recognizer: recognizer,
		Extractor:  pool,
		Store:      store,
		IDs:        synth.NewGenerator(nil),
		Layout:     layout,
	}, pipeline.Config{
		TempDir:      cfg.Pipeline.TempDir,
		SheetTimeout: cfg.Sheet.Timeout,
		SuccessReply: cfg.Pipeline.SuccessReply,
		FailureReply: cfg.Pipeline.FailureReply,
	}, logger)

	// Bind before any worker starts.
	var lis net.Listener
	if cfg.Server.HealthAddr != "" {
		lis, err = net.Listen("tcp", cfg.Server.HealthAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.Server.HealthAddr, err)
		}
	}

	queue := async.NewQueue(proc, logger,
		async.WithWorkers(cfg.Pipeline.Workers),
		async.WithQueueSize(cfg.Pipeline.QueueSize),
		async.WithProcessTimeout(cfg.Pipeline.ProcessTimeout),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bot.Listen(gctx, queue.Enqueue) })

	if lis != nil {
		hs := server.NewHealth(logger)
		g.Go(func() error { return hs.Serve(gctx, lis) })
		if c, ok := store.(repository.Checker); ok {
			g.Go(func() error {
				hs.Watch(gctx, healthInterval, c.Check)
				return nil
			})
		} else {
			hs.SetServing(true)
		}
	}

	logger.Info("receipt-bot started",
		"backend", cfg.Sheet.Backend,
		"layout", layout.Name,
		"workers", cfg.Pipeline.Workers,
		"health_addr", cfg.Server.HealthAddr,
	)
	err = g.Wait()

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Pipeline.ProcessTimeout)
	defer cancel()
	if serr := queue.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("queue shutdown incomplete", "error", serr)
	}
	return err
}
