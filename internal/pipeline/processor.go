// Package pipeline drives one inbound receipt photo from download to the spreadsheet append
// and the chat reply.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-sheets-bot/constants"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/common"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/entity"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/extract"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/repository"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/sheet"
)

// Transport is the chat side: fetch the photo, answer the sender.
type Transport interface {
	Download(ctx context.Context, fileID, dst string) error
	Reply(ctx context.Context, chatID int64, messageID int, text string) error
}

// Recognizer turns an image file into text.
type Recognizer interface {
	Recognize(ctx context.Context, path string) (string, error)
}

// Extractor structures OCR text into order fields. It never fails; problems come back as
// a degraded result.
type Extractor interface {
	Extract(ctx context.Context, rawText string, fields []entity.Field) extract.Result
}

// IdentifierSource fabricates the phone and serial number for one order.
type IdentifierSource interface {
	Identifiers(zip, product string) entity.Identifiers
}

type Config struct {
	TempDir      string
	SheetTimeout time.Duration
	ReplyTimeout time.Duration
	SuccessReply string
	FailureReply string // empty keeps failures silent
}

type Deps struct {
	Transport  Transport
	Recognizer Recognizer
	Extractor  Extractor
	Store      repository.RowStore
	IDs        IdentifierSource
	Layout     sheet.Layout
}

type Processor struct {
	deps   Deps
	cfg    Config
	fields []entity.Field
	logger *slog.Logger
}

func NewProcessor(deps Deps, cfg Config, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.SheetTimeout <= 0 {
		cfg.SheetTimeout = 30 * time.Second
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = 15 * time.Second
	}
	return &Processor{
		deps:   deps,
		cfg:    cfg,
		fields: deps.Layout.ExtractFields(),
		logger: logger,
	}
}

// StageError records the state an order failed in.
type StageError struct {
	State constants.OrderState
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.State, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Process runs one order. A non-nil error means the order ended in the FAILED state and no
// success reply was sent. The downloaded image is removed on every path.
func (p *Processor) Process(ctx context.Context, in entity.Inbound) (err error) {
	start := time.Now()
	orderID := uuid.NewString()
	ctx = common.WithOrderID(ctx, orderID)
	log := p.logger.With("order_id", orderID, "chat_id", in.ChatID, "message_id", in.MessageID)

	state := constants.StateAwaitingImage
	enter := func(next constants.OrderState) {
		log.Debug("pipeline.state", "from", state, "to", next)
		state = next
	}
	defer func() {
		if err != nil {
			p.fail(ctx, log, in, state, err)
			err = &StageError{State: state, Err: err}
		}
	}()

	enter(constants.StateDownloading)
	path := filepath.Join(p.cfg.TempDir, orderID+constants.ImageExt)
	defer p.removeTemp(log, path)
	if err := p.deps.Transport.Download(ctx, in.FileID, path); err != nil {
		return fmt.Errorf("download: %w", err)
	}

	enter(constants.StateRecognizing)
	text := p.recognize(ctx, log, path)

	enter(constants.StateExtracting)
	order := p.extract(ctx, log, text)

	enter(constants.StateSynthesizing)
	rec := p.synthesize(order, text)

	enter(constants.StateAppending)
	if err := p.appendRow(ctx, log, rec); err != nil {
		return err
	}

	enter(constants.StateDone)
	log.Info("pipeline.done", "zip", rec.Zip, "elapsed_ms", time.Since(start).Milliseconds())
	if p.cfg.SuccessReply != "" {
		p.reply(ctx, log, in, p.cfg.SuccessReply)
	}
	return nil
}

func (p *Processor) fail(ctx context.Context, log *slog.Logger, in entity.Inbound, state constants.OrderState, err error) {
	log.Error("pipeline.failed", "state", state, "file_id", in.FileID, "code", common.CodeOf(err), "error", err)
	if p.cfg.FailureReply == "" {
		return
	}
	p.reply(ctx, log, in, p.cfg.FailureReply)
}

// reply errors are logged only; by the time a reply is sent the row is already stored.
func (p *Processor) reply(ctx context.Context, log *slog.Logger, in entity.Inbound, text string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.ReplyTimeout)
	defer cancel()
	if err := p.deps.Transport.Reply(rctx, in.ChatID, in.MessageID, text); err != nil {
		log.Warn("pipeline.reply.failed", "error", err)
	}
}

func (p *Processor) removeTemp(log *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("pipeline.cleanup.failed", "path", path, "error", err)
	}
}
