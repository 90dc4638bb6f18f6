// Package telegram is the chat transport: it turns bot updates carrying images into
// entity.Inbound values, downloads the images, and replies to the sender.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/joseph-ayodele/receipt-sheets-bot/constants"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/common"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/entity"
)

const pollTimeoutSeconds = 60

// botAPI is the subset of *tgbotapi.BotAPI the transport uses.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetFileDirectURL(fileID string) (string, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// HandlerFunc receives every image message. A returned error is logged; polling continues.
type HandlerFunc func(ctx context.Context, in entity.Inbound) error

type Config struct {
	Token           string
	DownloadTimeout time.Duration
}

type Bot struct {
	api             botAPI
	http            *http.Client
	downloadTimeout time.Duration
	logger          *slog.Logger
}

// New authenticates against the Bot API (getMe) and returns a ready transport.
func New(cfg Config, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, common.UpstreamError("telegram", err)
	}
	b := newBot(api, cfg, logger)
	b.logger.Info("telegram.authorized", "username", api.Self.UserName)
	return b, nil
}

func newBot(api botAPI, cfg Config, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 30 * time.Second
	}
	return &Bot{
		api:             api,
		http:            &http.Client{},
		downloadTimeout: cfg.DownloadTimeout,
		logger:          logger,
	}
}

// Listen long-polls for updates until ctx is done or the update channel closes.
// Messages without an image are ignored.
func (b *Bot) Listen(ctx context.Context, handle HandlerFunc) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	b.logger.Info("telegram.listen.started")
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("telegram.listen.stopped")
			return nil
		case upd, ok := <-updates:
			if !ok {
				b.logger.Info("telegram.listen.closed")
				return nil
			}
			in, ok := inboundFromUpdate(upd)
			if !ok {
				continue
			}
			b.logger.Info("telegram.image.received",
				"chat_id", in.ChatID,
				"message_id", in.MessageID,
				"file_id", in.FileID,
				"file_size", in.FileSize,
			)
			if err := handle(ctx, in); err != nil {
				b.logger.Warn("telegram.image.rejected", "chat_id", in.ChatID, "message_id", in.MessageID, "error", err)
			}
		}
	}
}

// inboundFromUpdate picks the largest photo size, or an image sent as a document.
func inboundFromUpdate(upd tgbotapi.Update) (entity.Inbound, bool) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return entity.Inbound{}, false
	}
	in := entity.Inbound{
		UpdateID:   upd.UpdateID,
		ChatID:     msg.Chat.ID,
		MessageID:  msg.MessageID,
		ReceivedAt: msg.Time(),
	}
	if msg.From != nil {
		in.From = msg.From.UserName
	}

	switch {
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		in.FileID = largest.FileID
		in.FileSize = largest.FileSize
	case msg.Document != nil && constants.IsImageMIME(msg.Document.MimeType):
		in.FileID = msg.Document.FileID
		in.FileName = msg.Document.FileName
		in.FileSize = msg.Document.FileSize
	default:
		return entity.Inbound{}, false
	}
	return in, true
}

// Download fetches the file behind fileID into dst.
func (b *Bot) Download(ctx context.Context, fileID, dst string) error {
	start := time.Now()
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return common.UpstreamError("telegram", fmt.Errorf("get file url: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, b.downloadTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return common.UpstreamError("telegram", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return common.UpstreamError("telegram", fmt.Errorf("download status %d", resp.StatusCode))
	}

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("write %s: %w", dst, err)
	}
	b.logger.Debug("telegram.download.ok", "file_id", fileID, "bytes", n, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// Reply sends text to the chat as a reply to messageID.
func (b *Bot) Reply(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if text == "" {
		return errors.New("empty reply text")
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = messageID
	if _, err := b.api.Send(msg); err != nil {
		return common.UpstreamError("telegram", err)
	}
	return nil
}
