package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-sheets-bot/internal/common"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/entity"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/llm"
)

// ErrNoChoices is returned when the provider answers without a completion.
var ErrNoChoices = errors.New("no choices in openai response")

// ExtractFields implements llm.FieldExtractor using text-only chat/completions.
// The returned raw bytes are the sanitized JSON document when available.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (entity.Order, []byte, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.NewString()
		ctx = common.WithRequestID(ctx, rid)
	}
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"order_id", common.OrderIDFromContext(ctx),
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.OCRText),
		"fields", len(req.Fields),
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt(req.Fields)},
			{"role": "user", "content": llm.BuildUserPrompt(req.OCRText)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, status, httpErr := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if httpErr != nil {
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "status", status, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.Order{}, raw, common.UpstreamError("openai", httpErr)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.Order{}, raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.extract.no_choices",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.Order{}, raw, ErrNoChoices
	}
	content := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))

	cleaned, _, err := llm.NormalizeAndSanitizeJSON(content, req.Fields, c.logger)
	if err != nil {
		c.logger.Error("llm.extract.sanitize_failed",
			"req_id", rid, "error", err, "content", string(content),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.Order{}, content, fmt.Errorf("sanitize failed: %w", err)
	}

	if err := llm.ValidateOrderJSON(req.Fields, cleaned); err != nil {
		c.logger.Error("llm.extract.schema_validation_failed",
			"req_id", rid, "error", err, "content", string(cleaned),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.Order{}, cleaned, fmt.Errorf("schema validation failed: %w", err)
	}

	var out entity.Order
	if err := json.Unmarshal(cleaned, &out); err != nil {
		c.logger.Error("llm.extract.unmarshal_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.Order{}, cleaned, fmt.Errorf("unmarshal fields: %w", err)
	}

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"has_address", out.Address != "",
		"product", out.Product,
		"order_date", out.OrderDate,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, cleaned, nil
}
