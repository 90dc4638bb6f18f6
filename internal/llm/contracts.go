package llm

import (
	"context"

	"github.com/joseph-ayodele/receipt-sheets-bot/internal/entity"
)

type ExtractRequest struct {
	OCRText string
	Fields  []entity.Field // subset of entity.ExtractableFields, prompt order
}

// FieldExtractor is the interface our pipeline depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (entity.Order, []byte /*rawJSON*/, error)
}
