package llm

import (
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/entity"
)

// isoDateOrEmpty accepts "" as well as YYYY-MM-DD.
const isoDateOrEmpty = `^(\d{4}-\d{2}-\d{2})?$`

// BuildOrderJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// Every requested field is required and string-typed; absent values are "".
func BuildOrderJSONSchema(fields []entity.Field) map[string]any {
	props := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		prop := map[string]any{"type": "string"}
		if f == entity.FieldOrderDate {
			prop["pattern"] = isoDateOrEmpty
		}
		props[string(f)] = prop
		required = append(required, string(f))
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}
