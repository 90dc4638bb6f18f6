package llm

import (
	"strings"

	"github.com/joseph-ayodele/receipt-sheets-bot/constants"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/entity"
)

// maxPromptText caps the OCR text forwarded to the model.
const maxPromptText = 4000

// fieldRules holds the instruction line for each extractable field.
var fieldRules = map[entity.Field]string{
	entity.FieldOrderDate:  "order_date: the date the order was placed, formatted YYYY-MM-DD.",
	entity.FieldSeller:     "seller: the store, marketplace or shop that sold the item.",
	entity.FieldBuyerName:  "buyer_name: the full name of the buyer or ship-to recipient.",
	entity.FieldBuyerEmail: "buyer_email: the buyer's e-mail address.",
	entity.FieldAddress: "address: the buyer's shipping address written on ONE line as " +
		"'street, city, ST 12345'. If the ZIP code has a +4 suffix (12345-6789) keep only the first 5 digits. " +
		"Do not include the country.",
}

// productRule enumerates the catalog so the model cannot invent product names.
func productRule() string {
	return "product: the purchased product. It MUST be one of: " +
		strings.Join(constants.ProductNames(), ", ") +
		". A color may follow the name (for example 'OpenSwim Pro Red'). " +
		"If none of these products appears, use an empty string."
}

// BuildSystemPrompt composes the fixed instruction for the requested fields.
// The same field set always yields the same text.
func BuildSystemPrompt(fields []entity.Field) string {
	keys := make([]string, 0, len(fields))
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, string(f))
		if f == entity.FieldProduct {
			lines = append(lines, productRule())
			continue
		}
		if r, ok := fieldRules[f]; ok {
			lines = append(lines, r)
		}
	}

	var b strings.Builder
	b.WriteString("You extract order details from the OCR text of a purchase receipt or order screenshot.\n")
	b.WriteString("Return ONLY a JSON object with exactly these keys: ")
	b.WriteString(strings.Join(keys, ", "))
	b.WriteString(".\nAll values are strings.\n")
	for _, l := range lines {
		b.WriteString("- ")
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString("If a value is missing or unreadable, use an empty string. Never output null.\n")
	b.WriteString("Do not add explanations, comments or markdown. JSON only.")
	return b.String()
}

// BuildUserPrompt wraps the OCR text, truncating very long transcriptions.
func BuildUserPrompt(ocrText string) string {
	ocr := strings.TrimSpace(ocrText)
	var b strings.Builder
	b.WriteString("OCR text:\n")
	if len(ocr) > maxPromptText {
		b.WriteString(ocr[:maxPromptText])
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(ocr)
	}
	return b.String()
}
