package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/receipt-sheets-bot/internal/entity"
)

var (
	reFence   = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	reISODate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

	// synonyms renames keys models like to invent onto our schema keys.
	// Earlier entries win when several map to the same key.
	synonyms = []struct {
		from string
		to   entity.Field
	}{
		{"purchase_date", entity.FieldOrderDate},
		{"date", entity.FieldOrderDate},
		{"merchant_name", entity.FieldSeller},
		{"merchant", entity.FieldSeller},
		{"store", entity.FieldSeller},
		{"customer_name", entity.FieldBuyerName},
		{"name", entity.FieldBuyerName},
		{"email", entity.FieldBuyerEmail},
		{"shipping_address", entity.FieldAddress},
		{"product_name", entity.FieldProduct},
		{"item", entity.FieldProduct},
	}

	dateLayouts = []string{
		"2006/01/02",
		"01/02/2006",
		"1/2/2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"2 Jan 2006",
		"2 January 2006",
		"2006-1-2",
	}
)

// StripCodeFences removes a surrounding markdown code fence and any chatter
// around the outermost JSON object.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := reFence.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	if i, j := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}'); i >= 0 && j > i {
		s = s[i : j+1]
	}
	return s
}

// NormalizeAndSanitizeJSON
// - Strips markdown fences
// - Renames known synonyms (merchant -> seller)
// - Coerces null -> "" and numbers -> strings, blanks other non-strings
// - Removes keys that were not requested
// - Fills every requested key that is missing with ""
// - Normalizes order_date to YYYY-MM-DD or ""
func NormalizeAndSanitizeJSON(raw []byte, fields []entity.Field, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(StripCodeFences(string(raw))), &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	wanted := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		wanted[string(f)] = struct{}{}
	}

	notes := make([]string, 0, 8)

	// 1) rename synonyms to the schema keys
	for _, syn := range synonyms {
		from, to := syn.from, syn.to
		v, ok := m[from]
		if !ok {
			continue
		}
		if _, exists := m[string(to)]; !exists {
			m[string(to)] = v
		}
		delete(m, from)
		notes = append(notes, from+"->"+string(to))
	}

	// 2) remove unknown keys
	for k := range maps.Clone(m) {
		if _, ok := wanted[k]; !ok {
			delete(m, k)
			notes = append(notes, k+"(unknown)")
		}
	}

	// 3) coerce every requested value to a trimmed string
	for _, f := range fields {
		k := string(f)
		v, ok := m[k]
		if !ok {
			m[k] = ""
			notes = append(notes, k+"(missing)")
			continue
		}
		switch t := v.(type) {
		case string:
			s := strings.TrimSpace(t)
			if strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
				s = ""
				notes = append(notes, k+"(null)")
			}
			m[k] = s
		case nil:
			m[k] = ""
			notes = append(notes, k+"(null)")
		case float64:
			m[k] = strconv.FormatFloat(t, 'f', -1, 64)
			notes = append(notes, k+"(number)")
		case bool:
			m[k] = ""
			notes = append(notes, k+"(bool)")
		default:
			// objects and arrays cannot be placed in a cell
			m[k] = ""
			notes = append(notes, k+"(type)")
		}
	}

	// 4) order_date must be ISO or empty
	if s, ok := m[string(entity.FieldOrderDate)].(string); ok && s != "" && !reISODate.MatchString(s) {
		iso := normalizeDate(s)
		m[string(entity.FieldOrderDate)] = iso
		if iso == "" {
			notes = append(notes, "order_date(unparsed)")
		} else {
			notes = append(notes, "order_date(reformatted)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, notes, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(notes) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "notes", notes)
	}
	return out, notes, nil
}

func normalizeDate(s string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return ""
}
