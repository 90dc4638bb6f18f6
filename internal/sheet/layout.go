// Package sheet maps an order onto a fixed-width spreadsheet row.
package sheet

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/receipt-sheets-bot/internal/common"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/entity"
)

// Layout is a named column schema. Columns maps a column letter (A, B, ... AA) to the field it holds.
type Layout struct {
	Name    string                  `yaml:"-"`
	Width   int                     `yaml:"width"`
	MinRows int                     `yaml:"min_rows"`
	Columns map[string]entity.Field `yaml:"columns"`
}

var builtins = map[string]Layout{
	"full": {
		Name:  "full",
		Width: 13,
		Columns: map[string]entity.Field{
			"A": entity.FieldOrderDate,
			"B": entity.FieldSeller,
			"C": entity.FieldBuyerName,
			"D": entity.FieldBuyerEmail,
			"E": entity.FieldPhone,
			"F": entity.FieldAddress,
			"G": entity.FieldCity,
			"H": entity.FieldZip,
			"I": entity.FieldProduct,
			"J": entity.FieldSerialNumber,
		},
	},
	"address": {
		Name:    "address",
		Width:   13,
		MinRows: 489,
		Columns: map[string]entity.Field{
			"E": entity.FieldPhone,
			"F": entity.FieldAddress,
			"I": entity.FieldProduct,
			"J": entity.FieldSerialNumber,
		},
	},
	"raw": {
		Name:  "raw",
		Width: 1,
		Columns: map[string]entity.Field{
			"A": entity.FieldRawText,
		},
	},
}

// Builtin returns a copy of a built-in layout.
func Builtin(name string) (Layout, bool) {
	l, ok := builtins[name]
	if !ok {
		return Layout{}, false
	}
	return l.clone(), true
}

// BuiltinNames lists the built-in layouts in name order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (l Layout) clone() Layout {
	cols := make(map[string]entity.Field, len(l.Columns))
	for k, v := range l.Columns {
		cols[k] = v
	}
	l.Columns = cols
	return l
}

type layoutFile struct {
	Layouts map[string]Layout `yaml:"layouts"`
}

// LoadLayouts reads layout definitions from a YAML file. Entries override built-ins of the same name.
//
//	layouts:
//	  orders-2024:
//	    width: 13
//	    min_rows: 2
//	    columns: {A: order_date, F: address, I: product, J: serial_number}
func LoadLayouts(path string) (map[string]Layout, error) {
	out := make(map[string]Layout, len(builtins))
	for n, l := range builtins {
		out[n] = l.clone()
	}
	if path == "" {
		return out, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, common.ConfigError("read layout file", err)
	}
	var f layoutFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, common.ConfigError("parse layout file", err)
	}
	for name, l := range f.Layouts {
		l.Name = name
		cols := make(map[string]entity.Field, len(l.Columns))
		for k, v := range l.Columns {
			cols[strings.ToUpper(strings.TrimSpace(k))] = entity.Field(strings.TrimSpace(string(v)))
		}
		l.Columns = cols
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("layout %q: %w", name, err)
		}
		out[name] = l
	}
	return out, nil
}

// Resolve picks the named layout from the built-ins and, when path is set, the layout file.
func Resolve(name, path string) (Layout, error) {
	all, err := LoadLayouts(path)
	if err != nil {
		return Layout{}, err
	}
	l, ok := all[name]
	if !ok {
		known := make([]string, 0, len(all))
		for n := range all {
			known = append(known, n)
		}
		sort.Strings(known)
		return Layout{}, common.NewAppError(common.CodeConfig,
			fmt.Sprintf("unknown layout %q (known: %s)", name, strings.Join(known, ", ")), common.ErrNotFound)
	}
	return l, nil
}

// Validate rejects non-positive widths, unknown fields and columns beyond Width.
func (l Layout) Validate() error {
	v := common.NewValidator().
		Field("name", l.Name, common.Required).
		Field("width", l.Width, common.Positive).
		Field("min_rows", l.MinRows, common.NonNegative)

	for col, f := range l.Columns {
		idx, err := excelize.ColumnNameToNumber(col)
		v.Check(err == nil, "columns", col, "is not a column letter")
		if err == nil {
			v.Check(idx <= l.Width, "columns", col, fmt.Sprintf("is beyond width %d", l.Width))
		}
		_, ferr := entity.ParseField(string(f))
		v.Check(ferr == nil, "columns."+col, f, "is not a known field")
	}
	return v.Error()
}

// index returns the 0-based cell positions of every mapped field, in column order.
func (l Layout) index() []cell {
	out := make([]cell, 0, len(l.Columns))
	for col, f := range l.Columns {
		n, err := excelize.ColumnNameToNumber(col)
		if err != nil || n > l.Width {
			continue
		}
		out = append(out, cell{pos: n - 1, field: f})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].pos < out[j].pos })
	return out
}

type cell struct {
	pos   int
	field entity.Field
}

// ExtractFields lists the provider fields this layout depends on, in prompt order.
// City, zip and phone derive from the address; the serial number derives from the product.
func (l Layout) ExtractFields() []entity.Field {
	need := make(map[entity.Field]bool)
	for _, f := range l.Columns {
		switch f {
		case entity.FieldCity, entity.FieldZip, entity.FieldPhone:
			need[entity.FieldAddress] = true
		case entity.FieldSerialNumber:
			need[entity.FieldProduct] = true
		default:
			if f.Extractable() {
				need[f] = true
			}
		}
	}
	out := make([]entity.Field, 0, len(need))
	for _, f := range entity.ExtractableFields {
		if need[f] {
			out = append(out, f)
		}
	}
	return out
}
