package sheet

import (
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/entity"
)

// Row is an ordered, fixed-length list of cell values.
type Row []string

// Values converts the row to the cell type spreadsheet clients expect.
func (r Row) Values() []interface{} {
	out := make([]interface{}, len(r))
	for i, v := range r {
		out[i] = v
	}
	return out
}

// Record is everything one order can contribute to a row.
type Record struct {
	Order   entity.Order
	IDs     entity.Identifiers
	Zip     string
	City    string
	RawText string
}

// Value returns the cell value for f. Phone and serial number always come from
// the synthesized identifiers, never from the receipt.
func (r Record) Value(f entity.Field) string {
	switch f {
	case entity.FieldPhone:
		return r.IDs.Phone
	case entity.FieldSerialNumber:
		return r.IDs.SerialNumber
	case entity.FieldZip:
		return r.Zip
	case entity.FieldCity:
		return r.City
	case entity.FieldRawText:
		return r.RawText
	}
	return r.Order.Get(f)
}

// BuildRow lays the record out according to l. The row always has exactly l.Width cells.
func BuildRow(rec Record, l Layout) Row {
	if l.Width <= 0 {
		return Row{}
	}
	row := make(Row, l.Width)
	for _, c := range l.index() {
		row[c.pos] = rec.Value(c.field)
	}
	return row
}

// BlankRow returns a row of width empty cells.
func BlankRow(width int) Row {
	if width <= 0 {
		return Row{}
	}
	return make(Row, width)
}
