package entity

import "fmt"

// Field names a value that can be placed in a spreadsheet column.
type Field string

const (
	FieldOrderDate    Field = "order_date"
	FieldSeller       Field = "seller"
	FieldBuyerName    Field = "buyer_name"
	FieldBuyerEmail   Field = "buyer_email"
	FieldAddress      Field = "address"
	FieldCity         Field = "city"
	FieldZip          Field = "zip"
	FieldPhone        Field = "phone"
	FieldProduct      Field = "product"
	FieldSerialNumber Field = "serial_number"
	FieldRawText      Field = "raw_text"
)

var allFields = []Field{
	FieldOrderDate,
	FieldSeller,
	FieldBuyerName,
	FieldBuyerEmail,
	FieldAddress,
	FieldCity,
	FieldZip,
	FieldPhone,
	FieldProduct,
	FieldSerialNumber,
	FieldRawText,
}

// ExtractableFields are the fields the text-understanding provider is asked for,
// in prompt order. Phone and serial number are synthesized locally instead.
var ExtractableFields = []Field{
	FieldOrderDate,
	FieldSeller,
	FieldBuyerName,
	FieldBuyerEmail,
	FieldAddress,
	FieldProduct,
}

// AllFields returns every known field.
func AllFields() []Field {
	out := make([]Field, len(allFields))
	copy(out, allFields)
	return out
}

// ParseField validates a field name coming from configuration.
func ParseField(s string) (Field, error) {
	for _, f := range allFields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown field %q", s)
}

// Extractable reports whether f is requested from the provider.
func (f Field) Extractable() bool {
	for _, e := range ExtractableFields {
		if e == f {
			return true
		}
	}
	return false
}
