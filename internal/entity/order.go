package entity

// Order is the structured record extracted from a receipt's OCR text.
// Missing values are empty strings; callers branch on emptiness, never on presence.
type Order struct {
	OrderDate    string `json:"order_date"`
	Seller       string `json:"seller"`
	BuyerName    string `json:"buyer_name"`
	BuyerEmail   string `json:"buyer_email"`
	Address      string `json:"address"`
	Phone        string `json:"phone"`
	Product      string `json:"product"`
	SerialNumber string `json:"serial_number"`
}

// IsEmpty reports whether no field carries a value.
func (o Order) IsEmpty() bool {
	return o == Order{}
}

// Get returns the value of an order field; fields that are not part of Order yield "".
func (o Order) Get(f Field) string {
	switch f {
	case FieldOrderDate:
		return o.OrderDate
	case FieldSeller:
		return o.Seller
	case FieldBuyerName:
		return o.BuyerName
	case FieldBuyerEmail:
		return o.BuyerEmail
	case FieldAddress:
		return o.Address
	case FieldPhone:
		return o.Phone
	case FieldProduct:
		return o.Product
	case FieldSerialNumber:
		return o.SerialNumber
	}
	return ""
}

// Identifiers are fabricated per order and never sourced from a real registry.
type Identifiers struct {
	Phone        string `json:"phone"`         // 3-digit area code + 7 digits
	SerialNumber string `json:"serial_number"` // model code + 10 digits
}
