package synth

import (
	"strconv"

	"github.com/joseph-ayodele/receipt-sheets-bot/constants"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/entity"
)

const (
	minAreaCode = 201
	maxAreaCode = 999

	subscriberDigits = 7
	serialDigits     = 10
)

// FakePhone builds a 10-digit phone number whose area code follows the zip code.
func FakePhone(zip string) string {
	return defaultGenerator.Phone(zip)
}

// FakeSerial builds a serial number from the product's model code and 10 random digits.
func FakeSerial(product string) string {
	return defaultGenerator.Serial(product)
}

// DetectModelCode maps a product name onto its catalog model code, or "S000".
func DetectModelCode(product string) string {
	code, _ := constants.LookupModelCode(product)
	return code
}

// Synthesize fabricates both identifiers for one order.
func Synthesize(zip, product string) entity.Identifiers {
	return defaultGenerator.Identifiers(zip, product)
}

// Phone is FakePhone on g's random source.
func (g *Generator) Phone(zip string) string {
	var area string
	if len(zip) >= 3 && zip[0] != '0' && allDigits(zip[:3]) {
		area = zip[:3]
	} else {
		area = strconv.Itoa(g.IntRange(minAreaCode, maxAreaCode))
	}
	return area + g.Digits(subscriberDigits)
}

// Serial is FakeSerial on g's random source.
func (g *Generator) Serial(product string) string {
	return DetectModelCode(product) + g.Digits(serialDigits)
}

// Identifiers is Synthesize on g's random source.
func (g *Generator) Identifiers(zip, product string) entity.Identifiers {
	return entity.Identifiers{
		Phone:        g.Phone(zip),
		SerialNumber: g.Serial(product),
	}
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
