package synth

import (
	"regexp"
	"strings"
)

// DefaultZip is reported when an address carries no 5-digit run.
const DefaultZip = "00000"

var (
	reZip       = regexp.MustCompile(`\b(\d{5})\b`)
	reCityState = regexp.MustCompile(`([A-Za-z][A-Za-z ]*),\s*[A-Z]{2}\s+(\d{5})\b`)
)

// ParseZipAndCity pulls the postal code and city out of a one-line US address.
// Malformed input degrades to ("00000", "").
func ParseZipAndCity(address string) (zip, city string) {
	if m := reCityState.FindStringSubmatch(address); m != nil {
		return m[2], strings.TrimSpace(m[1])
	}
	if m := reZip.FindStringSubmatch(address); m != nil {
		return m[1], ""
	}
	return DefaultZip, ""
}
