// Package synth fabricates the per-order phone and serial numbers that go into the sheet.
package synth

import (
	"math/rand/v2"
	"strings"
)

// blockedPrefixes look suspicious at the start of a generated number.
var blockedPrefixes = func() []string {
	out := []string{"123456", "654321", "012345", "987654"}
	for d := '0'; d <= '9'; d++ {
		out = append(out, strings.Repeat(string(d), 6))
	}
	return out
}()

// Generator produces random digit strings from an injectable source.
type Generator struct {
	intN func(n int) int
}

// NewGenerator returns a Generator drawing from intN, which must return a value in [0, n).
// A nil intN uses math/rand/v2's goroutine-safe global source.
func NewGenerator(intN func(n int) int) *Generator {
	if intN == nil {
		intN = rand.IntN
	}
	return &Generator{intN: intN}
}

var defaultGenerator = NewGenerator(nil)

// GenerateDigits returns n random decimal digits using the default generator.
func GenerateDigits(n int) string {
	return defaultGenerator.Digits(n)
}

// Digits returns n random decimal digits that never start with a blocked prefix.
func (g *Generator) Digits(n int) string {
	if n <= 0 {
		return ""
	}
	buf := make([]byte, n)
	for {
		for i := range buf {
			buf[i] = byte('0' + g.intN(10))
		}
		s := string(buf)
		if !hasBlockedPrefix(s) {
			return s
		}
	}
}

// IntRange returns a uniform integer in [lo, hi].
func (g *Generator) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.intN(hi-lo+1)
}

func hasBlockedPrefix(s string) bool {
	for _, p := range blockedPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
