// Package money formats amounts for display. Stored and computed amounts are
// never rounded.
package money

import (
	"math"
	"strconv"
	"strings"
)

// Format renders an amount with two decimals and thousands separators, e.g. "1,234.50 USD".
func Format(amount float64, currency string) string {
	s := FormatAmount(amount)
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return s
	}
	return s + " " + currency
}

func FormatAmount(amount float64) string {
	neg := amount < 0
	rounded := math.Round(math.Abs(amount)*100) / 100
	raw := strconv.FormatFloat(rounded, 'f', 2, 64)

	intPart, frac := raw, ""
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		intPart, frac = raw[:i], raw[i:]
	}

	var b strings.Builder
	if neg && rounded != 0 {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}

// FormatHours trims trailing zeros: 1.5 -> "1.5", 2 -> "2".
func FormatHours(hours float64) string {
	return strconv.FormatFloat(math.Round(hours*100)/100, 'f', -1, 64)
}
