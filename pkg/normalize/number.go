// Package normalize converts raw cell text into numbers and calendar periods.
// Parsing is permissive: malformed input never fails, it yields a zero value.
package normalize

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// cleanNumber removes thousands separators, quotes and every kind of
// whitespace (including NBSP and ideographic spaces).
func cleanNumber(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == ',', r == '"', r == '\'', r == '`':
			return -1
		case unicode.IsSpace(r):
			return -1
		}
		return r
	}, s)
}

// ParseDecimal parses s as an exact decimal. Unparsable input yields zero.
func ParseDecimal(s string) decimal.Decimal {
	clean := cleanNumber(s)
	if clean == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseNumber parses s as a float. Unparsable input yields zero.
func ParseNumber(s string) float64 {
	return ParseDecimal(s).InexactFloat64()
}

// IsNumeric reports whether s parses as a number after cleaning.
func IsNumeric(s string) bool {
	clean := cleanNumber(s)
	if clean == "" {
		return false
	}
	_, err := decimal.NewFromString(clean)
	return err == nil
}
