package domain

import (
	"regexp"
	"strings"
)

var symbolRegex = regexp.MustCompile(`^[A-Z][A-Z0-9.]{0,9}$`)

// NormalizeSymbol trims and upper-cases a ticker so "aapl " and "AAPL"
// refer to the same holding.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ValidSymbol reports whether a normalized symbol is well formed.
func ValidSymbol(symbol string) bool {
	return symbolRegex.MatchString(symbol)
}
