package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountPlaces is the number of decimal places accepted for inbound
// monetary values.
const AmountPlaces = 2

// CheckPrecision returns ErrInvalidAmount if d carries more than
// AmountPlaces decimal places.
func CheckPrecision(d decimal.Decimal) error {
	if !d.Equal(d.Round(AmountPlaces)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, d.String(), AmountPlaces)
	}
	return nil
}

// ParseAmount parses a decimal string such as "150" or "148.50" and
// validates its precision.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	if err := CheckPrecision(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// FormatAmount renders d with exactly AmountPlaces decimal places.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountPlaces)
}
