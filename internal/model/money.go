package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Money is an amount in minor currency units (cents).
// The backend speaks decimal major units ("10.00" or 10), so Money converts
// at the JSON boundary and all arithmetic stays in integers.
type Money int64

// DefaultTaxBasisPoints is the fixed storefront tax rate (8%).
const DefaultTaxBasisPoints = 800

// ParseCents converts decimal string amounts (dollars) to cents.
// Examples: "99.00" → 9900, "1234.56" → 123456, "" → 0
func ParseCents(s string) int64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	// math.Round handles both positive and negative numbers correctly
	return int64(math.Round(f * 100))
}

// Cents converts a major-unit float to Money, rounding half away from zero.
func Cents(major float64) Money {
	return Money(math.Round(major * 100))
}

// Mul returns m multiplied by a quantity.
func (m Money) Mul(qty int) Money {
	return m * Money(qty)
}

// TaxOn applies a rate in basis points, rounding to the nearest cent.
func TaxOn(subtotal Money, basisPoints int) Money {
	return Money(math.Round(float64(subtotal) * float64(basisPoints) / 10000))
}

// String renders the amount with two decimals, e.g. "21.60".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON emits a decimal number in major units.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a decimal string in major units.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = Money(ParseCents(s))
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid money amount %s: %w", data, err)
	}
	*m = Cents(f)
	return nil
}
