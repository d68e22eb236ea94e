// Package core provides money parsing and handling utilities.
//
// This file contains the Amount type used for every monetary field, with
// lenient JSON decoding for records coming from loosely typed clients and a
// strict parser for values typed by a person.
package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Bounds on accepted amounts. Values outside them are treated as not a
// number, so decimal arithmetic stays proportional to the input size.
const (
	maxAmountScale = 20
	maxAmountUnits = 1_000_000_000_000_000
	maxAmountLen   = 64
)

var maxAmount = decimal.NewFromInt(maxAmountUnits)

// InRange reports whether d is within the accepted magnitude and precision.
// The exponent is checked first since comparing a value with a huge
// exponent is itself expensive.
func InRange(d decimal.Decimal) bool {
	if e := d.Exponent(); e > maxAmountScale || e < -maxAmountScale {
		return false
	}
	return d.Abs().Cmp(maxAmount) <= 0
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	if len(s) > maxAmountLen {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !InRange(d) {
		return decimal.Zero, false
	}
	return d, true
}

// Amount is a monetary value. The zero value is 0.
type Amount struct {
	decimal.Decimal
}

// NewAmount returns an Amount holding a whole number of currency units.
func NewAmount(units int64) Amount {
	return Amount{Decimal: decimal.NewFromInt(units)}
}

// AmountOf wraps a decimal.
func AmountOf(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// UnmarshalJSON accepts numbers and numeric strings. Anything else (null,
// booleans, objects, garbage) decodes to 0 and never returns an error.
func (a *Amount) UnmarshalJSON(b []byte) error {
	a.Decimal = decimal.Zero
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		a.Decimal = CoerceAmount(s).Decimal
	case 'n', 't', 'f', '[', '{':
		// not a number
	default:
		if d, ok := parseDecimal(string(b)); ok {
			a.Decimal = d
		}
	}
	return nil
}

// CoerceAmount converts free text to an Amount, returning 0 when the text
// is not a number or is out of range.
func CoerceAmount(s string) Amount {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}
	}
	d, ok := parseDecimal(s)
	if !ok {
		return Amount{}
	}
	return Amount{Decimal: d}
}

// ParseAmount parses a human-entered monetary value.
//
// It strips a leading currency symbol and whitespace, accepts "," or "." as
// the decimal separator and treats the other one as a thousands separator
// when both are present. Negative values are rejected.
//
// Examples:
//
//	ParseAmount("1200")       -> 1200
//	ParseAmount("₹ 1,200.50") -> 1200.5
//	ParseAmount("1.200,50")   -> 1200.5
//	ParseAmount("12,5")       -> 12.5
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.Is(unicode.Sc, r) || unicode.IsSpace(r)
	})
	if s == "" {
		return Amount{}, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "-") {
		return Amount{}, ErrInvalidAmount
	}
	s = strings.TrimPrefix(s, "+")

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 || len(s)-lastComma-1 == 3 {
			// 1,200 or 1,200,000
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	}

	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return Amount{}, ErrInvalidAmount
		}
	}
	if strings.Count(s, ".") > 1 {
		return Amount{}, ErrInvalidAmount
	}

	d, ok := parseDecimal(s)
	if !ok {
		return Amount{}, ErrInvalidAmount
	}
	return Amount{Decimal: d}, nil
}

// NonNegative returns the amount, or 0 when it is negative.
func (a Amount) NonNegative() decimal.Decimal {
	if a.IsNegative() {
		return decimal.Zero
	}
	return a.Decimal
}
