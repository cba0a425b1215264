// Package core provides the ledger domain types and amount parsing.
//
// Amounts are whole currency units. Any fractional part present in user
// or imported input is truncated, never rounded: the backing spreadsheet
// has always stored integers and reports must match it to the unit.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered amount string to Money.
//
// It tolerates currency symbols, comma thousands separators and
// surrounding whitespace. The fractional part is truncated. Returns
// ErrInvalidAmount for empty, non-numeric, negative or zero results.
//
// Examples:
//
//	ParseAmount("120")      -> 120
//	ParseAmount("$1,250")   -> 1250
//	ParseAmount("99.99")    -> 99 (truncated)
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "NT$")
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	// Commas are thousands separators in this ledger's exports.
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	units := d.IntPart() // explicit truncation to whole units
	if units <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Units: units}, nil
}
