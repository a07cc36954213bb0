// Package core holds the pantry domain types and amount arithmetic.
//
// Amounts are stored as strings because items may carry free-form
// quantities ("2", "1.5", "a few"). Arithmetic is exact decimal.
package core

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a numeric amount. A decimal comma is accepted.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// SumAmounts adds two amount strings.
//
// Non-numeric sides count as zero. When exactly one side parses its
// original text is kept unchanged; when neither parses the existing
// text is kept.
//
//	SumAmounts("2", "3")     -> "5"
//	SumAmounts("1.5", "2")   -> "3.5"
//	SumAmounts("2", "lots")  -> "2"
//	SumAmounts("some", "3")  -> "3"
//	SumAmounts("some", "x")  -> "some"
func SumAmounts(existing, added string) string {
	a, okA := ParseAmount(existing)
	b, okB := ParseAmount(added)
	switch {
	case okA && okB:
		return a.Add(b).String()
	case okA:
		return strings.TrimSpace(existing)
	case okB:
		return strings.TrimSpace(added)
	default:
		return existing
	}
}

// QuantityToAmount renders a transcript quantity as an amount string.
func QuantityToAmount(q int64) string {
	return strconv.FormatInt(q, 10)
}
