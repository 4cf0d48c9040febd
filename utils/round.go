package utils

import (
	"math"

	"github.com/shopspring/decimal"
)

// RoundHalfUp rounds v to the given number of decimal places, halves away from zero.
//
// The value goes through its shortest decimal representation first, so 2.675 rounds to 2.68
// rather than to the 2.67 a binary-float rounding would give.
func RoundHalfUp(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// FormatFixed renders v with exactly the given number of decimal places.
func FormatFixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

// FormatPlain renders v without exponent notation.
func FormatPlain(v float64) string {
	return decimal.NewFromFloat(v).String()
}
