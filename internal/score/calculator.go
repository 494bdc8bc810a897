package score

import (
	"math"
)

// DefaultDecimals is the rounding precision used for percentages.
const DefaultDecimals = 2

// Calculator computes score totals and percentages with a fixed decimal precision.
// All methods are pure: identical inputs always yield identical outputs,
// which is what allows their results to be memoised by input.
type Calculator struct {
	// decimals: number of fractional digits kept after rounding.
	decimals int
}

// Percentage returns value as a share of total in percent, rounded to the
// calculator's precision. A non-positive total or a non-finite input yields 0.
func (c Calculator) Percentage(value, total float64) float64 {
	if total <= 0 || !isFinite(value) || !isFinite(total) {
		return 0
	}
	return Round(value/total*100, c.decimals)
}

// Decimals returns the configured precision.
func (c Calculator) Decimals() int {
	return c.decimals
}

// NewCalculator creates a Calculator rounding to the given number of decimals.
// Negative precision falls back to DefaultDecimals.
func NewCalculator(decimals int) Calculator {
	if decimals < 0 {
		decimals = DefaultDecimals
	}
	return Calculator{decimals: decimals}
}

// Percentage is Calculator.Percentage with DefaultDecimals.
func Percentage(value, total float64) float64 {
	return Calculator{decimals: DefaultDecimals}.Percentage(value, total)
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	if !isFinite(v) {
		return v
	}
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}

// CalculateTotal sums every component of the given scores.
func CalculateTotal(scores ...RawScore) float64 {
	var total float64
	for _, s := range scores {
		total += s.CommonTestValue + s.SecondaryTestValue
	}
	return total
}

// CalculateCategoryTotal sums the components of the entries whose key
// satisfies match. A nil match selects nothing.
func CalculateCategoryTotal(scores map[string]RawScore, match func(key string) bool) float64 {
	if match == nil {
		return 0
	}
	var total float64
	for key, s := range scores {
		if match(key) {
			total += CalculateTotal(s)
		}
	}
	return total
}
