package service

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	hundred       = decimal.NewFromInt(100)
	millisPerHour = decimal.NewFromInt(int64(time.Hour / time.Millisecond))
)

// percentScale is the number of decimal places kept for stored percentages
const percentScale = 4

// WastagePercent returns wastage as a percentage of input, or zero when input is zero
func WastagePercent(wastage, input decimal.Decimal) decimal.Decimal {
	if !input.IsPositive() {
		return decimal.Zero
	}
	return wastage.Div(input).Mul(hundred).Round(percentScale)
}

// CumulativeWastagePercent returns wastage / (completed + wastage) x 100, zero when both are zero
func CumulativeWastagePercent(completed, wastage decimal.Decimal) decimal.Decimal {
	denom := completed.Add(wastage)
	if !denom.IsPositive() {
		return decimal.Zero
	}
	return wastage.Div(denom).Mul(hundred).Round(percentScale)
}

// ProgressPercent returns completed as a percentage of target, zero when target is zero.
// Over-production yields values above 100.
func ProgressPercent(completed, target decimal.Decimal) decimal.Decimal {
	if !target.IsPositive() {
		return decimal.Zero
	}
	return completed.Div(target).Mul(hundred).Round(2)
}

// ExceedsNorm reports whether a wastage percentage is strictly above the norm
func ExceedsNorm(percent, norm decimal.Decimal) bool {
	return percent.GreaterThan(norm)
}

// ClippedHours returns the hours between start and end, never negative
func ClippedHours(start, end time.Time) decimal.Decimal {
	d := end.Sub(start)
	if d <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(d.Milliseconds()).Div(millisPerHour)
}

// HourlyRate returns output per hour, zero when no hours were logged
func HourlyRate(output, hours decimal.Decimal) decimal.Decimal {
	if !hours.IsPositive() {
		return decimal.Zero
	}
	return output.Div(hours).Round(percentScale)
}
