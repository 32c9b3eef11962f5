package models

import "github.com/shopspring/decimal"

func init() {
	// The dashboard consumes amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds to cents, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FloorMoney truncates towards negative infinity at cent precision.
func FloorMoney(d decimal.Decimal) decimal.Decimal {
	return d.Mul(hundred).Floor().Div(hundred)
}

// SplitEvenly divides total into n parts rounded down to cents. The cents left over
// go to the first part so the parts always add back up to total.
func SplitEvenly(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	total = RoundMoney(total)
	part := FloorMoney(total.Div(decimal.NewFromInt(int64(n))))
	parts := make([]decimal.Decimal, n)
	for i := range parts {
		parts[i] = part
	}
	rest := total.Sub(part.Mul(decimal.NewFromInt(int64(n))))
	parts[0] = parts[0].Add(rest)
	return parts
}

// Percent returns part/whole*100 rounded to two places, or zero when whole is zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(2)
}

// SumAmounts adds the given values.
func SumAmounts(values ...decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum
}

func validMoney(field string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return NewValidationError(field, "must be greater than zero")
	}
	if !d.Equal(RoundMoney(d)) {
		return NewValidationError(field, "must have at most two decimal places")
	}
	return nil
}
