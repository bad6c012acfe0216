package school

import "github.com/shopspring/decimal"

// Money helpers. All amounts in the system are decimal.Decimal in a single
// currency; stores persist them as decimal strings and aggregate sums are
// computed by adding decimals in Go, never by SQL arithmetic over floats.

var Zero = decimal.Zero

func NewMoney(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}

func NewMoneyFromInt(value int) decimal.Decimal {
	return decimal.NewFromInt(int64(value))
}

// MustMoney parses a decimal string, returning zero on malformed input.
// Use only for trusted stored values.
func MustMoney(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FloorZero clamps a balance at zero. Stored balances are never negative;
// the negative part becomes a FeeCredit instead.
func FloorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
