package amount

import "github.com/shopspring/decimal"

// RoundUpToTick returns the smallest multiple of tick that is greater than or
// equal to value, with the floor of one tick: values below a single tick are
// lifted to the tick itself. tick must be strictly positive.
func RoundUpToTick(value, tick decimal.Decimal) decimal.Decimal {
	if value.LessThan(tick) {
		return tick
	}
	rem := value.Mod(tick)
	if rem.IsZero() {
		return value
	}
	return value.Sub(rem).Add(tick)
}

// RoundDownToTick returns the largest multiple of tick that is less than or
// equal to value. tick must be strictly positive.
func RoundDownToTick(value, tick decimal.Decimal) decimal.Decimal {
	return value.Sub(value.Mod(tick))
}
