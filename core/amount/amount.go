package amount

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// WireDecimals is the fixed decimal precision of amounts exchanged with the
// venue: order prices, quantities and trade settlement reports are encoded as
// integers scaled by 10^18.
const WireDecimals = 18

// Coin couples a fixed-point decimal amount with the denom it is expressed in.
type Coin struct {
	Amount decimal.Decimal
	Denom  string
}

// NewCoin constructs a coin from an amount and denom.
func NewCoin(amt decimal.Decimal, denom string) Coin {
	return Coin{Amount: amt, Denom: strings.TrimSpace(denom)}
}

// MustCoin parses the supplied decimal literal, panicking on malformed input.
// It is intended for fixtures and tests only.
func MustCoin(amt, denom string) Coin {
	return Coin{Amount: decimal.RequireFromString(amt), Denom: denom}
}

// IsPositive reports whether the coin amount is strictly greater than zero.
func (c Coin) IsPositive() bool {
	return c.Amount.IsPositive()
}

// Validate checks that the coin carries a denom and a non-negative amount.
func (c Coin) Validate() error {
	if strings.TrimSpace(c.Denom) == "" {
		return fmt.Errorf("coin: denom required")
	}
	if c.Amount.IsNegative() {
		return fmt.Errorf("coin: amount must not be negative")
	}
	return nil
}

// String renders the coin in "amount denom" form.
func (c Coin) String() string {
	return c.Amount.String() + " " + c.Denom
}

// Scaled multiplies (digits > 0) or divides (digits < 0) the value by
// 10^|digits|. It translates between the router's working precision and the
// venue's wire encoding.
func Scaled(value decimal.Decimal, digits int32) decimal.Decimal {
	return value.Shift(digits)
}

// ToWire renders a decimal as the venue's 18-decimal integer encoding.
func ToWire(value decimal.Decimal) string {
	return value.Shift(WireDecimals).Truncate(0).String()
}

// FromWire parses an 18-decimal integer-encoded value from a trade report.
func FromWire(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Decimal{}, fmt.Errorf("wire amount empty")
	}
	parsed, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse wire amount %q: %w", trimmed, err)
	}
	return parsed.Shift(-WireDecimals), nil
}
