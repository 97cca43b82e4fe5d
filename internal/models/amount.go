package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a value in the settlement currency's smallest unit (6 decimals,
// stablecoin-equivalent). 1_000_000 == 1.00.
type Amount int64

const AmountDecimals = 6

// ParseAmount converts a decimal string such as "1000.00" into micro units.
// More than six fractional digits are rejected instead of rounded.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	scaled := d.Shift(AmountDecimals)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", s, AmountDecimals)
	}
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %q out of range", s)
	}
	return Amount(scaled.IntPart()), nil
}

// String renders the amount with six fixed decimal places.
func (a Amount) String() string {
	return decimal.New(int64(a), -AmountDecimals).StringFixed(AmountDecimals)
}
