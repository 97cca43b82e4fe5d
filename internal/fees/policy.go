// Package fees implements the platform fee policy: a pure split of a gross
// amount into (net, fee) at a basis-point rate with a hard ceiling.
package fees

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/rentchain/escrow/internal/models"
)

const (
	// BasisPoints is the rate denominator: 10000 bp == 100%.
	BasisPoints = 10_000

	// MaxRateBps is the fee ceiling (5%). It is not adjustable at runtime.
	MaxRateBps = 500
)

var ErrRateAboveCeiling = errors.New("fee rate exceeds ceiling")

// ValidateRate succeeds iff 0 <= rate <= MaxRateBps.
func ValidateRate(rate int) error {
	if rate < 0 {
		return fmt.Errorf("fee rate must be non-negative, got %d", rate)
	}
	if rate > MaxRateBps {
		return fmt.Errorf("%w: %d bp > %d bp", ErrRateAboveCeiling, rate, MaxRateBps)
	}
	return nil
}

// Split returns fee = floor(gross*rate/10000) and net = gross - fee.
// net + fee == gross for every input.
func Split(gross models.Amount, rate int) (net, fee models.Amount) {
	if gross <= 0 || rate <= 0 {
		return gross, 0
	}
	f := new(big.Int).Mul(big.NewInt(int64(gross)), big.NewInt(int64(rate)))
	f.Quo(f, big.NewInt(BasisPoints))
	fee = models.Amount(f.Int64())
	return gross - fee, fee
}

// Quote is the split of an amount at a given rate, as shown to callers
// before they settle.
type Quote struct {
	Gross  models.Amount `json:"gross"`
	Net    models.Amount `json:"net"`
	Fee    models.Amount `json:"fee"`
	FeeBps int           `json:"fee_bps"`
}

func NewQuote(gross models.Amount, rate int) Quote {
	net, fee := Split(gross, rate)
	return Quote{Gross: gross, Net: net, Fee: fee, FeeBps: rate}
}
