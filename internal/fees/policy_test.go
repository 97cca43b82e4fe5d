package fees

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rentchain/escrow/internal/models"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		gross   models.Amount
		rate    int
		wantNet models.Amount
		wantFee models.Amount
	}{
		{"half percent of 1000.00", 1_000_000_000, 50, 995_000_000, 5_000_000},
		{"zero rate", 1_000_000, 0, 1_000_000, 0},
		{"ceiling", 1_000_000, MaxRateBps, 950_000, 50_000},
		{"rounds fee down", 199, 50, 199, 0},
		{"rounds fee down at boundary", 200, 50, 199, 1},
		{"one unit", 1, MaxRateBps, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net, fee := Split(tt.gross, tt.rate)
			if net != tt.wantNet || fee != tt.wantFee {
				t.Errorf("Split(%d, %d) = (%d, %d), want (%d, %d)", tt.gross, tt.rate, net, fee, tt.wantNet, tt.wantFee)
			}
		})
	}
}

func TestSplitConservesValue(t *testing.T) {
	grosses := []models.Amount{1, 7, 99, 10_001, 123_456_789, 1 << 40, 9_000_000_000_000_000_000}
	for _, gross := range grosses {
		for rate := 0; rate <= MaxRateBps; rate++ {
			net, fee := Split(gross, rate)
			require.Equal(t, gross, net+fee, "gross=%d rate=%d", gross, rate)
			require.GreaterOrEqual(t, fee, models.Amount(0))
			require.LessOrEqual(t, fee, gross)
		}
	}
}

func TestSplitDoesNotOverflow(t *testing.T) {
	gross := models.Amount(9_000_000_000_000_000_000)
	net, fee := Split(gross, MaxRateBps)
	require.Equal(t, models.Amount(450_000_000_000_000_000), fee)
	require.Equal(t, gross-fee, net)
}

func TestValidateRate(t *testing.T) {
	for rate := 0; rate <= 2*MaxRateBps; rate++ {
		err := ValidateRate(rate)
		if rate <= MaxRateBps {
			require.NoError(t, err, "rate %d", rate)
		} else {
			require.True(t, errors.Is(err, ErrRateAboveCeiling), "rate %d", rate)
		}
	}
	require.Error(t, ValidateRate(-1))
}

func TestNewQuote(t *testing.T) {
	q := NewQuote(1_000_000_000, 50)
	require.Equal(t, Quote{Gross: 1_000_000_000, Net: 995_000_000, Fee: 5_000_000, FeeBps: 50}, q)
}
