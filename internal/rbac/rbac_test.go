package rbac

import (
	"testing"

	"github.com/rentchain/escrow/internal/models"
)

const (
	operator = models.Address("0x00000000000000000000000000000000000000ff")
	payer    = models.Address("0x00000000000000000000000000000000000000a1")
	payee    = models.Address("0x00000000000000000000000000000000000000b0")
	stranger = models.Address("0x00000000000000000000000000000000000000c0")
)

func TestRolesFor(t *testing.T) {
	p := &models.Payment{Payer: payer, Payee: payee}

	tests := []struct {
		caller models.Address
		perm   string
		want   bool
	}{
		{payer, PermSettle, true},
		{payee, PermSettle, false},
		{operator, PermSettle, false},
		{payer, PermDispute, true},
		{payee, PermDispute, true},
		{stranger, PermDispute, false},
		{operator, PermRefund, true},
		{payer, PermRefund, false},
		{payee, PermRefund, false},
		{operator, PermSetFeeRate, true},
		{operator, PermPause, true},
		{operator, PermDeposit, true},
		{payer, PermSetFeeRate, false},
		{payee, PermPause, false},
		{stranger, PermDeposit, false},
		{models.ZeroAddress, PermRefund, false},
		{stranger, PermCreatePayment, true},
		{models.ZeroAddress, PermCreatePayment, false},
		{stranger, PermViewPayment, false},
		{operator, PermViewPayment, true},
	}
	for _, tt := range tests {
		got := Can(RolesFor(tt.caller, operator, p), tt.perm)
		if got != tt.want {
			t.Errorf("Can(%s, %s) = %v, want %v", tt.caller, tt.perm, got, tt.want)
		}
	}
}
