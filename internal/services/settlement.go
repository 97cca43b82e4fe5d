package services

import (
	"context"
	"strings"
	"time"

	"github.com/rentchain/escrow/internal/fees"
	"github.com/rentchain/escrow/internal/models"
	"github.com/rentchain/escrow/internal/repositories"
)

type SettleInput struct {
	Method      string
	ExternalRef string
}

// Settler is one way of moving a pending payment to settled, and of undoing
// that settlement on refund. Both run inside the payment's ledger scope.
type Settler interface {
	Method() string
	Settle(ctx context.Context, tx repositories.Tx, p *models.Payment, in SettleInput, feeBps int, now time.Time) error
	Refund(ctx context.Context, tx repositories.Tx, p *models.Payment, policy RefundPolicy) (returned models.Amount, reconcile bool, err error)
}

// BalanceTransfer pulls gross from the payer against their allowance, pays
// net to the payee and the fee to the treasury.
type BalanceTransfer struct {
	Treasury models.Address
}

func (BalanceTransfer) Method() string { return models.MethodBalanceTransfer }

func (b BalanceTransfer) Settle(ctx context.Context, tx repositories.Tx, p *models.Payment, in SettleInput, feeBps int, now time.Time) error {
	net, fee := fees.Split(p.GrossAmount, feeBps)

	if err := tx.SpendAllowance(ctx, p.Payer, p.GrossAmount); err != nil {
		return translate(err)
	}
	if err := tx.Debit(ctx, p.Payer, p.GrossAmount); err != nil {
		return translate(err)
	}
	if net > 0 {
		if err := tx.Credit(ctx, p.Payee, net); err != nil {
			return err
		}
	}
	if fee > 0 {
		if err := tx.Credit(ctx, b.Treasury, fee); err != nil {
			return err
		}
	}

	p.FeeBps = feeBps
	p.NetAmount = net
	p.FeeAmount = fee
	p.ExternalRef = ""
	return nil
}

func (b BalanceTransfer) Refund(ctx context.Context, tx repositories.Tx, p *models.Payment, policy RefundPolicy) (models.Amount, bool, error) {
	var returned models.Amount
	if p.NetAmount > 0 {
		if err := tx.Debit(ctx, p.Payee, p.NetAmount); err != nil {
			return 0, false, translate(err)
		}
		returned += p.NetAmount
	}
	if policy == RefundGross && p.FeeAmount > 0 {
		if err := tx.Debit(ctx, b.Treasury, p.FeeAmount); err != nil {
			return 0, false, translate(err)
		}
		returned += p.FeeAmount
	}
	if returned > 0 {
		if err := tx.Credit(ctx, p.Payer, returned); err != nil {
			return 0, false, err
		}
	}
	return returned, false, nil
}

// ExternalAttestation records an off-platform payment reference. No value
// moves inside the engine.
type ExternalAttestation struct{}

func (ExternalAttestation) Method() string { return models.MethodExternalAttestation }

func (ExternalAttestation) Settle(ctx context.Context, tx repositories.Tx, p *models.Payment, in SettleInput, feeBps int, now time.Time) error {
	ref := strings.TrimSpace(in.ExternalRef)
	if ref == "" {
		return reject(ErrEmptyReference, "external_ref is required")
	}
	p.ExternalRef = ref
	return nil
}

// Refund is status only; the returned flag asks observers to reconcile
// off-platform.
func (ExternalAttestation) Refund(ctx context.Context, tx repositories.Tx, p *models.Payment, policy RefundPolicy) (models.Amount, bool, error) {
	return 0, true, nil
}
