package services

import (
	"context"
	"strings"

	"github.com/rentchain/escrow/internal/events"
	"github.com/rentchain/escrow/internal/models"
	"github.com/rentchain/escrow/internal/rbac"
	"github.com/rentchain/escrow/internal/repositories"
	"go.uber.org/zap"
)

// Arbiter opens disputes on settled payments and lets the operator reverse a
// settlement. It never adjudicates; resolution happens outside the engine.
type Arbiter struct {
	*engine
	settlers map[string]Settler
}

func NewArbiter(ledger repositories.Ledger, publisher events.Publisher, opts Options, log *zap.Logger) *Arbiter {
	return &Arbiter{
		engine:   newEngine(ledger, publisher, opts, log),
		settlers: defaultSettlers(opts.Treasury),
	}
}

// Dispute moves a settled payment to disputed. Either party may open it.
func (a *Arbiter) Dispute(ctx context.Context, caller models.Address, id models.PaymentID, reason string) (*models.Payment, error) {
	const op = "dispute"

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, a.fail(op, reject(ErrEmptyReason, "dispute reason is required"))
	}

	now := a.now()
	var evt *models.Event
	p, err := a.ledger.Update(ctx, id, func(ctx context.Context, tx repositories.Tx, p *models.Payment) error {
		if _, err := a.requireRunning(ctx, tx); err != nil {
			return err
		}
		if !rbac.Can(rbac.RolesFor(caller, a.opts.Operator, p), rbac.PermDispute) {
			return reject(ErrNotParty, "caller is not a party to payment %d", p.ID)
		}
		if p.Status != models.PaymentStatusSettled {
			return reject(ErrInvalidState, "payment %d is %s, not settled", p.ID, p.Status)
		}
		p.Status = models.PaymentStatusDisputed
		p.DisputeReason = reason
		p.DisputedBy = caller

		evt = models.NewPaymentEvent(models.EventPaymentDisputed, caller, models.PaymentStatusSettled, p, now)
		return tx.Append(ctx, evt)
	})
	if err != nil {
		return nil, a.fail(op, err)
	}

	a.log.Info("payment disputed",
		zap.Int64("payment_id", int64(p.ID)),
		zap.String("by", caller.String()))
	a.publish(ctx, evt)
	return p, nil
}

// Refund reverses a settled or disputed payment. Operator only, and allowed
// while the engine is paused.
func (a *Arbiter) Refund(ctx context.Context, caller models.Address, id models.PaymentID) (*models.Payment, error) {
	const op = "refund"

	if err := a.requireOperator(caller, rbac.PermRefund); err != nil {
		return nil, a.fail(op, err)
	}

	now := a.now()
	var evt *models.Event
	p, err := a.ledger.Update(ctx, id, func(ctx context.Context, tx repositories.Tx, p *models.Payment) error {
		if p.Status != models.PaymentStatusSettled && p.Status != models.PaymentStatusDisputed {
			return reject(ErrInvalidState, "payment %d is %s, cannot refund", p.ID, p.Status)
		}
		settler, ok := a.settlers[p.SettlementMethod]
		if !ok {
			return reject(ErrInvalidMethod, "payment %d has unknown method %q", p.ID, p.SettlementMethod)
		}
		returned, reconcile, err := settler.Refund(ctx, tx, p, a.opts.RefundPolicy)
		if err != nil {
			return err
		}
		before := p.Status
		p.Status = models.PaymentStatusRefunded
		p.RefundedAt = &now
		p.RefundedAmount = returned

		evt = models.NewPaymentEvent(models.EventPaymentRefunded, caller, before, p, now)
		evt.Reconcile = reconcile
		return tx.Append(ctx, evt)
	})
	if err != nil {
		return nil, a.fail(op, err)
	}

	a.log.Info("payment refunded",
		zap.Int64("payment_id", int64(p.ID)),
		zap.String("returned", p.RefundedAmount.String()),
		zap.Bool("reconcile", evt.Reconcile))
	a.publish(ctx, evt)
	return p, nil
}
