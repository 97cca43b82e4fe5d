package services

import (
	"context"

	"github.com/rentchain/escrow/internal/events"
	"github.com/rentchain/escrow/internal/models"
	"github.com/rentchain/escrow/internal/rbac"
	"github.com/rentchain/escrow/internal/repositories"
	"go.uber.org/zap"
)

// AccountService manages balances outside of payment transitions: the
// owner's pull allowance and operator on-ramp deposits.
type AccountService struct {
	*engine
}

func NewAccountService(ledger repositories.Ledger, publisher events.Publisher, opts Options, log *zap.Logger) *AccountService {
	return &AccountService{engine: newEngine(ledger, publisher, opts, log)}
}

// Approve replaces the amount the engine may pull from caller on settlement.
func (s *AccountService) Approve(ctx context.Context, caller models.Address, amount models.Amount) (models.Account, error) {
	const op = "approve"

	if !rbac.Can(rbac.RolesFor(caller, s.opts.Operator, nil), rbac.PermApprove) {
		return models.Account{}, s.fail(op, reject(ErrUnauthorized, "caller identity required"))
	}
	if amount < 0 {
		return models.Account{}, s.fail(op, reject(ErrInvalidAmount, "allowance must not be negative"))
	}

	var (
		acc models.Account
		evt *models.Event
	)
	now := s.now()
	err := s.ledger.Apply(ctx, func(ctx context.Context, tx repositories.Tx) error {
		if err := tx.SetAllowance(ctx, caller, amount); err != nil {
			return err
		}
		var err error
		if acc, err = tx.Account(ctx, caller); err != nil {
			return err
		}
		evt = &models.Event{Type: models.EventAllowanceSet, Actor: caller, Payer: caller, Gross: amount, At: now}
		return tx.Append(ctx, evt)
	})
	if err != nil {
		return models.Account{}, s.fail(op, err)
	}
	s.publish(ctx, evt)
	return acc, nil
}

// Deposit credits addr from outside the engine. Operator only.
func (s *AccountService) Deposit(ctx context.Context, caller, addr models.Address, amount models.Amount) (models.Account, error) {
	const op = "deposit"

	if err := s.requireOperator(caller, rbac.PermDeposit); err != nil {
		return models.Account{}, s.fail(op, err)
	}
	if addr.IsZero() {
		return models.Account{}, s.fail(op, reject(ErrInvalidCounterparty, "deposit address must be non-zero"))
	}
	if amount <= 0 {
		return models.Account{}, s.fail(op, reject(ErrInvalidAmount, "deposit must be positive"))
	}

	var (
		acc models.Account
		evt *models.Event
	)
	now := s.now()
	err := s.ledger.Apply(ctx, func(ctx context.Context, tx repositories.Tx) error {
		if err := tx.Credit(ctx, addr, amount); err != nil {
			return err
		}
		var err error
		if acc, err = tx.Account(ctx, addr); err != nil {
			return err
		}
		evt = &models.Event{Type: models.EventFundsDeposited, Actor: caller, Payee: addr, Gross: amount, At: now}
		return tx.Append(ctx, evt)
	})
	if err != nil {
		return models.Account{}, s.fail(op, err)
	}

	s.log.Info("funds deposited", zap.String("address", addr.String()), zap.String("amount", amount.String()))
	s.publish(ctx, evt)
	return acc, nil
}

func (s *AccountService) Balance(ctx context.Context, addr models.Address) (models.Account, error) {
	return s.ledger.Account(ctx, addr)
}
