package services

import (
	"context"
	"time"

	"github.com/rentchain/escrow/internal/events"
	"github.com/rentchain/escrow/internal/models"
	"github.com/rentchain/escrow/internal/rbac"
	"github.com/rentchain/escrow/internal/repositories"
	"go.uber.org/zap"
)

type CreatePaymentInput struct {
	Payee       models.Address
	PropertyRef string
	Gross       models.Amount
	DueAt       time.Time
}

// PaymentService owns the payment lifecycle up to settlement.
type PaymentService struct {
	*engine
	settlers map[string]Settler
}

func NewPaymentService(ledger repositories.Ledger, publisher events.Publisher, opts Options, log *zap.Logger) *PaymentService {
	return &PaymentService{
		engine:   newEngine(ledger, publisher, opts, log),
		settlers: defaultSettlers(opts.Treasury),
	}
}

func defaultSettlers(treasury models.Address) map[string]Settler {
	out := make(map[string]Settler)
	for _, s := range []Settler{BalanceTransfer{Treasury: treasury}, ExternalAttestation{}} {
		out[s.Method()] = s
	}
	return out
}

func (s *PaymentService) CreatePayment(ctx context.Context, caller models.Address, in CreatePaymentInput) (*models.Payment, error) {
	const op = "create_payment"

	if !rbac.Can(rbac.RolesFor(caller, s.opts.Operator, nil), rbac.PermCreatePayment) {
		return nil, s.fail(op, reject(ErrUnauthorized, "caller identity required"))
	}
	if in.Payee.IsZero() {
		return nil, s.fail(op, reject(ErrInvalidCounterparty, "payee must be a non-zero address"))
	}
	if in.Payee == caller {
		return nil, s.fail(op, reject(ErrInvalidCounterparty, "payee must differ from payer"))
	}
	if in.Gross <= 0 {
		return nil, s.fail(op, reject(ErrInvalidAmount, "gross amount must be positive"))
	}
	now := s.now()
	if !in.DueAt.After(now) {
		return nil, s.fail(op, reject(ErrInvalidDueDate, "due date must be in the future"))
	}

	draft := &models.Payment{
		Payer:       caller,
		Payee:       in.Payee,
		PropertyRef: in.PropertyRef,
		GrossAmount: in.Gross,
		DueAt:       in.DueAt.UTC(),
		CreatedAt:   now,
	}

	var evt *models.Event
	p, err := s.ledger.Insert(ctx, draft, func(ctx context.Context, tx repositories.Tx, p *models.Payment) error {
		if _, err := s.requireRunning(ctx, tx); err != nil {
			return err
		}
		evt = models.NewPaymentEvent(models.EventPaymentCreated, caller, "", p, now)
		return tx.Append(ctx, evt)
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	s.log.Info("payment created",
		zap.Int64("payment_id", int64(p.ID)),
		zap.String("payer", p.Payer.String()),
		zap.String("payee", p.Payee.String()),
		zap.String("gross", p.GrossAmount.String()))
	s.publish(ctx, evt)
	return p, nil
}

// Settle dispatches to the adapter named by in.Method. Only the payer may
// settle, and only a pending payment.
func (s *PaymentService) Settle(ctx context.Context, caller models.Address, id models.PaymentID, in SettleInput) (*models.Payment, error) {
	const op = "settle"

	settler, ok := s.settlers[in.Method]
	if !ok {
		return nil, s.fail(op, reject(ErrInvalidMethod, "unknown settlement method %q", in.Method))
	}

	now := s.now()
	var evt *models.Event
	p, err := s.ledger.Update(ctx, id, func(ctx context.Context, tx repositories.Tx, p *models.Payment) error {
		settings, err := s.requireRunning(ctx, tx)
		if err != nil {
			return err
		}
		if !rbac.Can(rbac.RolesFor(caller, s.opts.Operator, p), rbac.PermSettle) {
			return reject(ErrNotPayer, "only the payer may settle payment %d", p.ID)
		}
		if p.Status != models.PaymentStatusPending {
			return reject(ErrInvalidState, "payment %d is %s, not pending", p.ID, p.Status)
		}
		if err := settler.Settle(ctx, tx, p, in, settings.FeeBps, now); err != nil {
			return err
		}
		p.Status = models.PaymentStatusSettled
		p.SettledAt = &now
		p.SettlementMethod = settler.Method()

		evt = models.NewPaymentEvent(models.EventPaymentSettled, caller, models.PaymentStatusPending, p, now)
		return tx.Append(ctx, evt)
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	s.metrics.ObserveSettlement(p.SettlementMethod, int64(p.GrossAmount), int64(p.FeeAmount))
	s.log.Info("payment settled",
		zap.Int64("payment_id", int64(p.ID)),
		zap.String("method", p.SettlementMethod),
		zap.String("net", p.NetAmount.String()),
		zap.String("fee", p.FeeAmount.String()))
	s.publish(ctx, evt)
	return p, nil
}

func (s *PaymentService) Get(ctx context.Context, id models.PaymentID) (*models.Payment, error) {
	p, err := s.ledger.Get(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

// GetFor returns the payment if caller is a party to it or the operator.
func (s *PaymentService) GetFor(ctx context.Context, caller models.Address, id models.PaymentID) (*models.Payment, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rbac.Can(rbac.RolesFor(caller, s.opts.Operator, p), rbac.PermViewPayment) {
		return nil, reject(ErrNotParty, "caller is not a party to payment %d", id)
	}
	return p, nil
}

// ListByParty returns every payment addr is payer or payee of, in creation
// order.
func (s *PaymentService) ListByParty(ctx context.Context, addr models.Address) ([]*models.Payment, error) {
	return s.filterParty(ctx, addr, func(*models.Payment) bool { return true })
}

func (s *PaymentService) PendingFor(ctx context.Context, addr models.Address) ([]*models.Payment, error) {
	return s.filterParty(ctx, addr, func(p *models.Payment) bool {
		return p.Status == models.PaymentStatusPending
	})
}

func (s *PaymentService) OverdueFor(ctx context.Context, addr models.Address) ([]*models.Payment, error) {
	now := s.now()
	return s.filterParty(ctx, addr, func(p *models.Payment) bool { return p.IsOverdue(now) })
}

// Overdue lists every overdue payment on the platform, for the notifier.
func (s *PaymentService) Overdue(ctx context.Context) ([]*models.Payment, error) {
	ids, err := s.ledger.ListByStatus(ctx, models.PaymentStatusPending)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]*models.Payment, 0)
	for _, id := range ids {
		p, err := s.ledger.Get(ctx, id)
		if err != nil {
			return nil, translate(err)
		}
		if p.IsOverdue(now) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *PaymentService) filterParty(ctx context.Context, addr models.Address, keep func(*models.Payment) bool) ([]*models.Payment, error) {
	ids, err := s.ledger.ListByParty(ctx, addr)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Payment, 0, len(ids))
	for _, id := range ids {
		p, err := s.ledger.Get(ctx, id)
		if err != nil {
			return nil, translate(err)
		}
		if keep(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// History returns the audit trail of one payment, visible to its parties and
// the operator.
func (s *PaymentService) History(ctx context.Context, caller models.Address, id models.PaymentID) ([]models.Event, error) {
	if _, err := s.GetFor(ctx, caller, id); err != nil {
		return nil, err
	}
	return s.ledger.Events(ctx, models.EventFilter{PaymentID: &id, Limit: 500})
}
