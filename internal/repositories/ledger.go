package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/rentchain/escrow/internal/models"
)

var (
	ErrNotFound              = errors.New("ledger: not found")
	ErrInsufficientBalance   = errors.New("ledger: insufficient balance")
	ErrInsufficientAllowance = errors.New("ledger: insufficient allowance")
	ErrImmutableField        = errors.New("ledger: immutable payment field changed")
)

// Tx is the unit of work handed to a mutator. Balance and allowance changes
// are applied with the payment write and the staged events, or not at all.
type Tx interface {
	Account(ctx context.Context, addr models.Address) (models.Account, error)
	Debit(ctx context.Context, addr models.Address, amount models.Amount) error
	Credit(ctx context.Context, addr models.Address, amount models.Amount) error
	SpendAllowance(ctx context.Context, owner models.Address, amount models.Amount) error
	SetAllowance(ctx context.Context, owner models.Address, amount models.Amount) error
	Settings(ctx context.Context) (models.Settings, error)
	// SettingsForUpdate reads settings and holds them exclusively until the
	// Tx ends. Read-modify-write of settings goes through it.
	SettingsForUpdate(ctx context.Context) (models.Settings, error)
	PutSettings(ctx context.Context, s models.Settings) error
	Append(ctx context.Context, evt *models.Event) error
}

// Mutator edits the working copy of a payment inside a Tx. Returning an error
// discards every staged write.
type Mutator func(ctx context.Context, tx Tx, p *models.Payment) error

// Ledger is the durable store of payments, balances, settings and the audit
// log. Only the payment state machine and the arbiter call Update.
type Ledger interface {
	// Insert assigns the next id, stores p as pending and indexes it under
	// both parties.
	Insert(ctx context.Context, p *models.Payment, fn Mutator) (*models.Payment, error)
	// Update runs fn under an exclusive scope for payment id.
	Update(ctx context.Context, id models.PaymentID, fn Mutator) (*models.Payment, error)
	// Apply runs fn for mutations that do not touch a payment.
	Apply(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Get(ctx context.Context, id models.PaymentID) (*models.Payment, error)
	ListByParty(ctx context.Context, addr models.Address) ([]models.PaymentID, error)
	ListByStatus(ctx context.Context, status string) ([]models.PaymentID, error)
	Account(ctx context.Context, addr models.Address) (models.Account, error)
	Settings(ctx context.Context) (models.Settings, error)
	Events(ctx context.Context, f models.EventFilter) ([]models.Event, error)
	PlatformTotals(ctx context.Context) (models.PlatformTotals, error)
}

func checkImmutable(orig, next *models.Payment) error {
	switch {
	case orig.ID != next.ID:
		return fmt.Errorf("%w: id", ErrImmutableField)
	case orig.Payer != next.Payer:
		return fmt.Errorf("%w: payer", ErrImmutableField)
	case orig.Payee != next.Payee:
		return fmt.Errorf("%w: payee", ErrImmutableField)
	case orig.GrossAmount != next.GrossAmount:
		return fmt.Errorf("%w: gross_amount", ErrImmutableField)
	case orig.PropertyRef != next.PropertyRef:
		return fmt.Errorf("%w: property_ref", ErrImmutableField)
	case !orig.DueAt.Equal(next.DueAt):
		return fmt.Errorf("%w: due_at", ErrImmutableField)
	case orig.SettledAt != nil && (next.SettledAt == nil || !orig.SettledAt.Equal(*next.SettledAt)):
		return fmt.Errorf("%w: settled_at", ErrImmutableField)
	}
	if orig.Status != next.Status && !models.IsValidTransition(orig.Status, next.Status) {
		return fmt.Errorf("ledger: illegal transition %s -> %s", orig.Status, next.Status)
	}
	return nil
}

func checkPositive(amount models.Amount) error {
	if amount <= 0 {
		return fmt.Errorf("ledger: amount must be positive, got %d", amount)
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
