package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rentchain/escrow/internal/events"
	"github.com/rentchain/escrow/internal/models"
	"github.com/rentchain/escrow/internal/repositories"
	"github.com/stretchr/testify/require"
)

const (
	operator = models.Address("0x00000000000000000000000000000000000000ff")
	treasury = models.Address("0x00000000000000000000000000000000000000ee")
	tenant   = models.Address("0x00000000000000000000000000000000000000a1")
	landlord = models.Address("0x00000000000000000000000000000000000000b0")
	stranger = models.Address("0x00000000000000000000000000000000000000c0")
)

type fixture struct {
	t         *testing.T
	ctx       context.Context
	clock     time.Time
	ledger    *repositories.MemoryLedger
	mu        sync.Mutex
	published []events.Event

	payments *PaymentService
	arbiter  *Arbiter
	admin    *AdminService
	accounts *AccountService
	stats    *StatsService
}

func newFixture(t *testing.T, feeBps int, policy RefundPolicy) *fixture {
	t.Helper()
	f := &fixture{
		t:      t,
		ctx:    context.Background(),
		clock:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		ledger: repositories.NewMemoryLedger(models.Settings{FeeBps: feeBps}),
	}
	bus := events.NewMemoryBus()
	require.NoError(t, bus.Subscribe(f.ctx, events.StreamPayments, func(e events.Event) {
		f.mu.Lock()
		f.published = append(f.published, e)
		f.mu.Unlock()
	}))
	opts := Options{
		Operator:     operator,
		Treasury:     treasury,
		RefundPolicy: policy,
		Now:          func() time.Time { return f.clock },
	}
	f.payments = NewPaymentService(f.ledger, bus, opts, nil)
	f.arbiter = NewArbiter(f.ledger, bus, opts, nil)
	f.admin = NewAdminService(f.ledger, bus, opts, nil)
	f.accounts = NewAccountService(f.ledger, bus, opts, nil)
	f.stats = NewStatsService(f.ledger, opts, nil)
	return f
}

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func (f *fixture) fund(addr models.Address, amount models.Amount) {
	f.t.Helper()
	_, err := f.accounts.Deposit(f.ctx, operator, addr, amount)
	require.NoError(f.t, err)
	_, err = f.accounts.Approve(f.ctx, addr, amount)
	require.NoError(f.t, err)
}

func (f *fixture) create(gross models.Amount) *models.Payment {
	f.t.Helper()
	p, err := f.payments.CreatePayment(f.ctx, tenant, CreatePaymentInput{
		Payee:       landlord,
		PropertyRef: "prop-7",
		Gross:       gross,
		DueAt:       f.clock.Add(72 * time.Hour),
	})
	require.NoError(f.t, err)
	return p
}

func (f *fixture) settleTransfer(id models.PaymentID) *models.Payment {
	f.t.Helper()
	p, err := f.payments.Settle(f.ctx, tenant, id, SettleInput{Method: models.MethodBalanceTransfer})
	require.NoError(f.t, err)
	return p
}

func (f *fixture) settleAttested(id models.PaymentID) *models.Payment {
	f.t.Helper()
	p, err := f.payments.Settle(f.ctx, tenant, id, SettleInput{Method: models.MethodExternalAttestation, ExternalRef: "wire-881"})
	require.NoError(f.t, err)
	return p
}

func (f *fixture) balance(addr models.Address) models.Amount {
	f.t.Helper()
	acc, err := f.accounts.Balance(f.ctx, addr)
	require.NoError(f.t, err)
	return acc.Balance
}

// requireRejected asserts err matches want and that the ledger is unchanged
// since before.
func (f *fixture) requireRejected(before repositories.MemorySnapshot, err error, want *Error) {
	f.t.Helper()
	require.Error(f.t, err)
	require.ErrorIs(f.t, err, want)
	require.Equal(f.t, want.Kind, KindOf(err))
	require.Equal(f.t, before, f.ledger.Snapshot())
}

func mustAmount(t *testing.T, s string) models.Amount {
	t.Helper()
	a, err := models.ParseAmount(s)
	require.NoError(t, err)
	return a
}
