package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rentchain/escrow/internal/events"
	"github.com/rentchain/escrow/internal/fees"
	"github.com/rentchain/escrow/internal/models"
	"github.com/rentchain/escrow/internal/rbac"
	"github.com/rentchain/escrow/internal/repositories"
	"github.com/stretchr/testify/require"
)

func TestSetFeeRateCeiling(t *testing.T) {
	f := newFixture(t, 50, RefundGross)

	for _, rate := range []int{0, 1, 250, 499, 500} {
		s, err := f.admin.SetFeeRate(f.ctx, operator, rate)
		require.NoError(t, err, rate)
		require.Equal(t, rate, s.FeeBps)
	}

	for _, rate := range []int{501, 1000, 10_000, -1} {
		before := f.ledger.Snapshot()
		_, err := f.admin.SetFeeRate(f.ctx, operator, rate)
		f.requireRejected(before, err, ErrFeeAboveCeiling)
		require.Equal(t, KindPolicy, KindOf(err))
	}

	before := f.ledger.Snapshot()
	_, err := f.admin.SetFeeRate(f.ctx, tenant, 10)
	f.requireRejected(before, err, ErrUnauthorized)

	s, err := f.admin.Settings(f.ctx)
	require.NoError(t, err)
	require.Equal(t, 500, s.FeeBps)
}

// slowSettingsLedger widens the window between reading and writing settings.
type slowSettingsLedger struct {
	*repositories.MemoryLedger
}

func (l slowSettingsLedger) Apply(ctx context.Context, fn func(ctx context.Context, tx repositories.Tx) error) error {
	return l.MemoryLedger.Apply(ctx, func(ctx context.Context, tx repositories.Tx) error {
		return fn(ctx, slowSettingsTx{tx})
	})
}

type slowSettingsTx struct {
	repositories.Tx
}

func (t slowSettingsTx) SettingsForUpdate(ctx context.Context) (models.Settings, error) {
	s, err := t.Tx.SettingsForUpdate(ctx)
	time.Sleep(30 * time.Millisecond)
	return s, err
}

func TestConcurrentSettingsWritesDoNotOverwrite(t *testing.T) {
	ctx := context.Background()
	ledger := repositories.NewMemoryLedger(models.Settings{FeeBps: 50})
	admin := NewAdminService(slowSettingsLedger{ledger}, events.NewMemoryBus(), Options{Operator: operator}, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = admin.SetFeeRate(ctx, operator, 200)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = admin.Pause(ctx, operator)
	}()
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	s, err := ledger.Settings(ctx)
	require.NoError(t, err)
	require.Equal(t, models.Settings{FeeBps: 200, Paused: true}, s)

	evts, err := ledger.Events(ctx, models.EventFilter{})
	require.NoError(t, err)
	require.Len(t, evts, 2)
}

func TestConcurrentPauseOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	ledger := repositories.NewMemoryLedger(models.Settings{FeeBps: 50})
	admin := NewAdminService(slowSettingsLedger{ledger}, events.NewMemoryBus(), Options{Operator: operator}, nil)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = admin.Pause(ctx, operator)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, ErrInvalidState)
	}
	require.Equal(t, 1, succeeded)

	evts, err := ledger.Events(ctx, models.EventFilter{Type: models.EventEnginePaused})
	require.NoError(t, err)
	require.Len(t, evts, 1)
}

func TestPauseBlocksUserTransitions(t *testing.T) {
	f := newFixture(t, 50, RefundGross)
	pending := f.create(1_000_000)
	settled := f.create(1_000_000)
	f.settleAttested(settled.ID)

	before := f.ledger.Snapshot()
	_, err := f.admin.Pause(f.ctx, tenant)
	f.requireRejected(before, err, ErrUnauthorized)

	s, err := f.admin.Pause(f.ctx, operator)
	require.NoError(t, err)
	require.True(t, s.Paused)

	before = f.ledger.Snapshot()
	_, err = f.admin.Pause(f.ctx, operator)
	f.requireRejected(before, err, ErrInvalidState)

	_, err = f.payments.CreatePayment(f.ctx, tenant, CreatePaymentInput{
		Payee: landlord, Gross: 1, DueAt: f.clock.Add(time.Hour),
	})
	f.requireRejected(before, err, ErrPaused)
	require.Equal(t, KindUnavailable, KindOf(err))

	_, err = f.payments.Settle(f.ctx, tenant, pending.ID, SettleInput{Method: models.MethodExternalAttestation, ExternalRef: "r"})
	f.requireRejected(before, err, ErrPaused)

	_, err = f.arbiter.Dispute(f.ctx, landlord, settled.ID, "late")
	f.requireRejected(before, err, ErrPaused)

	refunded, err := f.arbiter.Refund(f.ctx, operator, settled.ID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusRefunded, refunded.Status)

	s, err = f.admin.Unpause(f.ctx, operator)
	require.NoError(t, err)
	require.False(t, s.Paused)
	f.settleAttested(pending.ID)
}

func TestOperatorActionsFollowRoleTable(t *testing.T) {
	f := newFixture(t, 50, RefundGross)
	settled := f.create(1_000_000)
	f.settleAttested(settled.ID)

	saved := rbac.RolePermissions[rbac.RoleOperator]
	t.Cleanup(func() { rbac.RolePermissions[rbac.RoleOperator] = saved })
	rbac.RolePermissions[rbac.RoleOperator] = []string{rbac.PermViewPayment}

	before := f.ledger.Snapshot()
	_, err := f.admin.SetFeeRate(f.ctx, operator, 10)
	f.requireRejected(before, err, ErrUnauthorized)
	_, err = f.admin.Pause(f.ctx, operator)
	f.requireRejected(before, err, ErrUnauthorized)
	_, err = f.accounts.Deposit(f.ctx, operator, tenant, 10)
	f.requireRejected(before, err, ErrUnauthorized)
	_, err = f.arbiter.Refund(f.ctx, operator, settled.ID)
	f.requireRejected(before, err, ErrUnauthorized)

	rbac.RolePermissions[rbac.RoleOperator] = saved
	_, err = f.admin.SetFeeRate(f.ctx, operator, 10)
	require.NoError(t, err)
}

func TestQuote(t *testing.T) {
	f := newFixture(t, 50, RefundGross)

	q, err := f.admin.Quote(f.ctx, mustAmount(t, "1000.00"))
	require.NoError(t, err)
	require.Equal(t, fees.Quote{
		Gross:  mustAmount(t, "1000.00"),
		Net:    mustAmount(t, "995.00"),
		Fee:    mustAmount(t, "5.00"),
		FeeBps: 50,
	}, q)

	_, err = f.admin.Quote(f.ctx, 0)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestDepositAndApprove(t *testing.T) {
	f := newFixture(t, 50, RefundGross)

	before := f.ledger.Snapshot()
	_, err := f.accounts.Deposit(f.ctx, tenant, tenant, 100)
	f.requireRejected(before, err, ErrUnauthorized)

	_, err = f.accounts.Deposit(f.ctx, operator, tenant, 0)
	f.requireRejected(before, err, ErrInvalidAmount)

	_, err = f.accounts.Deposit(f.ctx, operator, models.ZeroAddress, 10)
	f.requireRejected(before, err, ErrInvalidCounterparty)

	_, err = f.accounts.Approve(f.ctx, tenant, -1)
	f.requireRejected(before, err, ErrInvalidAmount)

	acc, err := f.accounts.Deposit(f.ctx, operator, tenant, 100)
	require.NoError(t, err)
	require.Equal(t, models.Amount(100), acc.Balance)

	acc, err = f.accounts.Approve(f.ctx, tenant, 40)
	require.NoError(t, err)
	require.Equal(t, models.Amount(40), acc.Allowance)
	require.Equal(t, models.Amount(100), acc.Balance)

	acc, err = f.accounts.Approve(f.ctx, tenant, 70)
	require.NoError(t, err)
	require.Equal(t, models.Amount(70), acc.Allowance)
}

func TestPartyStats(t *testing.T) {
	f := newFixture(t, 50, RefundGross)

	onTime := f.create(1)
	f.settleAttested(onTime.ID)

	late, err := f.payments.CreatePayment(f.ctx, tenant, CreatePaymentInput{
		Payee: landlord, Gross: 1, DueAt: f.clock.Add(time.Hour),
	})
	require.NoError(t, err)
	_, err = f.payments.CreatePayment(f.ctx, tenant, CreatePaymentInput{
		Payee: landlord, Gross: 1, DueAt: f.clock.Add(time.Hour),
	})
	require.NoError(t, err)
	f.create(1)

	f.advance(2 * time.Hour)
	f.settleAttested(late.ID)
	_, err = f.arbiter.Dispute(f.ctx, landlord, late.ID, "paid late")
	require.NoError(t, err)

	st, err := f.stats.PartyStats(f.ctx, tenant)
	require.NoError(t, err)
	require.Equal(t, PartyStats{
		Address:       tenant,
		AsPayer:       4,
		Pending:       2,
		Settled:       1,
		Disputed:      1,
		Overdue:       1,
		SettledOnTime: 1,
		TimelinessBps: 5000,
	}, st)

	st, err = f.stats.PartyStats(f.ctx, landlord)
	require.NoError(t, err)
	require.Equal(t, 4, st.AsPayee)
	require.Equal(t, 0, st.TimelinessBps)
}

func TestPlatformStats(t *testing.T) {
	f := newFixture(t, 50, RefundGross)
	f.fund(tenant, 3_000_000)

	a := f.create(1_000_000)
	b := f.create(1_000_000)
	c := f.create(1_000_000)
	f.create(1_000_000)
	f.settleTransfer(a.ID)
	f.settleTransfer(b.ID)
	f.settleAttested(c.ID)
	_, err := f.arbiter.Refund(f.ctx, operator, b.ID)
	require.NoError(t, err)

	st, err := f.stats.PlatformStats(f.ctx)
	require.NoError(t, err)
	require.Equal(t, int64(4), st.TotalPayments)
	require.Equal(t, models.Amount(2_000_000), st.BalanceTransferVolume)
	require.Equal(t, models.Amount(1_000_000), st.AttestationVolume)
	require.Equal(t, models.Amount(5_000), st.FeesCollected)
	require.Equal(t, models.Amount(1_000_000), st.RefundedVolume)
	require.Equal(t, 50, st.FeeBps)
	require.False(t, st.Paused)
}

func TestReplayReconstructsLedger(t *testing.T) {
	f := newFixture(t, 50, RefundGross)
	f.fund(tenant, 5_000_000)

	a := f.create(1_000_000)
	b := f.create(2_000_000)
	c := f.create(1_500_000)
	f.create(10)
	f.settleTransfer(a.ID)
	f.advance(time.Minute)
	f.settleTransfer(b.ID)
	f.settleAttested(c.ID)
	_, err := f.arbiter.Dispute(f.ctx, landlord, b.ID, "mould")
	require.NoError(t, err)
	f.advance(time.Minute)
	_, err = f.arbiter.Refund(f.ctx, operator, b.ID)
	require.NoError(t, err)
	_, err = f.arbiter.Refund(f.ctx, operator, c.ID)
	require.NoError(t, err)

	evts, err := f.ledger.Events(f.ctx, models.EventFilter{Limit: 500})
	require.NoError(t, err)
	replayed, err := models.ReplayPayments(evts)
	require.NoError(t, err)

	snap := f.ledger.Snapshot()
	require.Len(t, replayed, len(snap.Payments))
	for id, want := range snap.Payments {
		require.Equal(t, want, *replayed[id], "payment %d", id)
	}
}
