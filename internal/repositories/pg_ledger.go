package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rentchain/escrow/internal/models"
)

const paymentColumns = `id, payer, payee, property_ref, gross_amount, due_at, created_at, status,
	settled_at, settlement_method, external_ref, fee_bps, net_amount, fee_amount,
	dispute_reason, disputed_by, refunded_at, refunded_amount`

// PostgresLedger stores the ledger in postgres. Each mutation is one pgx
// transaction holding a row lock on the payment.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

// EnsureSettings seeds the settings row on first start. An existing row wins.
func (r *PostgresLedger) EnsureSettings(ctx context.Context, s models.Settings) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO engine_settings (id, fee_bps, paused) VALUES (1, $1, $2)
		ON CONFLICT (id) DO NOTHING
	`, s.FeeBps, s.Paused)
	return err
}

func (r *PostgresLedger) Insert(ctx context.Context, p *models.Payment, fn Mutator) (*models.Payment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `
		UPDATE payment_counter SET last_id = last_id + 1 WHERE id = 1 RETURNING last_id
	`).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("assign payment id: %w", err)
	}

	working := p.Clone()
	working.ID = models.PaymentID(id)
	working.Status = models.PaymentStatusPending

	ptx := &pgTx{tx: tx}
	if fn != nil {
		if err := fn(ctx, ptx, working); err != nil {
			return nil, err
		}
	}
	if working.ID != models.PaymentID(id) || working.Status != models.PaymentStatusPending {
		return nil, ErrImmutableField
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO payments (id, payer, payee, property_ref, gross_amount, due_at, created_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, working.ID, working.Payer, working.Payee, working.PropertyRef, working.GrossAmount,
		working.DueAt, working.CreatedAt, working.Status)
	if err != nil {
		return nil, err
	}
	if err := ptx.flush(ctx); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return working, nil
}

func (r *PostgresLedger) Update(ctx context.Context, id models.PaymentID, fn Mutator) (*models.Payment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	orig, err := scanPayment(tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}

	working := orig.Clone()
	ptx := &pgTx{tx: tx}
	if err := fn(ctx, ptx, working); err != nil {
		return nil, err
	}
	if err := checkImmutable(orig, working); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE payments SET
			status = $1, settled_at = $2, settlement_method = $3, external_ref = $4,
			fee_bps = $5, net_amount = $6, fee_amount = $7,
			dispute_reason = $8, disputed_by = $9, refunded_at = $10, refunded_amount = $11
		WHERE id = $12
	`, working.Status, working.SettledAt, working.SettlementMethod, working.ExternalRef,
		working.FeeBps, working.NetAmount, working.FeeAmount,
		working.DisputeReason, working.DisputedBy, working.RefundedAt, working.RefundedAmount,
		working.ID)
	if err != nil {
		return nil, err
	}
	if err := ptx.flush(ctx); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return working, nil
}

func (r *PostgresLedger) Apply(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ptx := &pgTx{tx: tx}
	if err := fn(ctx, ptx); err != nil {
		return err
	}
	if err := ptx.flush(ctx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresLedger) Get(ctx context.Context, id models.PaymentID) (*models.Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

func (r *PostgresLedger) ListByParty(ctx context.Context, addr models.Address) ([]models.PaymentID, error) {
	return r.listIDs(ctx, `SELECT id FROM payments WHERE payer = $1 OR payee = $1 ORDER BY id`, addr)
}

func (r *PostgresLedger) ListByStatus(ctx context.Context, status string) ([]models.PaymentID, error) {
	return r.listIDs(ctx, `SELECT id FROM payments WHERE status = $1 ORDER BY id`, status)
}

func (r *PostgresLedger) listIDs(ctx context.Context, query string, arg any) ([]models.PaymentID, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []models.PaymentID{}
	for rows.Next() {
		var id models.PaymentID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PostgresLedger) Account(ctx context.Context, addr models.Address) (models.Account, error) {
	return scanAccount(ctx, r.pool, addr)
}

func (r *PostgresLedger) Settings(ctx context.Context) (models.Settings, error) {
	var s models.Settings
	err := r.pool.QueryRow(ctx, `SELECT fee_bps, paused FROM engine_settings WHERE id = 1`).Scan(&s.FeeBps, &s.Paused)
	return s, err
}

func (r *PostgresLedger) Events(ctx context.Context, f models.EventFilter) ([]models.Event, error) {
	where := []string{"seq > $1"}
	args := []any{f.AfterSeq}
	argIdx := 2

	if f.PaymentID != nil {
		where = append(where, fmt.Sprintf("payment_id = $%d", argIdx))
		args = append(args, *f.PaymentID)
		argIdx++
	}
	if f.Type != "" {
		where = append(where, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, f.Type)
		argIdx++
	}
	args = append(args, normalizeLimit(f.Limit))

	query := fmt.Sprintf(`SELECT seq, data FROM payment_events WHERE %s ORDER BY seq LIMIT $%d`,
		strings.Join(where, " AND "), argIdx)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		var (
			seq  int64
			data []byte
		)
		if err := rows.Scan(&seq, &data); err != nil {
			return nil, err
		}
		var e models.Event
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", seq, err)
		}
		e.Seq = seq
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresLedger) PlatformTotals(ctx context.Context) (models.PlatformTotals, error) {
	var t models.PlatformTotals
	err := r.pool.QueryRow(ctx, `
		SELECT
			count(*),
			COALESCE(sum(gross_amount) FILTER (WHERE settled_at IS NOT NULL AND settlement_method = 'balance_transfer'), 0),
			COALESCE(sum(gross_amount) FILTER (WHERE settled_at IS NOT NULL AND settlement_method = 'external_attestation'), 0),
			COALESCE(sum(fee_amount - GREATEST(refunded_amount - net_amount, 0))
				FILTER (WHERE settled_at IS NOT NULL AND settlement_method = 'balance_transfer'), 0),
			COALESCE(sum(refunded_amount), 0)
		FROM payments
	`).Scan(&t.TotalPayments, &t.BalanceTransferVolume, &t.AttestationVolume, &t.FeesCollected, &t.RefundedVolume)
	return t, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.ID, &p.Payer, &p.Payee, &p.PropertyRef, &p.GrossAmount, &p.DueAt, &p.CreatedAt, &p.Status,
		&p.SettledAt, &p.SettlementMethod, &p.ExternalRef, &p.FeeBps, &p.NetAmount, &p.FeeAmount,
		&p.DisputeReason, &p.DisputedBy, &p.RefundedAt, &p.RefundedAmount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanAccount(ctx context.Context, q querier, addr models.Address) (models.Account, error) {
	acc := models.Account{Address: addr}
	err := q.QueryRow(ctx, `SELECT balance, allowance FROM accounts WHERE address = $1`, addr).
		Scan(&acc.Balance, &acc.Allowance)
	if errors.Is(err, pgx.ErrNoRows) {
		return acc, nil
	}
	return acc, err
}

// pgTx runs Tx operations inside a pgx transaction. Events are buffered and
// written after the payment row so the foreign key resolves on insert.
type pgTx struct {
	tx     pgx.Tx
	events []*models.Event
}

func (t *pgTx) Account(ctx context.Context, addr models.Address) (models.Account, error) {
	return scanAccount(ctx, t.tx, addr)
}

func (t *pgTx) Debit(ctx context.Context, addr models.Address, amount models.Amount) error {
	if err := checkPositive(amount); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE accounts SET balance = balance - $1 WHERE address = $2 AND balance >= $1
	`, amount, addr)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

func (t *pgTx) Credit(ctx context.Context, addr models.Address, amount models.Amount) error {
	if err := checkPositive(amount); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO accounts (address, balance) VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance
	`, addr, amount)
	return err
}

func (t *pgTx) SpendAllowance(ctx context.Context, owner models.Address, amount models.Amount) error {
	if err := checkPositive(amount); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE accounts SET allowance = allowance - $1 WHERE address = $2 AND allowance >= $1
	`, amount, owner)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientAllowance
	}
	return nil
}

func (t *pgTx) SetAllowance(ctx context.Context, owner models.Address, amount models.Amount) error {
	if amount < 0 {
		return checkPositive(amount)
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO accounts (address, allowance) VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE SET allowance = EXCLUDED.allowance
	`, owner, amount)
	return err
}

func (t *pgTx) Settings(ctx context.Context) (models.Settings, error) {
	var s models.Settings
	err := t.tx.QueryRow(ctx, `SELECT fee_bps, paused FROM engine_settings WHERE id = 1`).Scan(&s.FeeBps, &s.Paused)
	return s, err
}

// SettingsForUpdate holds the settings row lock until commit.
func (t *pgTx) SettingsForUpdate(ctx context.Context) (models.Settings, error) {
	var s models.Settings
	err := t.tx.QueryRow(ctx, `SELECT fee_bps, paused FROM engine_settings WHERE id = 1 FOR UPDATE`).Scan(&s.FeeBps, &s.Paused)
	return s, err
}

func (t *pgTx) PutSettings(ctx context.Context, s models.Settings) error {
	_, err := t.tx.Exec(ctx, `UPDATE engine_settings SET fee_bps = $1, paused = $2 WHERE id = 1`, s.FeeBps, s.Paused)
	return err
}

func (t *pgTx) Append(ctx context.Context, evt *models.Event) error {
	if evt.ID == uuid.Nil {
		evt.ID = uuid.New()
	}
	t.events = append(t.events, evt)
	return nil
}

func (t *pgTx) flush(ctx context.Context) error {
	for _, evt := range t.events {
		data, err := json.Marshal(evt)
		if err != nil {
			return err
		}
		err = t.tx.QueryRow(ctx, `
			INSERT INTO payment_events (id, type, payment_id, actor, at, data)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING seq
		`, evt.ID, evt.Type, evt.PaymentID, evt.Actor, evt.At, data).Scan(&evt.Seq)
		if err != nil {
			return fmt.Errorf("append event %s: %w", evt.Type, err)
		}
	}
	return nil
}
