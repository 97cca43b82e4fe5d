package repositories

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rentchain/escrow/internal/models"
)

// MemoryLedger keeps the whole ledger in process. Each payment has its own
// mutex; balance and allowance writes are staged as deltas and folded in
// under mu at commit, so transactions on different payments only meet there.
// Settings writers additionally hold settingsMu from read through commit.
type MemoryLedger struct {
	insertMu   sync.Mutex
	settingsMu sync.Mutex

	mu       sync.RWMutex
	nextID   models.PaymentID
	payments map[models.PaymentID]*models.Payment
	locks    map[models.PaymentID]*sync.Mutex
	byParty  map[models.Address][]models.PaymentID
	byStatus map[string]map[models.PaymentID]struct{}
	accounts map[models.Address]models.Account
	settings models.Settings
	events   []models.Event
	seq      int64
}

func NewMemoryLedger(settings models.Settings) *MemoryLedger {
	return &MemoryLedger{
		payments: make(map[models.PaymentID]*models.Payment),
		locks:    make(map[models.PaymentID]*sync.Mutex),
		byParty:  make(map[models.Address][]models.PaymentID),
		byStatus: make(map[string]map[models.PaymentID]struct{}),
		accounts: make(map[models.Address]models.Account),
		settings: settings,
	}
}

func (l *MemoryLedger) Insert(ctx context.Context, p *models.Payment, fn Mutator) (*models.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.insertMu.Lock()
	defer l.insertMu.Unlock()

	l.mu.RLock()
	id := l.nextID + 1
	l.mu.RUnlock()

	working := p.Clone()
	working.ID = id
	working.Status = models.PaymentStatusPending

	tx := newMemTx(l)
	defer tx.release()
	if fn != nil {
		if err := fn(ctx, tx, working); err != nil {
			return nil, err
		}
	}
	if working.ID != id || working.Status != models.PaymentStatusPending {
		return nil, ErrImmutableField
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := tx.validate(); err != nil {
		return nil, err
	}
	tx.fold()
	stored := working.Clone()
	l.payments[id] = stored
	l.locks[id] = &sync.Mutex{}
	l.byParty[stored.Payer] = append(l.byParty[stored.Payer], id)
	if stored.Payee != stored.Payer {
		l.byParty[stored.Payee] = append(l.byParty[stored.Payee], id)
	}
	l.index(id, "", stored.Status)
	l.nextID = id
	return stored.Clone(), nil
}

func (l *MemoryLedger) Update(ctx context.Context, id models.PaymentID, fn Mutator) (*models.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	lock, ok := l.locks[id]
	l.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	lock.Lock()
	defer lock.Unlock()

	l.mu.RLock()
	orig := l.payments[id].Clone()
	l.mu.RUnlock()

	working := orig.Clone()
	tx := newMemTx(l)
	defer tx.release()
	if err := fn(ctx, tx, working); err != nil {
		return nil, err
	}
	if err := checkImmutable(orig, working); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := tx.validate(); err != nil {
		return nil, err
	}
	tx.fold()
	l.index(id, orig.Status, working.Status)
	l.payments[id] = working.Clone()
	return working, nil
}

func (l *MemoryLedger) Apply(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := newMemTx(l)
	defer tx.release()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := tx.validate(); err != nil {
		return err
	}
	tx.fold()
	return nil
}

// index moves id between status sets. Callers hold mu.
func (l *MemoryLedger) index(id models.PaymentID, from, to string) {
	if from == to {
		return
	}
	if from != "" {
		delete(l.byStatus[from], id)
	}
	set, ok := l.byStatus[to]
	if !ok {
		set = make(map[models.PaymentID]struct{})
		l.byStatus[to] = set
	}
	set[id] = struct{}{}
}

func (l *MemoryLedger) Get(ctx context.Context, id models.PaymentID) (*models.Payment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (l *MemoryLedger) ListByParty(ctx context.Context, addr models.Address) ([]models.PaymentID, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := l.byParty[addr]
	out := make([]models.PaymentID, len(ids))
	copy(out, ids)
	return out, nil
}

func (l *MemoryLedger) ListByStatus(ctx context.Context, status string) ([]models.PaymentID, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.PaymentID, 0, len(l.byStatus[status]))
	for id := range l.byStatus[status] {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (l *MemoryLedger) Account(ctx context.Context, addr models.Address) (models.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.account(addr), nil
}

func (l *MemoryLedger) account(addr models.Address) models.Account {
	acc, ok := l.accounts[addr]
	if !ok {
		return models.Account{Address: addr}
	}
	return acc
}

func (l *MemoryLedger) Settings(ctx context.Context) (models.Settings, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.settings, nil
}

func (l *MemoryLedger) Events(ctx context.Context, f models.EventFilter) ([]models.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	limit := normalizeLimit(f.Limit)
	var out []models.Event
	for _, e := range l.events {
		if e.Seq <= f.AfterSeq {
			continue
		}
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		if f.PaymentID != nil && (e.PaymentID == nil || *e.PaymentID != *f.PaymentID) {
			continue
		}
		out = append(out, copyEvent(e))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (l *MemoryLedger) PlatformTotals(ctx context.Context) (models.PlatformTotals, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var t models.PlatformTotals
	for _, p := range l.payments {
		addToTotals(&t, p)
	}
	return t, nil
}

// addToTotals folds one payment into the platform aggregates. Fee returned
// by a gross refund is whatever the payer got back above net.
func addToTotals(t *models.PlatformTotals, p *models.Payment) {
	t.TotalPayments++
	if p.SettledAt == nil {
		return
	}
	switch p.SettlementMethod {
	case models.MethodBalanceTransfer:
		t.BalanceTransferVolume += p.GrossAmount
		fee := p.FeeAmount
		if returned := p.RefundedAmount - p.NetAmount; returned > 0 {
			fee -= returned
		}
		t.FeesCollected += fee
	case models.MethodExternalAttestation:
		t.AttestationVolume += p.GrossAmount
	}
	t.RefundedVolume += p.RefundedAmount
}

// MemorySnapshot is a deep copy of every piece of ledger state.
type MemorySnapshot struct {
	NextID   models.PaymentID
	Payments map[models.PaymentID]models.Payment
	Accounts map[models.Address]models.Account
	Settings models.Settings
	Events   []models.Event
}

// Snapshot is used by tests to assert that failed operations changed nothing.
func (l *MemoryLedger) Snapshot() MemorySnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := MemorySnapshot{
		NextID:   l.nextID,
		Payments: make(map[models.PaymentID]models.Payment, len(l.payments)),
		Accounts: make(map[models.Address]models.Account, len(l.accounts)),
		Settings: l.settings,
		Events:   make([]models.Event, 0, len(l.events)),
	}
	for id, p := range l.payments {
		s.Payments[id] = *p.Clone()
	}
	for a, acc := range l.accounts {
		s.Accounts[a] = acc
	}
	for _, e := range l.events {
		s.Events = append(s.Events, copyEvent(e))
	}
	return s
}

func copyEvent(e models.Event) models.Event {
	if e.PaymentID != nil {
		id := *e.PaymentID
		e.PaymentID = &id
	}
	if e.DueAt != nil {
		t := *e.DueAt
		e.DueAt = &t
	}
	return e
}

// memTx stages writes against a MemoryLedger until commit.
type memTx struct {
	l          *MemoryLedger
	balance    map[models.Address]models.Amount
	allowSet   map[models.Address]models.Amount
	allowDelta map[models.Address]models.Amount
	settings   *models.Settings
	events     []*models.Event
	// holdsSettings is set once this tx owns l.settingsMu.
	holdsSettings bool
}

func newMemTx(l *MemoryLedger) *memTx {
	return &memTx{
		l:          l,
		balance:    make(map[models.Address]models.Amount),
		allowSet:   make(map[models.Address]models.Amount),
		allowDelta: make(map[models.Address]models.Amount),
	}
}

// view returns the account as this tx would leave it. Callers hold mu.
func (t *memTx) view(addr models.Address) models.Account {
	acc := t.l.account(addr)
	acc.Balance += t.balance[addr]
	if set, ok := t.allowSet[addr]; ok {
		acc.Allowance = set
	}
	acc.Allowance += t.allowDelta[addr]
	return acc
}

func (t *memTx) Account(ctx context.Context, addr models.Address) (models.Account, error) {
	t.l.mu.RLock()
	defer t.l.mu.RUnlock()
	return t.view(addr), nil
}

func (t *memTx) Debit(ctx context.Context, addr models.Address, amount models.Amount) error {
	if err := checkPositive(amount); err != nil {
		return err
	}
	t.l.mu.RLock()
	acc := t.view(addr)
	t.l.mu.RUnlock()
	if acc.Balance < amount {
		return ErrInsufficientBalance
	}
	t.balance[addr] -= amount
	return nil
}

func (t *memTx) Credit(ctx context.Context, addr models.Address, amount models.Amount) error {
	if err := checkPositive(amount); err != nil {
		return err
	}
	t.balance[addr] += amount
	return nil
}

func (t *memTx) SpendAllowance(ctx context.Context, owner models.Address, amount models.Amount) error {
	if err := checkPositive(amount); err != nil {
		return err
	}
	t.l.mu.RLock()
	acc := t.view(owner)
	t.l.mu.RUnlock()
	if acc.Allowance < amount {
		return ErrInsufficientAllowance
	}
	t.allowDelta[owner] -= amount
	return nil
}

func (t *memTx) SetAllowance(ctx context.Context, owner models.Address, amount models.Amount) error {
	if amount < 0 {
		return checkPositive(amount)
	}
	t.allowSet[owner] = amount
	delete(t.allowDelta, owner)
	return nil
}

func (t *memTx) Settings(ctx context.Context) (models.Settings, error) {
	if t.settings != nil {
		return *t.settings, nil
	}
	t.l.mu.RLock()
	defer t.l.mu.RUnlock()
	return t.l.settings, nil
}

func (t *memTx) SettingsForUpdate(ctx context.Context) (models.Settings, error) {
	if err := t.lockSettings(ctx); err != nil {
		return models.Settings{}, err
	}
	return t.Settings(ctx)
}

func (t *memTx) PutSettings(ctx context.Context, s models.Settings) error {
	if err := t.lockSettings(ctx); err != nil {
		return err
	}
	t.settings = &s
	return nil
}

func (t *memTx) lockSettings(ctx context.Context) error {
	if t.holdsSettings {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.l.settingsMu.Lock()
	t.holdsSettings = true
	return nil
}

// release drops settingsMu after commit or rollback.
func (t *memTx) release() {
	if t.holdsSettings {
		t.holdsSettings = false
		t.l.settingsMu.Unlock()
	}
}

func (t *memTx) Append(ctx context.Context, evt *models.Event) error {
	if evt.ID == uuid.Nil {
		evt.ID = uuid.New()
	}
	t.events = append(t.events, evt)
	return nil
}

// validate re-checks staged deltas against the current committed state.
// Callers hold mu for writing.
func (t *memTx) validate() error {
	for addr := range t.balance {
		if t.view(addr).Balance < 0 {
			return ErrInsufficientBalance
		}
	}
	for addr := range t.allowDelta {
		if t.view(addr).Allowance < 0 {
			return ErrInsufficientAllowance
		}
	}
	return nil
}

// fold writes staged state into the ledger. Callers hold mu for writing and
// have already called validate.
func (t *memTx) fold() {
	touched := make(map[models.Address]struct{})
	for addr := range t.balance {
		touched[addr] = struct{}{}
	}
	for addr := range t.allowSet {
		touched[addr] = struct{}{}
	}
	for addr := range t.allowDelta {
		touched[addr] = struct{}{}
	}
	for addr := range touched {
		t.l.accounts[addr] = t.view(addr)
	}
	if t.settings != nil {
		t.l.settings = *t.settings
	}
	for _, evt := range t.events {
		t.l.seq++
		evt.Seq = t.l.seq
		t.l.events = append(t.l.events, copyEvent(*evt))
	}
}
