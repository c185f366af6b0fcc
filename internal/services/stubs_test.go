package services

import (
	"context"
	"sync"
	"time"

	"wallet/internal/apperr"
	"wallet/internal/models"
	"wallet/internal/store"
	"wallet/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type recordingSink struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (s *recordingSink) Emit(entry models.AuditLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *recordingSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Action)
	}
	return out
}

type recordingHub struct {
	mu      sync.Mutex
	updates []websocket.BalanceUpdate
}

func (h *recordingHub) BroadcastBalance(_ string, update websocket.BalanceUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, update)
}

// txJournal collects undo steps for writes made through a transaction
// handle. Writes made outside a transaction are never recorded, so a
// rollback leaves them in place exactly as autocommit would.
type txJournal struct {
	mu   sync.Mutex
	undo []func()
}

func (j *txJournal) record(undo func()) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.undo = append(j.undo, undo)
}

func (j *txJournal) finish(commit bool) {
	j.mu.Lock()
	steps := j.undo
	j.undo = nil
	j.mu.Unlock()
	if commit {
		return
	}
	for i := len(steps) - 1; i >= 0; i-- {
		steps[i]()
	}
}

// memBalanceStore mimics the conditional write of the postgres store. The
// mutex stands in for row-level atomicity of a single UPDATE.
type memBalanceStore struct {
	mu       sync.Mutex
	balances map[uuid.UUID]models.Balance
	journal  *txJournal
	// conflicts forces that many conditional writes to lose the race.
	conflicts int
	writes    int
}

func newMemBalanceStore(balances ...models.Balance) *memBalanceStore {
	m := &memBalanceStore{balances: make(map[uuid.UUID]models.Balance)}
	for _, b := range balances {
		m.balances[b.WalletID] = b
	}
	return m
}

func (m *memBalanceStore) Create(_ context.Context, _ store.Execer, balance models.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[balance.WalletID]; ok {
		return apperr.Conflict("balance already exists")
	}
	m.balances[balance.WalletID] = balance
	return nil
}

func (m *memBalanceStore) GetByWalletID(_ context.Context, walletID uuid.UUID) (models.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[walletID]
	if !ok {
		return models.Balance{}, apperr.NotFound("balance not found")
	}
	return b, nil
}

func (m *memBalanceStore) GetForUpdate(ctx context.Context, _ store.Getter, walletID uuid.UUID) (models.Balance, error) {
	return m.GetByWalletID(ctx, walletID)
}

func (m *memBalanceStore) ConditionalWrite(_ context.Context, walletID uuid.UUID, delta decimal.Decimal, expectedVersion int64) (int64, error) {
	return m.conditionalWrite(walletID, delta, expectedVersion, nil)
}

func (m *memBalanceStore) ConditionalWriteTx(_ context.Context, _ store.Getter, walletID uuid.UUID, delta decimal.Decimal, expectedVersion int64) (int64, error) {
	return m.conditionalWrite(walletID, delta, expectedVersion, m.journal)
}

func (m *memBalanceStore) conditionalWrite(walletID uuid.UUID, delta decimal.Decimal, expectedVersion int64, journal *txJournal) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[walletID]
	if !ok {
		return 0, apperr.NotFound("balance not found")
	}
	if m.conflicts > 0 {
		m.conflicts--
		return 0, apperr.Conflict("balance was modified concurrently")
	}
	if b.Version != expectedVersion || b.Available.Add(delta).IsNegative() {
		return 0, apperr.Conflict("balance was modified concurrently")
	}
	prev := b
	b.Available = b.Available.Add(delta)
	b.Version++
	m.balances[walletID] = b
	m.writes++
	journal.record(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.balances[walletID] = prev
	})
	return b.Version, nil
}

func (m *memBalanceStore) SaveReservation(_ context.Context, _ store.Getter, walletID uuid.UUID, available, reserved decimal.Decimal, expectedVersion int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[walletID]
	if !ok {
		return 0, apperr.NotFound("balance not found")
	}
	if b.Version != expectedVersion {
		return 0, apperr.Conflict("balance was modified concurrently")
	}
	b.Available = available
	b.Reserved = reserved
	b.Version++
	m.balances[walletID] = b
	return b.Version, nil
}

func (m *memBalanceStore) HasSufficient(_ context.Context, walletID uuid.UUID, amount decimal.Decimal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[walletID]
	if !ok {
		return false, apperr.NotFound("balance not found")
	}
	return b.Available.GreaterThanOrEqual(amount), nil
}

func (m *memBalanceStore) TotalByCurrency(_ context.Context, currency string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, b := range m.balances {
		if b.Currency == currency {
			total = total.Add(b.Available)
		}
	}
	return total, nil
}

type stubWalletStore struct {
	createFn func(ctx context.Context, tx store.Execer, wallet models.Wallet) error
	existsFn func(ctx context.Context, walletID uuid.UUID) (bool, error)
}

func (s stubWalletStore) Create(ctx context.Context, tx store.Execer, wallet models.Wallet) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, wallet)
}

func (s stubWalletStore) Exists(ctx context.Context, walletID uuid.UUID) (bool, error) {
	if s.existsFn == nil {
		return true, nil
	}
	return s.existsFn(ctx, walletID)
}

type stubFreezeStore struct {
	createFn           func(ctx context.Context, tx store.Execer, freeze models.Freeze) error
	getByIDFn          func(ctx context.Context, freezeID uuid.UUID) (models.Freeze, error)
	hasActiveFn        func(ctx context.Context, walletID uuid.UUID, freezeType models.FreezeType) (bool, error)
	isInEffectFn       func(ctx context.Context, walletID uuid.UUID, now time.Time) (bool, error)
	isInEffectByTypeFn func(ctx context.Context, walletID uuid.UUID, freezeType models.FreezeType, now time.Time) (bool, error)
	totalPartialFn     func(ctx context.Context, walletID uuid.UUID, now time.Time) (decimal.Decimal, error)
	markRemovedFn      func(ctx context.Context, tx store.Execer, freezeID, removedBy uuid.UUID, now time.Time) (int64, error)
	markExpiredFn      func(ctx context.Context, tx store.Execer, freezeID uuid.UUID, now time.Time) (int64, error)
	listExpiredFn      func(ctx context.Context, now time.Time, limit int) ([]models.Freeze, error)
	listByWalletFn     func(ctx context.Context, walletID uuid.UUID, activeOnly bool) ([]models.Freeze, error)
}

func (s stubFreezeStore) Create(ctx context.Context, tx store.Execer, freeze models.Freeze) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, freeze)
}

func (s stubFreezeStore) GetByID(ctx context.Context, freezeID uuid.UUID) (models.Freeze, error) {
	return s.getByIDFn(ctx, freezeID)
}

func (s stubFreezeStore) HasActive(ctx context.Context, walletID uuid.UUID, freezeType models.FreezeType) (bool, error) {
	if s.hasActiveFn == nil {
		return false, nil
	}
	return s.hasActiveFn(ctx, walletID, freezeType)
}

func (s stubFreezeStore) IsInEffect(ctx context.Context, walletID uuid.UUID, now time.Time) (bool, error) {
	if s.isInEffectFn == nil {
		return false, nil
	}
	return s.isInEffectFn(ctx, walletID, now)
}

func (s stubFreezeStore) IsInEffectByType(ctx context.Context, walletID uuid.UUID, freezeType models.FreezeType, now time.Time) (bool, error) {
	if s.isInEffectByTypeFn == nil {
		return false, nil
	}
	return s.isInEffectByTypeFn(ctx, walletID, freezeType, now)
}

func (s stubFreezeStore) TotalPartialInEffect(ctx context.Context, walletID uuid.UUID, now time.Time) (decimal.Decimal, error) {
	if s.totalPartialFn == nil {
		return decimal.Zero, nil
	}
	return s.totalPartialFn(ctx, walletID, now)
}

func (s stubFreezeStore) MarkRemoved(ctx context.Context, tx store.Execer, freezeID, removedBy uuid.UUID, now time.Time) (int64, error) {
	if s.markRemovedFn == nil {
		return 1, nil
	}
	return s.markRemovedFn(ctx, tx, freezeID, removedBy, now)
}

func (s stubFreezeStore) MarkExpired(ctx context.Context, tx store.Execer, freezeID uuid.UUID, now time.Time) (int64, error) {
	if s.markExpiredFn == nil {
		return 1, nil
	}
	return s.markExpiredFn(ctx, tx, freezeID, now)
}

func (s stubFreezeStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Freeze, error) {
	if s.listExpiredFn == nil {
		return nil, nil
	}
	return s.listExpiredFn(ctx, now, limit)
}

func (s stubFreezeStore) ListByWallet(ctx context.Context, walletID uuid.UUID, activeOnly bool) ([]models.Freeze, error) {
	if s.listByWalletFn == nil {
		return nil, nil
	}
	return s.listByWalletFn(ctx, walletID, activeOnly)
}

type stubLimitStore struct {
	createFn          func(ctx context.Context, tx store.Execer, limit models.Limit) error
	getByIDFn         func(ctx context.Context, limitID uuid.UUID) (models.Limit, error)
	getActiveFn       func(ctx context.Context, walletID uuid.UUID, limitType models.LimitType) (models.Limit, error)
	listByWalletFn    func(ctx context.Context, walletID uuid.UUID) ([]models.Limit, error)
	accrueFn          func(ctx context.Context, walletID uuid.UUID, limitType models.LimitType, amount decimal.Decimal) (int64, error)
	tryAccrueFn       func(ctx context.Context, walletID uuid.UUID, limitType models.LimitType, amount decimal.Decimal) (int64, error)
	resetFn           func(ctx context.Context, limitID uuid.UUID, now time.Time) (int64, error)
	listDueForResetFn func(ctx context.Context, period models.ResetPeriod, boundary time.Time) ([]models.Limit, error)
	updateAmountFn    func(ctx context.Context, limitID uuid.UUID, amount decimal.Decimal) (int64, error)
	deactivateFn      func(ctx context.Context, limitID uuid.UUID) (int64, error)
}

func (s stubLimitStore) Create(ctx context.Context, tx store.Execer, limit models.Limit) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, limit)
}

func (s stubLimitStore) GetByID(ctx context.Context, limitID uuid.UUID) (models.Limit, error) {
	return s.getByIDFn(ctx, limitID)
}

func (s stubLimitStore) GetActive(ctx context.Context, walletID uuid.UUID, limitType models.LimitType) (models.Limit, error) {
	if s.getActiveFn == nil {
		return models.Limit{}, apperr.NotFound("limit not found")
	}
	return s.getActiveFn(ctx, walletID, limitType)
}

func (s stubLimitStore) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]models.Limit, error) {
	if s.listByWalletFn == nil {
		return nil, nil
	}
	return s.listByWalletFn(ctx, walletID)
}

func (s stubLimitStore) Accrue(ctx context.Context, walletID uuid.UUID, limitType models.LimitType, amount decimal.Decimal) (int64, error) {
	if s.accrueFn == nil {
		return 0, nil
	}
	return s.accrueFn(ctx, walletID, limitType, amount)
}

func (s stubLimitStore) TryAccrue(ctx context.Context, walletID uuid.UUID, limitType models.LimitType, amount decimal.Decimal) (int64, error) {
	if s.tryAccrueFn == nil {
		return 0, nil
	}
	return s.tryAccrueFn(ctx, walletID, limitType, amount)
}

func (s stubLimitStore) Reset(ctx context.Context, limitID uuid.UUID, now time.Time) (int64, error) {
	if s.resetFn == nil {
		return 1, nil
	}
	return s.resetFn(ctx, limitID, now)
}

func (s stubLimitStore) ListDueForReset(ctx context.Context, period models.ResetPeriod, boundary time.Time) ([]models.Limit, error) {
	if s.listDueForResetFn == nil {
		return nil, nil
	}
	return s.listDueForResetFn(ctx, period, boundary)
}

func (s stubLimitStore) UpdateAmount(ctx context.Context, limitID uuid.UUID, amount decimal.Decimal) (int64, error) {
	if s.updateAmountFn == nil {
		return 1, nil
	}
	return s.updateAmountFn(ctx, limitID, amount)
}

func (s stubLimitStore) Deactivate(ctx context.Context, limitID uuid.UUID) (int64, error) {
	if s.deactivateFn == nil {
		return 1, nil
	}
	return s.deactivateFn(ctx, limitID)
}

// memTransactionStore keeps rows in memory and honors the conditional
// status flip.
type memTransactionStore struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]models.Transaction
	journal *txJournal
}

func newMemTransactionStore(rows ...models.Transaction) *memTransactionStore {
	m := &memTransactionStore{rows: make(map[uuid.UUID]models.Transaction)}
	for _, r := range rows {
		m.rows[r.ID] = r
	}
	return m
}

func (m *memTransactionStore) Create(_ context.Context, _ store.Execer, txn models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if txn.ReferenceID != nil {
		for _, r := range m.rows {
			if r.ReferenceID != nil && *r.ReferenceID == *txn.ReferenceID {
				return apperr.Conflict("transaction with this reference already exists")
			}
		}
	}
	m.rows[txn.ID] = txn
	return nil
}

func (m *memTransactionStore) GetByID(_ context.Context, transactionID uuid.UUID) (models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[transactionID]
	if !ok {
		return models.Transaction{}, apperr.NotFound("transaction not found")
	}
	return r, nil
}

func (m *memTransactionStore) GetByReference(_ context.Context, referenceID string) (models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ReferenceID != nil && *r.ReferenceID == referenceID {
			return r, nil
		}
	}
	return models.Transaction{}, apperr.NotFound("transaction not found")
}

func (m *memTransactionStore) GetForUpdate(ctx context.Context, _ store.Getter, transactionID uuid.UUID) (models.Transaction, error) {
	return m.GetByID(ctx, transactionID)
}

func (m *memTransactionStore) UpdateStatus(_ context.Context, _ store.Execer, transactionID uuid.UUID, from, to models.TransactionStatus, processedAt *time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[transactionID]
	if !ok || r.Status != from {
		return 0, nil
	}
	prev := r
	m.journal.record(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.rows[transactionID] = prev
	})
	r.Status = to
	if processedAt != nil {
		r.ProcessedAt = processedAt
	}
	m.rows[transactionID] = r
	return 1, nil
}

func newBalance(available string) models.Balance {
	return models.Balance{
		Entity:    models.NewEntity(time.Now().UTC()),
		WalletID:  uuid.New(),
		Available: decimal.RequireFromString(available),
		Pending:   decimal.Zero,
		Reserved:  decimal.Zero,
		Currency:  "USD",
		Version:   0,
	}
}

func noSleep(context.Context, int) error { return nil }
