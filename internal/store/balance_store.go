package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"wallet/internal/apperr"
	"wallet/internal/db"
	"wallet/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BalanceStore struct {
	db DB
}

func NewBalanceStore(db DB) *BalanceStore {
	return &BalanceStore{db: db}
}

const balanceColumns = `id, wallet_id, available_balance, pending_balance, reserved_balance, currency, version, created_at, updated_at`

func (s *BalanceStore) Create(ctx context.Context, tx Execer, balance models.Balance) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_balances (id, wallet_id, available_balance, pending_balance, reserved_balance, currency, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, balance.ID, balance.WalletID, balance.Available, balance.Pending, balance.Reserved,
		balance.Currency, balance.Version, balance.CreatedAt, balance.UpdatedAt)
	return translate("BalanceStore.Create", "balance", err)
}

func (s *BalanceStore) GetByWalletID(ctx context.Context, walletID uuid.UUID) (models.Balance, error) {
	var row models.Balance
	err := s.db.GetContext(ctx, &row, `
		SELECT `+balanceColumns+`
		FROM wallet_balances
		WHERE wallet_id = $1
	`, walletID)
	if err != nil {
		return models.Balance{}, translate("BalanceStore.GetByWalletID", "balance", err)
	}
	return row, nil
}

// GetForUpdate reads the balance row and holds its lock until tx ends.
func (s *BalanceStore) GetForUpdate(ctx context.Context, tx Getter, walletID uuid.UUID) (models.Balance, error) {
	var row models.Balance
	err := tx.GetContext(ctx, &row, `
		SELECT `+balanceColumns+`
		FROM wallet_balances
		WHERE wallet_id = $1
		FOR UPDATE
	`, walletID)
	if err != nil {
		return models.Balance{}, translate("BalanceStore.GetForUpdate", "balance", err)
	}
	return row, nil
}

// ConditionalWrite adds delta to the available balance only if the stored
// version still equals expectedVersion, and returns the new version. A stale
// version yields apperr.ErrConflict; a missing row yields apperr.ErrNotFound.
func (s *BalanceStore) ConditionalWrite(ctx context.Context, walletID uuid.UUID, delta decimal.Decimal, expectedVersion int64) (int64, error) {
	return conditionalWrite(ctx, s.db, "BalanceStore.ConditionalWrite", walletID, delta, expectedVersion)
}

// ConditionalWriteTx is ConditionalWrite inside the caller's transaction, so
// the balance change commits or rolls back with the rest of tx.
func (s *BalanceStore) ConditionalWriteTx(ctx context.Context, tx Getter, walletID uuid.UUID, delta decimal.Decimal, expectedVersion int64) (int64, error) {
	return conditionalWrite(ctx, tx, "BalanceStore.ConditionalWriteTx", walletID, delta, expectedVersion)
}

func conditionalWrite(ctx context.Context, q Getter, op string, walletID uuid.UUID, delta decimal.Decimal, expectedVersion int64) (int64, error) {
	var version int64
	err := q.GetContext(ctx, &version, `
		UPDATE wallet_balances
		SET available_balance = available_balance + $1,
		    version = version + 1,
		    updated_at = NOW()
		WHERE wallet_id = $2 AND version = $3 AND available_balance + $1 >= 0
		RETURNING version
	`, delta, walletID, expectedVersion)
	if err == nil {
		return version, nil
	}
	if db.IsNumericOverflow(err) {
		return 0, fmt.Errorf("%s: %w", op, apperr.New(apperr.KindInvalidOperation, "balance would exceed the supported range"))
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	var exists bool
	if err := q.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM wallet_balances WHERE wallet_id = $1)`, walletID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return 0, fmt.Errorf("%s: %w", op, apperr.NotFound("balance not found"))
	}
	return 0, fmt.Errorf("%s: %w", op, apperr.New(apperr.KindConflict, "balance version %d is stale", expectedVersion))
}

// SaveReservation writes both available and reserved under the row lock
// taken by GetForUpdate.
func (s *BalanceStore) SaveReservation(ctx context.Context, tx Getter, walletID uuid.UUID, available, reserved decimal.Decimal, expectedVersion int64) (int64, error) {
	var version int64
	err := tx.GetContext(ctx, &version, `
		UPDATE wallet_balances
		SET available_balance = $1,
		    reserved_balance = $2,
		    version = version + 1,
		    updated_at = NOW()
		WHERE wallet_id = $3 AND version = $4
		RETURNING version
	`, available, reserved, walletID, expectedVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("BalanceStore.SaveReservation: %w", apperr.New(apperr.KindConflict, "balance version %d is stale", expectedVersion))
	}
	if err != nil {
		return 0, fmt.Errorf("BalanceStore.SaveReservation: %w", err)
	}
	return version, nil
}

func (s *BalanceStore) HasSufficient(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (bool, error) {
	var ok bool
	err := s.db.GetContext(ctx, &ok, `
		SELECT available_balance >= $2
		FROM wallet_balances
		WHERE wallet_id = $1
	`, walletID, amount)
	if err != nil {
		return false, translate("BalanceStore.HasSufficient", "balance", err)
	}
	return ok, nil
}

func (s *BalanceStore) TotalByCurrency(ctx context.Context, currency string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(available_balance), 0)
		FROM wallet_balances
		WHERE currency = $1
	`, currency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("BalanceStore.TotalByCurrency: %w", err)
	}
	return total, nil
}
