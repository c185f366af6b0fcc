package store

import (
	"context"
	"fmt"
	"time"

	"wallet/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LimitStore struct {
	db DB
}

func NewLimitStore(db DB) *LimitStore {
	return &LimitStore{db: db}
}

const limitColumns = `id, wallet_id, limit_type, limit_amount, current_usage, reset_period, last_reset, is_active, created_at, updated_at`

func (s *LimitStore) Create(ctx context.Context, tx Execer, limit models.Limit) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_limits (id, wallet_id, limit_type, limit_amount, current_usage, reset_period, last_reset, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, limit.ID, limit.WalletID, limit.LimitType, limit.LimitAmount, limit.CurrentUsage,
		limit.ResetPeriod, limit.LastReset, limit.IsActive, limit.CreatedAt, limit.UpdatedAt)
	return translate("LimitStore.Create", "active limit of this type", err)
}

func (s *LimitStore) GetByID(ctx context.Context, limitID uuid.UUID) (models.Limit, error) {
	var row models.Limit
	err := s.db.GetContext(ctx, &row, `
		SELECT `+limitColumns+`
		FROM wallet_limits
		WHERE id = $1
	`, limitID)
	if err != nil {
		return models.Limit{}, translate("LimitStore.GetByID", "limit", err)
	}
	return row, nil
}

// GetActive returns the active limit of limitType, or apperr.ErrNotFound.
func (s *LimitStore) GetActive(ctx context.Context, walletID uuid.UUID, limitType models.LimitType) (models.Limit, error) {
	var row models.Limit
	err := s.db.GetContext(ctx, &row, `
		SELECT `+limitColumns+`
		FROM wallet_limits
		WHERE wallet_id = $1 AND limit_type = $2 AND is_active
	`, walletID, limitType)
	if err != nil {
		return models.Limit{}, translate("LimitStore.GetActive", "limit", err)
	}
	return row, nil
}

func (s *LimitStore) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]models.Limit, error) {
	var rows []models.Limit
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+limitColumns+`
		FROM wallet_limits
		WHERE wallet_id = $1
		ORDER BY is_active DESC, limit_type
	`, walletID)
	if err != nil {
		return nil, fmt.Errorf("LimitStore.ListByWallet: %w", err)
	}
	return rows, nil
}

// Accrue increments usage in one statement without checking the ceiling.
func (s *LimitStore) Accrue(ctx context.Context, walletID uuid.UUID, limitType models.LimitType, amount decimal.Decimal) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE wallet_limits
		SET current_usage = current_usage + $3, updated_at = NOW()
		WHERE wallet_id = $1 AND limit_type = $2 AND is_active
	`, walletID, limitType, amount)
	if err != nil {
		return 0, fmt.Errorf("LimitStore.Accrue: %w", err)
	}
	return res.RowsAffected()
}

// TryAccrue increments usage only while it stays within the ceiling.
func (s *LimitStore) TryAccrue(ctx context.Context, walletID uuid.UUID, limitType models.LimitType, amount decimal.Decimal) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE wallet_limits
		SET current_usage = current_usage + $3, updated_at = NOW()
		WHERE wallet_id = $1 AND limit_type = $2 AND is_active
		  AND current_usage + $3 <= limit_amount
	`, walletID, limitType, amount)
	if err != nil {
		return 0, fmt.Errorf("LimitStore.TryAccrue: %w", err)
	}
	return res.RowsAffected()
}

func (s *LimitStore) Reset(ctx context.Context, limitID uuid.UUID, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE wallet_limits
		SET current_usage = 0, last_reset = $2, updated_at = $2
		WHERE id = $1
	`, limitID, now)
	if err != nil {
		return 0, fmt.Errorf("LimitStore.Reset: %w", err)
	}
	return res.RowsAffected()
}

// ListDueForReset returns active limits of period last reset before boundary.
func (s *LimitStore) ListDueForReset(ctx context.Context, period models.ResetPeriod, boundary time.Time) ([]models.Limit, error) {
	var rows []models.Limit
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+limitColumns+`
		FROM wallet_limits
		WHERE reset_period = $1 AND last_reset < $2 AND is_active
		ORDER BY last_reset
	`, period, boundary)
	if err != nil {
		return nil, fmt.Errorf("LimitStore.ListDueForReset: %w", err)
	}
	return rows, nil
}

func (s *LimitStore) UpdateAmount(ctx context.Context, limitID uuid.UUID, amount decimal.Decimal) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE wallet_limits
		SET limit_amount = $2, updated_at = NOW()
		WHERE id = $1 AND is_active
	`, limitID, amount)
	if err != nil {
		return 0, fmt.Errorf("LimitStore.UpdateAmount: %w", err)
	}
	return res.RowsAffected()
}

func (s *LimitStore) Deactivate(ctx context.Context, limitID uuid.UUID) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE wallet_limits
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND is_active
	`, limitID)
	if err != nil {
		return 0, fmt.Errorf("LimitStore.Deactivate: %w", err)
	}
	return res.RowsAffected()
}
