package store

import (
	"context"
	"fmt"
	"time"

	"wallet/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type FreezeStore struct {
	db DB
}

func NewFreezeStore(db DB) *FreezeStore {
	return &FreezeStore{db: db}
}

const freezeColumns = `id, wallet_id, freeze_type, frozen_amount, reason, status, expires_at, created_by, removed_by, removed_at, created_at, updated_at`

// inEffect is the SQL rendering of models.Freeze.InEffect; $2 is the clock.
const inEffect = `status = 'active' AND (expires_at IS NULL OR expires_at > $2)`

func (s *FreezeStore) Create(ctx context.Context, tx Execer, freeze models.Freeze) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_freezes (id, wallet_id, freeze_type, frozen_amount, reason, status, expires_at, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, freeze.ID, freeze.WalletID, freeze.FreezeType, freeze.FrozenAmount, freeze.Reason,
		freeze.Status, freeze.ExpiresAt, freeze.CreatedBy, freeze.CreatedAt, freeze.UpdatedAt)
	return translate("FreezeStore.Create", "active freeze of this type", err)
}

func (s *FreezeStore) GetByID(ctx context.Context, freezeID uuid.UUID) (models.Freeze, error) {
	var row models.Freeze
	err := s.db.GetContext(ctx, &row, `
		SELECT `+freezeColumns+`
		FROM wallet_freezes
		WHERE id = $1
	`, freezeID)
	if err != nil {
		return models.Freeze{}, translate("FreezeStore.GetByID", "freeze", err)
	}
	return row, nil
}

// HasActive reports an active row of freezeType regardless of expiry; it
// backs the one-active-freeze-per-type rule.
func (s *FreezeStore) HasActive(ctx context.Context, walletID uuid.UUID, freezeType models.FreezeType) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM wallet_freezes
			WHERE wallet_id = $1 AND freeze_type = $2 AND status = 'active'
		)
	`, walletID, freezeType)
	if err != nil {
		return false, fmt.Errorf("FreezeStore.HasActive: %w", err)
	}
	return exists, nil
}

func (s *FreezeStore) IsInEffect(ctx context.Context, walletID uuid.UUID, now time.Time) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM wallet_freezes
			WHERE wallet_id = $1 AND `+inEffect+`
		)
	`, walletID, now)
	if err != nil {
		return false, fmt.Errorf("FreezeStore.IsInEffect: %w", err)
	}
	return exists, nil
}

func (s *FreezeStore) IsInEffectByType(ctx context.Context, walletID uuid.UUID, freezeType models.FreezeType, now time.Time) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM wallet_freezes
			WHERE wallet_id = $1 AND `+inEffect+` AND freeze_type = $3
		)
	`, walletID, now, freezeType)
	if err != nil {
		return false, fmt.Errorf("FreezeStore.IsInEffectByType: %w", err)
	}
	return exists, nil
}

func (s *FreezeStore) TotalPartialInEffect(ctx context.Context, walletID uuid.UUID, now time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(frozen_amount), 0)
		FROM wallet_freezes
		WHERE wallet_id = $1 AND `+inEffect+` AND freeze_type = 'PARTIAL'
	`, walletID, now)
	if err != nil {
		return decimal.Zero, fmt.Errorf("FreezeStore.TotalPartialInEffect: %w", err)
	}
	return total, nil
}

// MarkRemoved moves an active freeze to removed and returns rows affected;
// zero means the freeze was no longer active.
func (s *FreezeStore) MarkRemoved(ctx context.Context, tx Execer, freezeID, removedBy uuid.UUID, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE wallet_freezes
		SET status = 'removed', removed_by = $2, removed_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'active'
	`, freezeID, removedBy, now)
	if err != nil {
		return 0, fmt.Errorf("FreezeStore.MarkRemoved: %w", err)
	}
	return res.RowsAffected()
}

func (s *FreezeStore) MarkExpired(ctx context.Context, tx Execer, freezeID uuid.UUID, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE wallet_freezes
		SET status = 'expired', removed_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'active' AND expires_at IS NOT NULL AND expires_at <= $2
	`, freezeID, now)
	if err != nil {
		return 0, fmt.Errorf("FreezeStore.MarkExpired: %w", err)
	}
	return res.RowsAffected()
}

// ListExpired returns active freezes whose expiry has passed, oldest first.
func (s *FreezeStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Freeze, error) {
	var rows []models.Freeze
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+freezeColumns+`
		FROM wallet_freezes
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("FreezeStore.ListExpired: %w", err)
	}
	return rows, nil
}

func (s *FreezeStore) ListByWallet(ctx context.Context, walletID uuid.UUID, activeOnly bool) ([]models.Freeze, error) {
	query := `
		SELECT ` + freezeColumns + `
		FROM wallet_freezes
		WHERE wallet_id = $1
	`
	if activeOnly {
		query += " AND status = 'active'"
	}
	query += " ORDER BY created_at DESC"
	var rows []models.Freeze
	if err := s.db.SelectContext(ctx, &rows, query, walletID); err != nil {
		return nil, fmt.Errorf("FreezeStore.ListByWallet: %w", err)
	}
	return rows, nil
}
