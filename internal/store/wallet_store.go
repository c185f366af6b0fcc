package store

import (
	"context"
	"fmt"

	"wallet/internal/models"

	"github.com/google/uuid"
)

// WalletStore is the minimal view of wallets the balance engine needs.
type WalletStore struct {
	db DB
}

func NewWalletStore(db DB) *WalletStore {
	return &WalletStore{db: db}
}

func (s *WalletStore) Create(ctx context.Context, tx Execer, wallet models.Wallet) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (id, owner_id, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, wallet.ID, wallet.OwnerID, wallet.Currency, wallet.CreatedAt, wallet.UpdatedAt)
	return translate("WalletStore.Create", "wallet", err)
}

func (s *WalletStore) Exists(ctx context.Context, walletID uuid.UUID) (bool, error) {
	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM wallets WHERE id = $1)`, walletID); err != nil {
		return false, fmt.Errorf("WalletStore.Exists: %w", err)
	}
	return exists, nil
}
