package services

import (
	"context"
	"time"

	"wallet/internal/apperr"
	"wallet/internal/db"
	"wallet/internal/models"
	"wallet/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// WalletService seeds a wallet and its zero balance row together.
type WalletService struct {
	txRunner db.TxRunner
	wallets  WalletStore
	balances BalanceStore
	audit    AuditSink
	now      func() time.Time
}

func NewWalletService(txRunner db.TxRunner, wallets WalletStore, balances BalanceStore, audit AuditSink) *WalletService {
	return &WalletService{
		txRunner: txRunner,
		wallets:  wallets,
		balances: balances,
		audit:    audit,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *WalletService) CreateWallet(ctx context.Context, ownerID uuid.UUID, currency string, performedBy uuid.UUID) (models.Wallet, models.Balance, error) {
	if err := validator.ValidateCurrency(currency); err != nil {
		return models.Wallet{}, models.Balance{}, apperr.Validation("%s", err.Error())
	}
	now := s.now()
	wallet := models.Wallet{
		Entity:   models.NewEntity(now),
		OwnerID:  ownerID,
		Currency: currency,
	}
	balance := models.Balance{
		Entity:    models.NewEntity(now),
		WalletID:  wallet.ID,
		Available: decimal.Zero,
		Pending:   decimal.Zero,
		Reserved:  decimal.Zero,
		Currency:  currency,
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.wallets.Create(ctx, tx, wallet); err != nil {
			return err
		}
		return s.balances.Create(ctx, tx, balance)
	})
	if err != nil {
		return models.Wallet{}, models.Balance{}, err
	}
	s.audit.Emit(auditEntry(wallet.ID, models.ActionWalletCreated, models.EntityWallet, wallet.ID,
		nil, map[string]string{"owner_id": ownerID.String(), "currency": currency}, performedBy))
	return wallet, balance, nil
}

func (s *WalletService) Exists(ctx context.Context, walletID uuid.UUID) (bool, error) {
	return s.wallets.Exists(ctx, walletID)
}
