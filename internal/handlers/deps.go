package handlers

import (
	"context"

	"wallet/internal/models"
	"wallet/internal/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WalletService interface {
	CreateWallet(ctx context.Context, ownerID uuid.UUID, currency string, performedBy uuid.UUID) (models.Wallet, models.Balance, error)
}

type LedgerService interface {
	GetBalance(ctx context.Context, walletID uuid.UUID) (models.Balance, error)
	HasSufficientBalance(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (bool, error)
	TotalByCurrency(ctx context.Context, currency string) (decimal.Decimal, error)
	ApplyDelta(ctx context.Context, walletID uuid.UUID, delta decimal.Decimal, performedBy uuid.UUID) (models.Balance, error)
	Reserve(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, performedBy uuid.UUID) (models.Balance, error)
	Release(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, performedBy uuid.UUID) (models.Balance, error)
}

type FreezeService interface {
	CreateFreeze(ctx context.Context, req services.CreateFreezeRequest) (models.Freeze, error)
	GetFreeze(ctx context.Context, freezeID uuid.UUID) (models.Freeze, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]models.Freeze, error)
	ListActiveByWallet(ctx context.Context, walletID uuid.UUID) ([]models.Freeze, error)
	IsInEffect(ctx context.Context, walletID uuid.UUID) (bool, error)
	IsInEffectByType(ctx context.Context, walletID uuid.UUID, freezeType models.FreezeType) (bool, error)
	TotalFrozenAmount(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error)
	RemoveFreeze(ctx context.Context, freezeID, performedBy uuid.UUID) (models.Freeze, error)
}

type LimitService interface {
	CreateLimit(ctx context.Context, req services.CreateLimitRequest) (models.Limit, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]models.Limit, error)
	WouldExceed(ctx context.Context, walletID uuid.UUID, limitType models.LimitType, amount decimal.Decimal) (bool, error)
	Remaining(ctx context.Context, walletID uuid.UUID, limitType models.LimitType) (decimal.Decimal, bool, error)
	Reset(ctx context.Context, limitID, performedBy uuid.UUID) (models.Limit, error)
	UpdateLimitAmount(ctx context.Context, limitID uuid.UUID, amount decimal.Decimal, performedBy uuid.UUID) (models.Limit, error)
	Deactivate(ctx context.Context, limitID, performedBy uuid.UUID) (models.Limit, error)
}

type TransactionService interface {
	Create(ctx context.Context, req services.CreateTransactionRequest) (models.Transaction, error)
	Get(ctx context.Context, transactionID uuid.UUID) (models.Transaction, error)
	GetByReference(ctx context.Context, referenceID string) (models.Transaction, error)
	Process(ctx context.Context, transactionID, performedBy uuid.UUID) (models.Transaction, error)
	UpdateStatus(ctx context.Context, transactionID uuid.UUID, status models.TransactionStatus, performedBy uuid.UUID) (models.Transaction, error)
}
